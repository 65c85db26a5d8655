package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dauglyon/kbase-ui/internal/config"
	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/gitinfo"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
	"github.com/dauglyon/kbase-ui/internal/release"
)

// mergeConfigs layers the release config over the UI config into the
// state's merged config.
func (p *Pipeline) mergeConfigs(ctx context.Context, state *ir.State) (*ir.State, error) {
	ui, err := p.Loader.LoadUIConfig()
	if err != nil {
		return nil, err
	}
	rc, err := p.Loader.LoadReleaseConfig()
	if err != nil {
		return nil, err
	}

	state.MergedConfig = config.Merge(ui, map[string]any{
		"release": map[string]any{"version": rc.Version},
	})
	return state, nil
}

// createBuildInfo extracts git provenance for HEAD and composes the build
// info record from it, the run stats, and the target name.
func (p *Pipeline) createBuildInfo(ctx context.Context, state *ir.State) (*ir.State, error) {
	collector := gitinfo.NewCollector(p.Runner, state.Environment)
	info, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	state.Git = info
	state.BuildInfo = &ir.BuildInfo{
		ID:      uuid.NewString(),
		Target:  state.Config.Target,
		BuiltAt: time.Now().UnixMilli(),
		Git:     info,
		Stats:   state.Stats,
	}

	logging.WithStage("create-build-info").Info("build info created",
		"commit", info.CommitAbbreviatedHash, "branch", info.Branch, "tag", info.Tag)
	return state, nil
}

// verifyVersion runs the release checks; a no-op for non-release builds.
func (p *Pipeline) verifyVersion(ctx context.Context, state *ir.State) (*ir.State, error) {
	rc, err := p.Loader.LoadReleaseConfig()
	if err != nil {
		return nil, err
	}
	if err := release.Verify(state.Environment, state.Config, rc.Version, state.Git); err != nil {
		return nil, err
	}
	return state, nil
}

// writeConfig emits the generated runtime config.json: the merged UI and
// release config with the build info embedded.
func (p *Pipeline) writeConfig(ctx context.Context, state *ir.State) (*ir.State, error) {
	merged := config.Merge(state.MergedConfig, map[string]any{
		"buildInfo": state.BuildInfo,
	})
	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize runtime config: %w", err)
	}

	path := state.RuntimeConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return nil, fmt.Errorf("failed to write runtime config: %w", err)
	}
	return state, nil
}

// makeDeployConfigs converts every per-environment deploy YAML file 1:1
// into JSON beside the build output.
func (p *Pipeline) makeDeployConfigs(ctx context.Context, state *ir.State) (*ir.State, error) {
	paths, err := p.Loader.DeployConfigs()
	if err != nil {
		return nil, err
	}
	destDir := filepath.Join(state.BuildDir(), "deploy")

	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read deploy config %s: %w", path, err)
		}
		var value any
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("failed to parse deploy config %s: %w", path, err)
		}
		out, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to convert deploy config %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".yml") + ".json"
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(destDir, name), out, 0644); err != nil {
			return nil, fmt.Errorf("failed to write deploy config %s: %w", name, err)
		}
	}
	if len(paths) > 0 {
		logging.WithStage("make-deploy-configs").Info("deploy configs written", "count", len(paths))
	}
	return state, nil
}

// assetRefPattern matches src/href attributes referencing local js and
// css assets in the entry page.
var assetRefPattern = regexp.MustCompile(`(src|href)="([^"?]+\.(?:js|css))"`)

// cacheBust stamps the entry page's asset references with the abbreviated
// commit hash so deployed clients never serve a stale cached bundle. The
// build id stands in when provenance carries no hash.
func (p *Pipeline) cacheBust(ctx context.Context, state *ir.State) (*ir.State, error) {
	log := logging.WithStage("cache-bust")

	stamp := ""
	if state.Git != nil {
		stamp = state.Git.CommitAbbreviatedHash
	}
	if stamp == "" && state.BuildInfo != nil {
		stamp = state.BuildInfo.ID
	}

	page := filepath.Join(state.BuildDir(), "index.html")
	if !fsutil.FileExists(page) {
		log.Warn("no entry page to cache-bust", "path", page)
		return state, nil
	}
	raw, err := os.ReadFile(page)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry page: %w", err)
	}

	busted := assetRefPattern.ReplaceAllString(string(raw), fmt.Sprintf(`${1}="${2}?cb=%s"`, stamp))
	if err := os.WriteFile(page, []byte(busted), 0644); err != nil {
		return nil, fmt.Errorf("failed to write entry page: %w", err)
	}
	log.Info("entry page stamped", "stamp", stamp)
	return state, nil
}
