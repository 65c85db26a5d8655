package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dauglyon/kbase-ui/internal/config"
	"github.com/dauglyon/kbase-ui/internal/pipeline"
	"github.com/dauglyon/kbase-ui/internal/plugin"
	"github.com/dauglyon/kbase-ui/internal/release"
)

var buildDir string

var buildCmd = &cobra.Command{
	Use:   "build <build-type>",
	Short: "Run the build pipeline for a build type",
	Long: `Runs the full build pipeline for the named build type (for example dev,
ci, or prod). The build type selects a config file under config/build/.`,
	Args: requireBuildType,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildDir, "dir", "C", "", "Project directory (defaults to the working directory)")
}

// requireBuildType turns a missing positional argument into the usage
// error the pipeline contract demands.
func requireBuildType(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return &pipeline.UsageError{Msg: "usage: kbase-ui-build build <build-type>"}
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	p := pipeline.New(dir)
	p.Callback = func(event pipeline.StageEvent) {
		switch event.Status {
		case "completed":
			fmt.Printf("  %-32s %s\n", event.Stage, event.Duration.Round(time.Millisecond))
		case "skipped":
			fmt.Printf("  %-32s skipped\n", event.Stage)
		}
	}

	state, err := p.Run(cmd.Context(), args[0])
	if err != nil {
		reportFailure(err)
		return err
	}

	fmt.Printf("\nBuild %q complete: %d stages, %d files copied, %d plugins\n",
		state.Config.Target, len(state.Steps), state.Stats.FilesCopied, state.Stats.PluginCount)
	return nil
}

func projectDir() (string, error) {
	if buildDir != "" {
		abs, err := filepath.Abs(buildDir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", buildDir, err)
		}
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

// reportFailure prints the failure's message, taxonomy name, and a
// structural dump before the process exits nonzero.
func reportFailure(err error) {
	fmt.Fprintf(os.Stderr, "\nbuild failed: %v\n", err)
	fmt.Fprintf(os.Stderr, "error type: %s\n", errorName(err))
	fmt.Fprintf(os.Stderr, "detail: %#v\n", err)
}

func errorName(err error) string {
	var usage *pipeline.UsageError
	var cfg *config.ConfigError
	var source *plugin.SourceUnavailableError
	var version *release.VersionMismatchError
	switch {
	case errors.As(err, &usage):
		return "UsageError"
	case errors.As(err, &cfg):
		return "ConfigError"
	case errors.As(err, &source):
		return "SourceUnavailableError"
	case errors.As(err, &version):
		return "VersionMismatchError"
	default:
		return "IOError"
	}
}
