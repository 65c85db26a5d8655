package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dauglyon/kbase-ui/internal/archive"
	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
)

const (
	// defaultGithubAccount owns plugin repositories unless the
	// descriptor names another account.
	defaultGithubAccount = "kbase"

	// prebuiltArchiveName is the payload a plugin repository may ship at
	// its root instead of a checked-in working directory.
	prebuiltArchiveName = "dist.tar.gz"

	// archiveSubpath is the fixed path of the installable tree inside an
	// extracted prebuilt archive.
	archiveSubpath = "dist/plugin"
)

// fetchGithub clones the plugin repository into the scratch download area
// and resolves the installable source tree inside the clone: a prebuilt
// archive wins over a configured working directory; neither is fatal.
func (s *Sourcer) fetchGithub(ctx context.Context, desc ir.PluginDescriptor, src ir.GithubSource) (string, error) {
	log := logging.WithStage("install-plugins")

	cloneDir := filepath.Join(s.DownloadDir, desc.Name)
	url := src.URL
	if url == "" {
		account := src.Account
		if account == "" {
			account = defaultGithubAccount
		}
		repo := src.Repo
		if repo == "" {
			repo = "kbase-ui-plugin-" + desc.Name
		}
		url = fmt.Sprintf("https://github.com/%s/%s", account, repo)
	}

	args := []string{"clone", "--depth", "1", "--quiet"}
	switch {
	case src.Branch != "":
		args = append(args, "--branch", src.Branch)
	case desc.Version != "":
		args = append(args, "--branch", "v"+desc.Version)
	}
	args = append(args, url, cloneDir)

	log.Info("cloning plugin", "plugin", desc.Name, "url", url)
	if _, err := s.Runner.Output(ctx, s.DownloadDir, "git", args...); err != nil {
		return "", fmt.Errorf("failed to clone plugin %s: %w", desc.Name, err)
	}

	archivePath := filepath.Join(cloneDir, prebuiltArchiveName)
	if fsutil.FileExists(archivePath) {
		extractDir := filepath.Join(cloneDir, "_extracted")
		if err := archive.ExtractTarGz(archivePath, extractDir); err != nil {
			return "", fmt.Errorf("failed to extract plugin %s archive: %w", desc.Name, err)
		}
		source := filepath.Join(extractDir, archiveSubpath)
		if !fsutil.DirExists(source) {
			return "", &SourceUnavailableError{
				Plugin: desc.Name,
				Reason: fmt.Sprintf("archive does not contain %s", archiveSubpath),
			}
		}
		return source, nil
	}

	if desc.CWD != "" {
		source := filepath.Join(cloneDir, desc.CWD)
		if !fsutil.DirExists(source) {
			return "", &SourceUnavailableError{
				Plugin: desc.Name,
				Reason: fmt.Sprintf("clone has no directory %s", desc.CWD),
			}
		}
		return source, nil
	}

	return "", &SourceUnavailableError{
		Plugin: desc.Name,
		Reason: "clone ships neither a prebuilt archive nor a working directory",
	}
}
