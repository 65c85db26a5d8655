package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dauglyon/kbase-ui/internal/pipeline"
	"github.com/dauglyon/kbase-ui/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <build-type>",
	Short: "Rebuild on source or config changes",
	Args:  requireBuildType,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir()
		if err != nil {
			return err
		}

		w := watch.New(dir, func(ctx context.Context) error {
			_, err := pipeline.New(dir).Run(ctx, args[0])
			return err
		})
		return w.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVarP(&buildDir, "dir", "C", "", "Project directory (defaults to the working directory)")
}
