package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the build and dist trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := projectDir()
		if err != nil {
			return err
		}
		for _, sub := range []string{"build", "dist"} {
			target := filepath.Join(dir, sub)
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("failed to remove %s: %w", target, err)
			}
			fmt.Printf("removed %s\n", target)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&buildDir, "dir", "C", "", "Project directory (defaults to the working directory)")
}
