package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForce bool
var initOutputPath string

const initTemplate = `# modda configuration

# archive_cache: ~/.cache/modda
# extract_location: /tmp/modda-extract
# weidu_path: /usr/local/bin/weidu
# concurrency: 4
# connect_timeout_ms: 30000
# idle_timeout_ms: 300000

# extractors:
#   .rar:
#     command: unrar
#     args: ["x", "-o+", "${input}", "${target}"]
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter modda.yml configuration",
	Long: `Creates a modda.yml in the current directory with every optional
setting commented out, ready to uncomment as needed. Use --force to
overwrite an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := initOutputPath
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		logger := newLogger()
		logger.Infof("created %s", outPath)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOutputPath, "output", "modda.yml", "path to write the config scaffold")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
