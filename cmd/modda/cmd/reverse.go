package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/reverse"
)

var reverseOutputPath string

var reverseCmd = &cobra.Command{
	Use:   "reverse",
	Short: "Emit a skeleton manifest from an existing install",
	Long: `Parses weidu.log, grouping consecutive same-module entries into
modules in listed order, and reads weidu.conf's lang_dir to fill in
global.lang_dir and a guessed lang_preferences. Refuses to overwrite an
existing output file. Never writes to the manifest install reads from —
reverse only ever creates the file named by --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reverseOutputPath == "" {
			return modderr.New(modderr.KindManifest, "", fmt.Errorf("--output is required"))
		}

		m, err := reverse.Generate(gameDir)
		if err != nil {
			return modderr.New(modderr.KindManifest, "", err)
		}

		if err := reverse.WriteTo(m, reverseOutputPath); err != nil {
			return modderr.New(modderr.KindManifest, "", err)
		}

		logger := newLogger()
		logger.Infof("wrote skeleton manifest with %d module(s) to %s", len(m.Modules), reverseOutputPath)
		return nil
	},
}

func init() {
	reverseCmd.Flags().StringVar(&reverseOutputPath, "output", "", "path to write the generated manifest")
	rootCmd.AddCommand(reverseCmd)
}
