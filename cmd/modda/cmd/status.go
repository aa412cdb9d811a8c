package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/reverse"
	"github.com/modda-mods/modda/internal/sandbox"
	"github.com/modda-mods/modda/internal/stage"
)

var statusManifestPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a compact per-module status table",
	Long: `Prints, per module, whether it is staged, how many components
weidu.log records as installed, and an outcome read from the whole setup
log: "error" if any line starts with ERROR, else "warning" if any line
starts with WARNING, else "clean". Makes no network calls.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusManifestPath == "" {
			return modderr.New(modderr.KindManifest, "", fmt.Errorf("--manifest is required"))
		}

		m, err := manifest.Load(statusManifestPath)
		if err != nil {
			return modderr.New(modderr.KindManifest, "", err)
		}

		installedCounts := installedComponentCounts(gameDir)

		fmt.Printf("%-24s %-8s %-10s %s\n", "MODULE", "STAGED", "INSTALLED", "OUTCOME")
		for _, mod := range m.Modules {
			canonical := sandbox.CanonicalName(mod.Name)
			staged := stage.AlreadyStaged(gameDir, canonical)

			stagedLabel := "no"
			if staged {
				stagedLabel = "yes"
			}

			outcome := "n/a"
			if staged {
				outcome = setupLogOutcome(gameDir, canonical)
			}

			fmt.Printf("%-24s %-8s %-10d %s\n", mod.Name, stagedLabel, installedCounts[canonical], outcome)
		}
		return nil
	},
}

// installedComponentCounts reads weidu.log, if present, and counts entries
// per module — a best-effort report, not a correctness check.
func installedComponentCounts(gameDir string) map[string]int {
	counts := map[string]int{}
	f, err := os.Open(filepath.Join(gameDir, "weidu.log"))
	if err != nil {
		return counts
	}
	defer f.Close()

	entries, err := reverse.ParseLog(f)
	if err != nil {
		return counts
	}
	for _, e := range entries {
		counts[e.Module]++
	}
	return counts
}

func setupLogOutcome(gameDir, canonical string) string {
	logPath := filepath.Join(gameDir, canonical, "setup-"+canonical+".log")
	f, err := os.Open(logPath)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	hasWarning, hasError := false, false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "ERROR") {
			hasError = true
		}
		if strings.HasPrefix(line, "WARNING") {
			hasWarning = true
		}
	}
	switch {
	case hasError:
		return "error"
	case hasWarning:
		return "warning"
	default:
		return "clean"
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusManifestPath, "manifest", "", "path to the manifest file")
	rootCmd.AddCommand(statusCmd)
}
