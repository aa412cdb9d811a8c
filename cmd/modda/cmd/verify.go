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
	"github.com/modda-mods/modda/internal/sandbox"
	"github.com/modda-mods/modda/internal/stage"
)

var verifyManifestPath string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every module is staged with a clean setup log",
	Long: `For each module, reports whether <mod>/<mod>.tp2 (or setup-<mod>.tp2) is
present in the game directory and whether setup-<mod>.log contains any
ERROR line. Makes no network calls and does not validate mod semantics,
only presence and log cleanliness.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verifyManifestPath == "" {
			return modderr.New(modderr.KindManifest, "", fmt.Errorf("--manifest is required"))
		}

		m, err := manifest.Load(verifyManifestPath)
		if err != nil {
			return modderr.New(modderr.KindManifest, "", err)
		}

		logger := newLogger()
		dirty := false

		for _, mod := range m.Modules {
			canonical := sandbox.CanonicalName(mod.Name)
			staged := stage.AlreadyStaged(gameDir, canonical)
			clean := true
			if staged {
				clean, err = setupLogIsClean(gameDir, canonical)
				if err != nil {
					return modderr.New(modderr.KindConfiguration, mod.Name, err)
				}
			}

			switch {
			case !staged:
				dirty = true
				logger.Infof("%-24s not staged", mod.Name)
			case !clean:
				dirty = true
				logger.Infof("%-24s staged, setup log has ERROR lines", mod.Name)
			default:
				logger.Infof("%-24s ok", mod.Name)
			}
		}

		if dirty {
			return modderr.New(modderr.KindInstall, "", fmt.Errorf("one or more modules are not staged or have a dirty setup log"))
		}
		return nil
	},
}

func setupLogIsClean(gameDir, canonical string) (bool, error) {
	logPath := filepath.Join(gameDir, canonical, "setup-"+canonical+".log")
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "ERROR") {
			return false, nil
		}
	}
	return true, sc.Err()
}

func init() {
	verifyCmd.Flags().StringVar(&verifyManifestPath, "manifest", "", "path to the manifest file")
	rootCmd.AddCommand(verifyCmd)
}
