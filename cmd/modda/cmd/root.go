// Package cmd wires modda's subcommands: install, reverse, verify, status,
// init. Global state (config path, game directory, verbosity) is resolved
// once here and threaded down to each RunE.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/sandbox"
)

var (
	configPath string
	gameDir    string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "modda",
	Short: "Reproducible mod installation for Infinity Engine games",
	Long: `modda installs a manifest of mods into an Infinity Engine game
directory: fetching each mod's archive, extracting and mutating it, then
driving weidu to install its components, in the order the manifest lists
them. reverse recovers a skeleton manifest from an existing weidu.log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "override modda.yml discovery")
	rootCmd.PersistentFlags().StringVar(&gameDir, "game-dir", ".", "game installation directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
}

// Execute runs the root command and returns the process exit code per the
// configuration/fetch/extraction/mutation/install/concurrency taxonomy.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, err)

	var modErr *modderr.Error
	if errors.As(err, &modErr) {
		if modErr.Kind == modderr.KindInstall {
			renderSetupLogTail(modErr.Module)
		}
		return modErr.Kind.ExitCode()
	}
	return 2
}

// renderSetupLogTail prints the tail of a failed module's setup-<name>.log,
// the "relevant tail" the error-handling design documents alongside the
// errors.As-driven exit code. A missing or unreadable log is not itself an
// error worth reporting here — the install error already was.
func renderSetupLogTail(moduleName string) {
	if moduleName == "" {
		return
	}
	canonical := sandbox.CanonicalName(moduleName)
	logPath := filepath.Join(gameDir, canonical, "setup-"+canonical+".log")

	tail, err := tailLines(logPath, setupLogTailLines)
	if err != nil || tail == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "\n--- tail of %s ---\n%s\n", logPath, tail)
}

const setupLogTailLines = 20

func tailLines(path string, n int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}
