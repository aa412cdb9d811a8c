// Package reverse recovers a skeleton manifest from an existing install:
// weidu.log names the installed modules and components, weidu.conf names
// the active language directory.
package reverse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/weidu"
)

// logLine matches one weidu.log entry:
// ~<TP2_PATH>~ #<lang> #<index> // <comment>
var logLine = regexp.MustCompile(`(?i)^~(?:.*/)?(?:setup-)?(.*)\.tp2~\s+#([0-9]+)\s+#([0-9]+)\s*//\s*(.*)$`)

// LogEntry is one parsed weidu.log row.
type LogEntry struct {
	Module        string
	LangIndex     int
	ComponentIdx  int
	ComponentName string
}

// ParseLog parses weidu.log content into an ordered slice of entries, one
// per installed component, in file order.
func ParseLog(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		m := logLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		langIdx, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("weidu.log line %d: invalid language index %q", lineNo, m[2])
		}
		compIdx, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, fmt.Errorf("weidu.log line %d: invalid component index %q", lineNo, m[3])
		}
		entries = append(entries, LogEntry{
			Module:        strings.ToLower(m[1]),
			LangIndex:     langIdx,
			ComponentIdx:  compIdx,
			ComponentName: strings.TrimSpace(m[4]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading weidu.log: %w", err)
	}
	return entries, nil
}

// GroupByModule folds consecutive same-module entries into a Module,
// matching weidu.log's own grouping: a module reappearing later (a
// re-grouped install) starts a new, separate Module entry rather than
// merging into the earlier one, preserving listed order.
func GroupByModule(entries []LogEntry) []manifest.Module {
	var modules []manifest.Module
	for _, e := range entries {
		if n := len(modules); n > 0 && modules[n-1].Name == e.Module {
			last := &modules[n-1]
			last.Components.Entries = append(last.Components.Entries, manifest.ComponentEntry{
				Index:         e.ComponentIdx,
				ComponentName: e.ComponentName,
			})
			continue
		}
		modules = append(modules, manifest.Module{
			Name: e.Module,
			Components: manifest.ComponentSelector{
				Entries: []manifest.ComponentEntry{{
					Index:         e.ComponentIdx,
					ComponentName: e.ComponentName,
				}},
			},
		})
	}
	return modules
}

// langGuessTable maps a language-directory prefix to a guessed ordered list
// of lang_preferences, the same small table the install-log reverse path
// has always used to avoid asking the user to fill this back in by hand.
var langGuessTable = map[string][]string{
	"en": {"english", "american english"},
	"fr": {"#rx#^fran[cç]ais", "french"},
	"es": {"#rx#^espa[ñn]ol", "spanish"},
}

// GuessLangPreferences picks a guess table entry by the first two
// characters of langDir, case-insensitively, or nil if none match.
func GuessLangPreferences(langDir string) []string {
	if len(langDir) < 2 {
		return nil
	}
	prefix := strings.ToLower(langDir[:2])
	if prefs, ok := langGuessTable[prefix]; ok {
		out := make([]string, len(prefs))
		copy(out, prefs)
		return out
	}
	return nil
}

// Generate builds a skeleton Manifest from a weidu.log and weidu.conf pair
// under gameDir.
func Generate(gameDir string) (*manifest.Manifest, error) {
	logPath := filepath.Join(gameDir, "weidu.log")
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", logPath, err)
	}
	defer f.Close()

	entries, err := ParseLog(f)
	if err != nil {
		return nil, err
	}

	langDir, err := weidu.ReadConfLangDir(gameDir)
	if err != nil {
		return nil, err
	}
	if langDir == "" {
		langDir = "en_us"
	}

	return &manifest.Manifest{
		Version: "1",
		Global: manifest.Global{
			LangDir:         langDir,
			LangPreferences: GuessLangPreferences(langDir),
		},
		Modules: GroupByModule(entries),
	}, nil
}

// WriteTo marshals m as YAML and writes it to outputPath, refusing to
// overwrite an existing file — reverse only ever creates new output.
func WriteTo(m *manifest.Manifest, outputPath string) error {
	f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("writing manifest %s: %w", outputPath, err)
	}
	return enc.Close()
}
