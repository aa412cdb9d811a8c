package mutate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/modda-mods/modda/internal/logging"
	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
)

// advisoryEncoding records which charset a replace target was actually
// decoded with, so it can be written back the same way.
type advisoryEncoding int

const (
	advisoryUTF8 advisoryEncoding = iota
	advisoryWin1252
)

// decodeAdvisory opens content as UTF-8; if that fails to validate, it
// falls back to Windows-1252, a common source of WeiDU-era mod text. The
// fallback is advisory only — callers should log when encUsed != advisoryUTF8.
func decodeAdvisory(raw []byte) (string, advisoryEncoding, error) {
	if utf8.Valid(raw) {
		return string(raw), advisoryUTF8, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return "", advisoryUTF8, fmt.Errorf("neither UTF-8 nor Windows-1252 decoding succeeded: %w", err)
	}
	return string(out), advisoryWin1252, nil
}

func encodeAdvisory(text string, enc advisoryEncoding) ([]byte, error) {
	if enc == advisoryUTF8 {
		return []byte(text), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(text))
	return out, err
}

// ApplyReplace glob-expands op.FileGlobs under modRoot and runs the regular
// expression substitution against every matched file. An empty match set is
// not an error. logger may be nil, in which case the advisory encoding
// fallback simply isn't logged.
func ApplyReplace(logger *logging.Logger, moduleName, modRoot string, op manifest.ReplaceOp) error {
	re, err := regexp.Compile(op.Replace)
	if err != nil {
		return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("compiling replace regex %q: %w", op.Replace, err))
	}

	fsys := os.DirFS(modRoot)
	matched := map[string]bool{}
	for _, pattern := range op.FileGlobs {
		names, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("expanding glob %q: %w", pattern, err))
		}
		for _, n := range names {
			matched[n] = true
		}
	}

	with := convertBackreferences(op.With)

	for rel := range matched {
		path := filepath.Join(modRoot, rel)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("reading %s: %w", rel, err))
		}

		text, encUsed, err := decodeAdvisory(raw)
		if err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("decoding %s: %w", rel, err))
		}
		if encUsed == advisoryWin1252 && logger != nil {
			logger.Infof("module %s: %s is not valid UTF-8, decoded as Windows-1252", moduleName, rel)
		}

		replaced := re.ReplaceAllString(text, with)

		out, err := encodeAdvisory(replaced, encUsed)
		if err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("encoding %s: %w", rel, err))
		}

		if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("writing %s: %w", rel, err))
		}
	}
	return nil
}

// convertBackreferences turns sed/PCRE-style $1 numeric backreferences
// (already Go regexp syntax) through unchanged; Go's regexp already
// understands ${1} and $1, so this is a pass-through kept as a named step
// in case future manifest syntax diverges from Go's own.
func convertBackreferences(with string) string {
	return with
}
