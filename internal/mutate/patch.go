// Package mutate implements the three mutators applied to a staged mod
// tree, in the fixed order patch, replace, add_conf: unified-diff patching,
// regex-based file replacement, and verbatim config file injection.
package mutate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gdiff "github.com/sourcegraph/go-diff/diff"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
)

// ApplyPatch reads the unified-diff file named by spec (resolved against
// patchRoot) and applies each of its file hunks to the corresponding file
// under modRoot, preserving the target file's declared encoding and
// original line-ending style.
func ApplyPatch(moduleName, patchRoot, modRoot string, spec manifest.PatchSpec) error {
	diffPath := filepath.Join(patchRoot, spec.Relative)
	diffBytes, err := os.ReadFile(diffPath)
	if err != nil {
		return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("reading patch %s: %w", diffPath, err))
	}

	fileDiffs, err := gdiff.ParseMultiFileDiff(diffBytes)
	if err != nil {
		return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("parsing patch %s: %w", diffPath, err))
	}

	enc := encodingFor(spec.Encoding)

	for _, fd := range fileDiffs {
		targetRel := diffTargetName(fd)
		if targetRel == "" {
			continue
		}
		targetPath := filepath.Join(modRoot, targetRel)

		if err := applyFileDiff(targetPath, fd, enc); err != nil {
			return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("patching %s: %w", targetRel, err))
		}
	}
	return nil
}

// diffTargetName prefers the new name, falling back to the old one, and
// strips a/ b/ style prefixes a unified diff commonly carries.
func diffTargetName(fd *gdiff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

func applyFileDiff(targetPath string, fd *gdiff.FileDiff, enc encoding.Encoding) error {
	raw, err := os.ReadFile(targetPath)
	if err != nil {
		return fmt.Errorf("reading target: %w", err)
	}

	usesCRLF := bytes.Contains(raw, []byte("\r\n"))

	utf8Text, err := decode(raw, enc)
	if err != nil {
		return fmt.Errorf("decoding target: %w", err)
	}

	lines := splitLinesKeepEOF(utf8Text)

	for hunkIdx, hunk := range fd.Hunks {
		lines, err = applyHunk(lines, hunk)
		if err != nil {
			return fmt.Errorf("hunk %d: %w", hunkIdx+1, err)
		}
	}

	newText := strings.Join(lines, "\n")
	if usesCRLF {
		newText = strings.ReplaceAll(newText, "\n", "\r\n")
	}

	encoded, err := encodeText(newText, enc)
	if err != nil {
		return fmt.Errorf("encoding patched output: %w", err)
	}

	return os.WriteFile(targetPath, encoded, 0o644)
}

// applyHunk applies one hunk's body to lines (0-indexed), verifying that
// every context and removal line matches exactly before committing any
// change, and reporting the first mismatching line otherwise.
func applyHunk(lines []string, hunk *gdiff.Hunk) ([]string, error) {
	start := int(hunk.OrigStartLine) - 1
	if start < 0 {
		start = 0
	}
	if start > len(lines) {
		return nil, fmt.Errorf("hunk start line %d is past end of file (%d lines)", start+1, len(lines))
	}

	scanner := bufio.NewScanner(bytes.NewReader(hunk.Body))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var result []string
	result = append(result, lines[:start]...)

	pos := start
	for scanner.Scan() {
		raw := scanner.Text()
		if raw == "" {
			continue
		}
		tag, content := raw[0], raw[1:]

		switch tag {
		case ' ':
			if pos >= len(lines) || lines[pos] != content {
				return nil, fmt.Errorf("context mismatch at line %d: expected %q", pos+1, content)
			}
			result = append(result, lines[pos])
			pos++
		case '-':
			if pos >= len(lines) || lines[pos] != content {
				return nil, fmt.Errorf("context mismatch at line %d: expected to remove %q", pos+1, content)
			}
			pos++
		case '+':
			result = append(result, content)
		default:
			// unknown marker (e.g. "\ No newline at end of file"); ignore
		}
	}

	result = append(result, lines[pos:]...)
	return result, nil
}

func splitLinesKeepEOF(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, "\n")
}

func encodingFor(e manifest.Encoding) encoding.Encoding {
	switch e {
	case manifest.EncodingWin1252:
		return charmap.Windows1252
	case manifest.EncodingWin1251:
		return charmap.Windows1251
	default:
		return encoding.Nop
	}
}

func decode(raw []byte, enc encoding.Encoding) (string, error) {
	if enc == encoding.Nop {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func encodeText(text string, enc encoding.Encoding) ([]byte, error) {
	if enc == encoding.Nop {
		return []byte(text), nil
	}
	out, _, err := transform.Bytes(enc.NewEncoder(), []byte(text))
	if err != nil {
		return nil, err
	}
	return out, nil
}
