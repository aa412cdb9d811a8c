package weidu

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var langDirLine = regexp.MustCompile(`(?i)lang_dir(\s)+=(\s)+([a-zA-Z_]+)`)

// ReadConfLangDir reads the lang_dir key out of gameDir/weidu.conf, if the
// file exists. A missing file is not an error — it returns ("", nil).
func ReadConfLangDir(gameDir string) (string, error) {
	path := filepath.Join(gameDir, "weidu.conf")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("opening weidu.conf: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if m := langDirLine.FindStringSubmatch(sc.Text()); m != nil {
			return strings.ToLower(m[3]), nil
		}
	}
	return "", sc.Err()
}

// CheckConfLangDir cross-checks an existing weidu.conf's lang_dir against
// the manifest's resolved global.lang_dir, failing fast on a mismatch
// rather than letting weidu silently install in the wrong language.
func CheckConfLangDir(gameDir, manifestLangDir string) error {
	existing, err := ReadConfLangDir(gameDir)
	if err != nil {
		return err
	}
	if existing == "" {
		return nil
	}
	if !strings.EqualFold(existing, manifestLangDir) {
		return fmt.Errorf("lang_dir in manifest (%s) does not match existing weidu.conf (%s)", manifestLangDir, existing)
	}
	return nil
}
