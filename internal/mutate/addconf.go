package mutate

import (
	"fmt"
	"path/filepath"

	"github.com/modda-mods/modda/internal/manifest"
	"github.com/modda-mods/modda/internal/modderr"
	"github.com/modda-mods/modda/internal/sandbox"
)

// ApplyAddConf writes conf.Content verbatim to conf.FileName inside
// modRoot, overwriting any pre-existing file of that name. Content is
// written byte-for-byte (UTF-8, whatever line endings the manifest author
// used) so "LF line endings preserved from content" is automatic.
func ApplyAddConf(moduleName, modRoot string, conf *manifest.AddConf) error {
	if conf == nil {
		return nil
	}
	if filepath.IsAbs(conf.FileName) || filepath.Clean(conf.FileName) != conf.FileName {
		return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("add_conf file_name %q is not a safe relative path", conf.FileName))
	}
	if err := sandbox.SafeWrite(modRoot, conf.FileName, []byte(conf.Content), 0o644); err != nil {
		return modderr.New(modderr.KindMutation, moduleName, fmt.Errorf("writing add_conf %s: %w", conf.FileName, err))
	}
	return nil
}
