package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// ValidationError holds multiple validation failures from Validate.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration error:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads and strictly decodes a modda.yml configuration file, then
// applies defaults for every field the document left unset.
func Load(path string) (*Config, error) {
	cfg, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// LoadRaw reads and strictly decodes a modda.yml layer's bare document,
// without applying defaults or validation. Callers overlaying several
// discovered layers (see the cmd package's loadConfig) merge each layer's
// LoadRaw result before applying defaults once, at the end.
func LoadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := Default()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a Config with every optional field left empty, ready for
// a caller to overlay a discovered file onto, or to use standalone when no
// modda.yml exists at all.
func Default() *Config {
	return &Config{}
}

// ApplyDefaults fills every field a document left unset with its default
// value. Load runs this on a single layer; loadConfig in the cmd package
// runs it once after merging every discovered layer together.
func ApplyDefaults(cfg *Config) {
	if cfg.ArchiveCache == "" {
		cfg.ArchiveCache = filepath.Join(xdg.CacheHome, "modda")
	}
	if cfg.ExtractLocation == "" {
		cfg.ExtractLocation = filepath.Join(os.TempDir(), "modda-extract")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ConnectTimeoutMS <= 0 {
		cfg.ConnectTimeoutMS = 30_000
	}
	if cfg.IdleTimeoutMS <= 0 {
		cfg.IdleTimeoutMS = 300_000
	}
}

// Validate checks semantic correctness beyond what strict YAML decoding
// catches: extractor commands must actually name a command.
func Validate(cfg *Config) []string {
	var errs []string
	for ext, ec := range cfg.Extractors {
		if ec.Command == "" {
			errs = append(errs, fmt.Sprintf("extractors[%s]: 'command' is required", ext))
		}
	}
	return errs
}

// LoadCredentials reads modda-credentials.yml if present. A missing file is
// not an error: callers get a nil *Credentials and simply cannot resolve
// any "PAT <name>" reference. On POSIX, a credentials file readable by
// group or other triggers a logged warning (returned here so the caller's
// logger, not this package, decides how to surface it) rather than a
// hard failure, since pre-existing installs must still load.
func LoadCredentials(path string) (*Credentials, string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading credentials %s: %w", path, err)
	}

	var warning string
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(path); statErr == nil {
			if info.Mode().Perm()&0o077 != 0 {
				warning = fmt.Sprintf("credentials file %s is readable by group or other; recommend chmod 600", path)
			}
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var creds Credentials
	if err := dec.Decode(&creds); err != nil {
		return nil, warning, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	return &creds, warning, nil
}
