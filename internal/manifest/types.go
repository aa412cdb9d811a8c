// Package manifest models the declarative recipe modda installs from: an
// ordered list of modules, each naming a location to fetch from and the
// components to install, plus the file mutations to apply before staging.
package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Manifest is the immutable root of an installation recipe.
type Manifest struct {
	Version string   `yaml:"version,omitempty"`
	Global  Global   `yaml:"global"`
	Modules []Module `yaml:"modules"`

	// Path is the filesystem location the manifest was loaded from. It is
	// not serialized; it anchors relative Location/PatchSpec resolution.
	Path string `yaml:"-"`
}

// Global holds installation-wide settings shared by every module.
type Global struct {
	LangDir         string   `yaml:"lang_dir"`
	LangPreferences []string `yaml:"lang_preferences,omitempty"`
	LocalPatches    string   `yaml:"local_patches,omitempty"`
}

// Module is one installation step: fetch, extract, mutate, stage, install.
type Module struct {
	Name           string            `yaml:"name"`
	Components     ComponentSelector `yaml:"components"`
	Location       Location          `yaml:"location,omitempty"`
	IgnoreWarnings bool              `yaml:"ignore_warnings,omitempty"`
	Description    string            `yaml:"description,omitempty"`
	AddConf        *AddConf          `yaml:"add_conf,omitempty"`
}

// UnmarshalYAML decodes every field of Module normally except Location,
// which is a tagged interface and is dispatched by unmarshalLocation.
func (m *Module) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKnownFields(node, "name", "components", "location", "ignore_warnings", "description", "add_conf"); err != nil {
		return fmt.Errorf("module: %w", err)
	}

	type rawModule struct {
		Name           string            `yaml:"name"`
		Components     ComponentSelector `yaml:"components"`
		Location       yaml.Node         `yaml:"location,omitempty"`
		IgnoreWarnings bool              `yaml:"ignore_warnings,omitempty"`
		Description    string            `yaml:"description,omitempty"`
		AddConf        *AddConf          `yaml:"add_conf,omitempty"`
	}
	var raw rawModule
	if err := node.Decode(&raw); err != nil {
		return err
	}

	m.Name = raw.Name
	m.Components = raw.Components
	m.IgnoreWarnings = raw.IgnoreWarnings
	m.Description = raw.Description
	m.AddConf = raw.AddConf

	if raw.Location.Kind != 0 {
		loc, err := unmarshalLocation(&raw.Location)
		if err != nil {
			return err
		}
		m.Location = loc
	}
	return nil
}

// AddConf names a verbatim file written into the mod root after patch and
// replace mutators have run.
type AddConf struct {
	FileName string `yaml:"file_name"`
	Content  string `yaml:"content"`
}

// PatchSpec names a unified-diff file, relative to the effective patch
// root, and the encoding its target files are stored in.
type PatchSpec struct {
	Relative string   `yaml:"relative"`
	Encoding Encoding `yaml:"encoding,omitempty"`
}

// Encoding is one of the three text encodings modda understands for patch
// and replace targets.
type Encoding string

const (
	EncodingUTF8    Encoding = "UTF8"
	EncodingWin1252 Encoding = "WIN1252"
	EncodingWin1251 Encoding = "WIN1251"
)

// ReplaceOp runs a regular expression substitution over every file matched
// by FileGlobs, rooted at the mod directory.
type ReplaceOp struct {
	FileGlobs []string `yaml:"file_globs"`
	Replace   string   `yaml:"replace"`
	With      string   `yaml:"with"`
}
