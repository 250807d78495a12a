package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level symtab.yaml configuration.
type Settings struct {
	// Path lists the search path directories, highest precedence first.
	// Relative entries are resolved against the settings file.
	Path []string `yaml:"path"`

	// SystemRoot is the installation tree. Function files under it are
	// "system" files for the purposes of IgnoreFunctionTimeStamp.
	SystemRoot string `yaml:"system_root,omitempty"`

	// IgnoreFunctionTimeStamp is one of "all", "system" or "none".
	// Defaults to "system".
	IgnoreFunctionTimeStamp string `yaml:"ignore_function_time_stamp,omitempty"`

	Autoload AutoloadSettings `yaml:"autoload,omitempty"`
	Log      LogSettings      `yaml:"log,omitempty"`

	// Watch starts a filesystem watcher over the search path.
	Watch bool `yaml:"watch,omitempty"`
}

// AutoloadSettings configures the autoload index.
type AutoloadSettings struct {
	// Database is an SQLite file holding persistent autoload entries.
	// When empty the index lives in memory only.
	Database string `yaml:"database,omitempty"`

	// Entries maps function names to the files that define them.
	Entries map[string]string `yaml:"entries,omitempty"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	// Level is a zap level name. Defaults to "info".
	Level string `yaml:"level,omitempty"`

	// Format is "console" or "json". Defaults to "console".
	Format string `yaml:"format,omitempty"`
}

// LoadSettings reads and parses a symtab.yaml file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return ParseSettings(data, path)
}

// ParseSettings parses symtab.yaml content from bytes.
// The path argument is used for error messages and to resolve relative
// directories.
func ParseSettings(data []byte, path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.setDefaults(filepath.Dir(path))
	return &s, nil
}

// SaveTimeStampMode records mode as ignore_function_time_stamp in the
// settings file at path. The rest of the file, comments included, is
// kept as it is.
func SaveTimeStampMode(path, mode string) error {
	return setTopLevel(path, "ignore_function_time_stamp", mode)
}

// setTopLevel sets a top-level scalar key and rewrites the file, refusing
// to write anything ParseSettings would reject.
func setTopLevel(path, key, val string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading settings %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading settings %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind == 0 {
		// Empty file.
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", path)
	}

	root := doc.Content[0]
	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != key {
			continue
		}
		v := root.Content[i+1]
		v.Kind, v.Tag, v.Value, v.Style, v.Content = yaml.ScalarNode, "!!str", val, 0, nil
		found = true
		break
	}
	if !found {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if _, err := ParseSettings(buf.Bytes(), path); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}

// FindSettings searches for symtab.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error if none is found.
func FindSettings(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{SettingsFileName, SettingsFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Default returns the settings used when no file is found.
func Default() *Settings {
	s := &Settings{}
	s.setDefaults("")
	return s
}

// validate checks the settings for semantic errors.
func (s *Settings) validate(path string) error {
	switch s.IgnoreFunctionTimeStamp {
	case "", "all", "system", "none":
	default:
		return fmt.Errorf("%s: ignore_function_time_stamp: %q is not one of all, system, none",
			path, s.IgnoreFunctionTimeStamp)
	}

	switch s.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%s: log.format: %q is not one of console, json", path, s.Log.Format)
	}

	seen := make(map[string]int)
	for i, dir := range s.Path {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s: path[%d]: empty directory", path, i)
		}
		if prev, ok := seen[dir]; ok {
			return fmt.Errorf("%s: path[%d]: %q already listed at path[%d]", path, i, dir, prev)
		}
		seen[dir] = i
	}

	for name, file := range s.Autoload.Entries {
		if name == "" || file == "" {
			return fmt.Errorf("%s: autoload.entries: name and file are required", path)
		}
		if !HasFunctionFileExt(file) {
			return fmt.Errorf("%s: autoload.entries[%s]: %q is not a function file", path, name, file)
		}
	}

	return nil
}

// setDefaults fills in omitted fields and makes relative paths absolute
// with respect to base.
func (s *Settings) setDefaults(base string) {
	if s.IgnoreFunctionTimeStamp == "" {
		s.IgnoreFunctionTimeStamp = "system"
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "console"
	}
	if base == "" {
		return
	}
	for i, dir := range s.Path {
		s.Path[i] = resolve(base, dir)
	}
	if s.SystemRoot != "" {
		s.SystemRoot = resolve(base, s.SystemRoot)
	}
	if s.Autoload.Database != "" {
		s.Autoload.Database = resolve(base, s.Autoload.Database)
	}
	for name, file := range s.Autoload.Entries {
		s.Autoload.Entries[name] = resolve(base, file)
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// HasFunctionFileExt reports whether name ends in a function file
// extension.
func HasFunctionFileExt(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range FunctionFileExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
