package utils

import (
	"path/filepath"
	"strings"

	"github.com/funvibe/symtab/internal/config"
)

// FunctionName derives a function name from a file path.
// It takes the base filename and removes any recognized function extension.
func FunctionName(path string) string {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	if config.HasFunctionFileExt(name) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// ClassFromDir returns the class name of an @class directory.
func ClassFromDir(dir string) (string, bool) {
	base := filepath.Base(dir)
	if strings.HasPrefix(base, config.ClassDirPrefix) && len(base) > len(config.ClassDirPrefix) {
		return base[len(config.ClassDirPrefix):], true
	}
	return "", false
}

// PackageFromDir returns the package name of a +pkg directory.
func PackageFromDir(dir string) (string, bool) {
	base := filepath.Base(dir)
	if strings.HasPrefix(base, config.PackageDirPrefix) && len(base) > len(config.PackageDirPrefix) {
		return base[len(config.PackageDirPrefix):], true
	}
	return "", false
}

// IsPrivateDir reports whether dir is a private function directory.
func IsPrivateDir(dir string) bool {
	return filepath.Base(dir) == config.PrivateDir
}

// SplitQualified splits "a.b.name" into the package qualifier "a.b" and
// the name.
func SplitQualified(full string) (pkg, name string) {
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

// PackageSegments splits a package qualifier into its directory names.
func PackageSegments(pkg string) []string {
	if pkg == "" {
		return nil
	}
	return strings.Split(pkg, ".")
}

// IsUnder reports whether path lies inside root.
func IsUnder(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
