// Package security keeps project datasets inside their project folder.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideProject is returned for paths that resolve outside the project
// folder.
var ErrOutsideProject = errors.New("path escapes project folder")

// ValidatePathWithinDirectory checks that filePath resolves inside dir once
// symlinks are followed. Paths that do not exist yet, the folder included,
// are checked through their nearest existing parent.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve %s: %w", filePath, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project folder %s: %w", dir, err)
	}
	rel, err := filepath.Rel(canonicalize(absDir), canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, ErrOutsideProject)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s: %w", filePath, ErrOutsideProject)
	}
	return nil
}

// canonicalize resolves symlinks in p, or in its deepest existing parent
// when p does not exist.
func canonicalize(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for check := p; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return p
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, p)
			return filepath.Join(resolved, rest)
		}
		check = parent
	}
}

// ResolveProjectPath joins a project-relative dataset path onto the project
// folder and rejects the result if it leaves the folder. Absolute paths are
// rejected outright.
func ResolveProjectPath(projectDir, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("empty dataset path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: absolute path: %w", rel, ErrOutsideProject)
	}
	full := filepath.Join(projectDir, filepath.FromSlash(rel))
	if err := ValidatePathWithinDirectory(full, projectDir); err != nil {
		return "", err
	}
	return full, nil
}

// RelativeProjectPath returns path relative to the project folder using
// forward slashes, as stored in the project document.
func RelativeProjectPath(projectDir, path string) (string, error) {
	if err := ValidatePathWithinDirectory(path, projectDir); err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// SanitizeFilename makes a safe file or folder name from an analysis or
// realization name. Runs of characters other than ASCII letters, digits,
// dot, underscore and dash become a single underscore, and the result is
// capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
