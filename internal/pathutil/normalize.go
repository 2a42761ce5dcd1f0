package pathutil

import (
	"fmt"
	"strings"
)

// Normalize validates path and rewrites it with the canonical separator for its
// orientation. Repeated separators after the root prefix are collapsed.
func (s Style) Normalize(path string) (string, error) {
	return s.normalize(path, false)
}

// NormalizePattern is Normalize with '*' and '?' accepted as path characters.
func (s Style) NormalizePattern(path string) (string, error) {
	return s.normalize(path, true)
}

func (s Style) normalize(path string, wildcards bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	if err := s.validate(path, wildcards); err != nil {
		return "", err
	}

	root := s.rootLength(path)
	sep := s.Separator(root > 0)

	builder := strings.Builder{}
	builder.Grow(len(path))
	for index := 0; index < root; index++ {
		if s.IsSeparator(path[index]) {
			builder.WriteByte(sep)
			continue
		}
		builder.WriteByte(path[index])
	}

	previousSep := root > 0 && s.IsSeparator(path[root-1])
	for index := root; index < len(path); index++ {
		c := path[index]
		if s.IsSeparator(c) {
			if previousSep {
				continue
			}
			previousSep = true
			builder.WriteByte(sep)
			continue
		}
		previousSep = false
		builder.WriteByte(c)
	}
	return builder.String(), nil
}

func (s Style) validate(path string, wildcards bool) error {
	for index := 0; index < len(path); index++ {
		c := path[index]
		if c == 0 {
			return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, path)
		}
		if s != Windows {
			continue
		}
		switch {
		case c < 32:
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidPath, path)
		case c == '<' || c == '>' || c == '"' || c == '|':
			return fmt.Errorf("%w: %q contains %q", ErrInvalidPath, path, c)
		case c == ':' && !(index == 1 && isLetter(path[0])):
			return fmt.Errorf("%w: %q has a misplaced ':'", ErrInvalidPath, path)
		case (c == '*' || c == '?') && !wildcards:
			return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidPath, path)
		}
	}
	if s == Windows && len(path) == 2 && path[1] == ':' {
		return fmt.Errorf("%w: %q is drive-relative", ErrInvalidPath, path)
	}
	return nil
}

// Fold applies the case policy to an already normalized path.
func (s Style) Fold(path string, cc CaseComparison) string {
	if s.IgnoresCase(cc) {
		return strings.ToLower(path)
	}
	return path
}

// HasEndSeparator reports whether path ends with a separator.
func (s Style) HasEndSeparator(path string) bool {
	return path != "" && s.IsSeparator(path[len(path)-1])
}

// TrimEndSeparator removes trailing separators, never shortening a root.
func (s Style) TrimEndSeparator(path string) string {
	root := s.rootLength(path)
	end := len(path)
	for end > root && s.IsSeparator(path[end-1]) {
		end--
	}
	return path[:end]
}

// UniqueFile returns the registry form of a file path. Explicit folder forms
// (trailing separator) are rejected.
func (s Style) UniqueFile(path string, cc CaseComparison) (string, error) {
	normalized, err := s.Normalize(path)
	if err != nil {
		return "", err
	}
	if s.HasEndSeparator(normalized) {
		return "", fmt.Errorf("%w: %q names a folder", ErrInvalidPath, path)
	}
	return s.Fold(normalized, cc), nil
}

// UniqueFolder returns the registry form of a folder path, always ending with
// the canonical separator.
func (s Style) UniqueFolder(path string, cc CaseComparison) (string, error) {
	normalized, err := s.Normalize(path)
	if err != nil {
		return "", err
	}
	if !s.HasEndSeparator(normalized) {
		normalized += string(s.Separator(s.IsRooted(normalized)))
	}
	return s.Fold(normalized, cc), nil
}
