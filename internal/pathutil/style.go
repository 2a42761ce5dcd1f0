package pathutil

import (
	"errors"
	"runtime"
)

// ErrInvalidPath is returned for paths that fail validation.
var ErrInvalidPath = errors.New("invalid path")

// Style describes the path syntax of a platform.
type Style int

const (
	// Unix paths use '/' only and are rooted when they start with '/'. The
	// zero Style behaves like Unix.
	Unix Style = iota + 1
	// Windows paths accept both '\' and '/', are rooted by a drive ("c:\") or
	// a UNC share ("\\host\share"), and compare case-insensitively by default.
	Windows
)

// NativeStyle returns the style of the running platform.
func NativeStyle() Style {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return Unix
}

func (s Style) String() string {
	switch s {
	case Windows:
		return "windows"
	default:
		return "unix"
	}
}

// CaseComparison selects how paths are compared.
type CaseComparison int

const (
	// EnvironmentDefault is case-sensitive for Unix and insensitive for Windows.
	EnvironmentDefault CaseComparison = iota
	RespectCase
	IgnoreCase
)

func (c CaseComparison) String() string {
	switch c {
	case RespectCase:
		return "respect"
	case IgnoreCase:
		return "ignore"
	default:
		return "environment"
	}
}

// ParseCaseComparison maps a config value to a CaseComparison.
func ParseCaseComparison(value string) (CaseComparison, bool) {
	switch value {
	case "", "environment", "default":
		return EnvironmentDefault, true
	case "respect", "sensitive":
		return RespectCase, true
	case "ignore", "insensitive":
		return IgnoreCase, true
	default:
		return EnvironmentDefault, false
	}
}

// FolderEquality selects whether a trailing separator is significant.
type FolderEquality int

const (
	// RespectAmbiguity treats "/a/b" and "/a/b/" as the same path.
	RespectAmbiguity FolderEquality = iota
	// RequireExplicitEndSeparator treats them as different paths.
	RequireExplicitEndSeparator
)

// IgnoresCase reports whether comparisons under cc fold case for this style.
func (s Style) IgnoresCase(cc CaseComparison) bool {
	switch cc {
	case RespectCase:
		return false
	case IgnoreCase:
		return true
	default:
		return s == Windows
	}
}

// IsSeparator reports whether c is a separator in this style.
func (s Style) IsSeparator(c byte) bool {
	if c == '/' {
		return true
	}
	return s == Windows && c == '\\'
}

// Separator returns the canonical separator for rooted or relative paths.
func (s Style) Separator(rooted bool) byte {
	if s == Windows && rooted {
		return '\\'
	}
	return '/'
}

// SeparatorChars returns every separator of the style, for building character classes.
func (s Style) SeparatorChars() string {
	if s == Windows {
		return `\/`
	}
	return "/"
}

// IsRooted reports whether path starts with a filesystem root.
func (s Style) IsRooted(path string) bool {
	return s.rootLength(path) > 0
}

// rootLength returns the length of the root prefix, including its trailing
// separator when present.
func (s Style) rootLength(path string) int {
	if s != Windows {
		if len(path) > 0 && path[0] == '/' {
			return 1
		}
		return 0
	}

	if len(path) >= 3 && isLetter(path[0]) && path[1] == ':' && s.IsSeparator(path[2]) {
		return 3
	}
	if len(path) >= 2 && s.IsSeparator(path[0]) && s.IsSeparator(path[1]) {
		index := 2
		for index < len(path) && !s.IsSeparator(path[index]) {
			index++
		}
		if index == 2 || index == len(path) {
			return 0
		}
		index++
		shareStart := index
		for index < len(path) && !s.IsSeparator(path[index]) {
			index++
		}
		if index == shareStart {
			return 0
		}
		if index < len(path) {
			return index + 1
		}
		return index
	}
	return 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
