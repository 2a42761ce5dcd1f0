package pathutil

import "strings"

// Compare orders two paths. The empty string stands for a missing path and
// orders before any other value.
func (s Style) Compare(a, b string, cc CaseComparison, fe FolderEquality) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	a = s.comparable(a, fe)
	b = s.comparable(b, fe)
	if s.IgnoresCase(cc) {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return strings.Compare(a, b)
}

// Equals reports whether a and b name the same path under the given policies.
func (s Style) Equals(a, b string, cc CaseComparison, fe FolderEquality) bool {
	return s.Compare(a, b, cc, fe) == 0
}

func (s Style) comparable(path string, fe FolderEquality) string {
	if normalized, err := s.NormalizePattern(path); err == nil {
		path = normalized
	}
	if fe == RespectAmbiguity {
		path = s.TrimEndSeparator(path)
	}
	return path
}

// FolderPath returns the folder containing path. ok is false for roots and for
// single relative segments.
func (s Style) FolderPath(path string) (string, bool) {
	trimmed := s.TrimEndSeparator(path)
	root := s.rootLength(trimmed)
	if len(trimmed) <= root {
		return "", false
	}

	index := len(trimmed) - 1
	for index >= 0 && !s.IsSeparator(trimmed[index]) {
		index--
	}
	if index < root {
		if root == 0 {
			return "", false
		}
		return s.Root(trimmed)
	}
	return trimmed[:index], true
}

// Base returns the final segment of path.
func (s Style) Base(path string) string {
	trimmed := s.TrimEndSeparator(path)
	root := s.rootLength(trimmed)
	index := len(trimmed) - 1
	for index >= root && !s.IsSeparator(trimmed[index]) {
		index--
	}
	if index < root {
		return trimmed[root:]
	}
	return trimmed[index+1:]
}

// Root returns the filesystem root of a rooted path, ending with a separator.
func (s Style) Root(path string) (string, bool) {
	root := s.rootLength(path)
	if root == 0 {
		return "", false
	}
	prefix := path[:root]
	if !s.IsSeparator(prefix[len(prefix)-1]) {
		prefix += string(s.Separator(true))
	}
	return prefix, true
}

// Join appends name to folder with a single separator.
func (s Style) Join(folder, name string) string {
	if folder == "" {
		return name
	}
	if s.HasEndSeparator(folder) {
		return folder + name
	}
	return folder + string(s.Separator(s.IsRooted(folder))) + name
}
