// Package pattern compiles watch patterns whose final segment may contain
// '*' and '?' wildcards.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"pathwatch/internal/pathutil"
)

// ErrInvalidPattern is returned when a pattern does not follow the grammar.
var ErrInvalidPattern = errors.New("invalid pattern")

const wildcards = "*?"

// Pattern matches concrete paths against a literal folder and a final segment
// that is either literal or a glob.
type Pattern struct {
	style          pathutil.Style
	cc             pathutil.CaseComparison
	normalized     string
	path           string
	folder         string
	hasFolder      bool
	name           string
	explicitFolder bool
	expr           *regexp.Regexp
}

// Compile validates raw and prepares it for matching.
func Compile(raw string, style pathutil.Style, cc pathutil.CaseComparison) (*Pattern, error) {
	normalized, err := style.NormalizePattern(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	trimmed := style.TrimEndSeparator(normalized)
	name := style.Base(trimmed)
	if name == "" {
		return nil, fmt.Errorf("%w: %q has no final segment", ErrInvalidPattern, raw)
	}
	folder, hasFolder := style.FolderPath(trimmed)
	if strings.ContainsAny(folder, wildcards) {
		return nil, fmt.Errorf("%w: %q has wildcards outside the final segment", ErrInvalidPattern, raw)
	}

	p := &Pattern{
		style:          style,
		cc:             cc,
		normalized:     normalized,
		path:           trimmed,
		folder:         folder,
		hasFolder:      hasFolder,
		name:           name,
		explicitFolder: len(trimmed) < len(normalized),
	}
	if strings.ContainsAny(name, wildcards) {
		expr, err := regexp.Compile(p.expression())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
		p.expr = expr
	}
	return p, nil
}

func (p *Pattern) expression() string {
	notSep := "[^" + regexp.QuoteMeta(p.style.SeparatorChars()) + "]"

	builder := strings.Builder{}
	if p.style.IgnoresCase(p.cc) {
		builder.WriteString("(?i)")
	}
	builder.WriteString("^")
	if p.hasFolder {
		builder.WriteString(regexp.QuoteMeta(p.style.Join(p.folder, "")))
	}
	for _, r := range p.name {
		switch r {
		case '*':
			builder.WriteString(notSep + "*")
		case '?':
			builder.WriteString(notSep + "?")
		default:
			builder.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	builder.WriteString("$")
	return builder.String()
}

// Match reports whether candidate is selected by the pattern. Trailing
// separators on candidate are ignored.
func (p *Pattern) Match(candidate string) bool {
	if p == nil {
		return false
	}
	normalized, err := p.style.NormalizePattern(candidate)
	if err != nil {
		return false
	}
	if p.expr == nil {
		return p.style.Equals(p.path, normalized, p.cc, pathutil.RespectAmbiguity)
	}
	return p.expr.MatchString(p.style.TrimEndSeparator(normalized))
}

// HasWildcard reports whether the final segment is a glob.
func (p *Pattern) HasWildcard() bool {
	return p.expr != nil
}

// FolderPath returns the literal folder prefix. ok is false when the pattern
// is a single relative segment.
func (p *Pattern) FolderPath() (string, bool) {
	return p.folder, p.hasFolder
}

// NamePattern returns the final segment.
func (p *Pattern) NamePattern() string {
	return p.name
}

// Path returns the normalized pattern without a trailing separator.
func (p *Pattern) Path() string {
	return p.path
}

// ExplicitFolder reports whether the pattern was written with a trailing separator.
func (p *Pattern) ExplicitFolder() bool {
	return p.explicitFolder
}

// IsRooted reports whether the pattern starts at a filesystem root.
func (p *Pattern) IsRooted() bool {
	return p.style.IsRooted(p.normalized)
}

// Key returns the case-folded form used to identify the pattern in registries.
func (p *Pattern) Key() string {
	return p.style.Fold(p.path, p.cc)
}

func (p *Pattern) String() string {
	return p.normalized
}
