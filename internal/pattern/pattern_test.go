package pattern

import (
	"errors"
	"testing"

	"pathwatch/internal/pathutil"
)

func mustCompile(t *testing.T, raw string, style pathutil.Style, cc pathutil.CaseComparison) *Pattern {
	t.Helper()
	p, err := Compile(raw, style, cc)
	if err != nil {
		t.Fatalf("compile %q: %v", raw, err)
	}
	return p
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name      string
		style     pathutil.Style
		cc        pathutil.CaseComparison
		pattern   string
		candidate string
		want      bool
	}{
		{name: "star", style: pathutil.Windows, pattern: `c:\a\*.txt`, candidate: `c:\a\f.txt`, want: true},
		{name: "star does not cross separator", style: pathutil.Windows, pattern: `c:\a\*.txt`, candidate: `c:\a\sub\f.txt`, want: false},
		{name: "star matches empty", style: pathutil.Unix, pattern: "/a/*.txt", candidate: "/a/.txt", want: true},
		{name: "question zero", style: pathutil.Unix, pattern: "/a/f?.log", candidate: "/a/f.log", want: true},
		{name: "question one", style: pathutil.Unix, pattern: "/a/f?.log", candidate: "/a/f1.log", want: true},
		{name: "question not two", style: pathutil.Unix, pattern: "/a/f?.log", candidate: "/a/f12.log", want: false},
		{name: "other folder", style: pathutil.Unix, pattern: "/a/*", candidate: "/b/x", want: false},
		{name: "trailing separator on candidate", style: pathutil.Unix, pattern: "/a/*", candidate: "/a/dir/", want: true},
		{name: "regex characters are literal", style: pathutil.Unix, pattern: "/a/(x)+*.txt", candidate: "/a/(x)+1.txt", want: true},
		{name: "literal equal", style: pathutil.Unix, pattern: "/a/b.txt", candidate: "/a/b.txt", want: true},
		{name: "literal folder ambiguity", style: pathutil.Unix, pattern: "/a/b", candidate: "/a/b/", want: true},
		{name: "literal case sensitive", style: pathutil.Unix, pattern: "/a/B.txt", candidate: "/a/b.txt", want: false},
		{name: "literal case insensitive", style: pathutil.Unix, cc: pathutil.IgnoreCase, pattern: "/a/B.txt", candidate: "/a/b.txt", want: true},
		{name: "glob windows case", style: pathutil.Windows, pattern: `C:\A\*.TXT`, candidate: `c:/a/f.txt`, want: true},
		{name: "glob unix case", style: pathutil.Unix, pattern: "/a/*.TXT", candidate: "/a/f.txt", want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := mustCompile(t, tc.pattern, tc.style, tc.cc)
			if got := p.Match(tc.candidate); got != tc.want {
				t.Fatalf("Match(%q, %q): expected %v, got %v", tc.pattern, tc.candidate, tc.want, got)
			}
		})
	}
}

func TestCompileRejectsInvalidPatterns(t *testing.T) {
	cases := []struct {
		name    string
		style   pathutil.Style
		pattern string
	}{
		{name: "empty", style: pathutil.Unix, pattern: ""},
		{name: "root only", style: pathutil.Unix, pattern: "/"},
		{name: "wildcard in folder", style: pathutil.Unix, pattern: "/a*/b.txt"},
		{name: "wildcard in windows folder", style: pathutil.Windows, pattern: `c:\a?\b.txt`},
		{name: "invalid character", style: pathutil.Windows, pattern: `c:\a\b|c`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.pattern, tc.style, pathutil.EnvironmentDefault)
			if !errors.Is(err, ErrInvalidPattern) {
				t.Fatalf("expected ErrInvalidPattern, got %v", err)
			}
		})
	}
}

func TestPatternParts(t *testing.T) {
	p := mustCompile(t, "//data//logs/*.log/", pathutil.Unix, pathutil.EnvironmentDefault)
	folder, ok := p.FolderPath()
	if !ok || folder != "/data/logs" {
		t.Fatalf("expected folder /data/logs, got %q (%v)", folder, ok)
	}
	if p.NamePattern() != "*.log" {
		t.Fatalf("expected name *.log, got %q", p.NamePattern())
	}
	if !p.HasWildcard() {
		t.Fatalf("expected wildcard")
	}
	if !p.ExplicitFolder() {
		t.Fatalf("expected explicit folder form")
	}
	if !p.IsRooted() {
		t.Fatalf("expected rooted pattern")
	}
	if p.Path() != "/data/logs/*.log" {
		t.Fatalf("expected path /data/logs/*.log, got %q", p.Path())
	}

	top := mustCompile(t, "/a", pathutil.Unix, pathutil.EnvironmentDefault)
	folder, ok = top.FolderPath()
	if !ok || folder != "/" {
		t.Fatalf("expected root folder, got %q (%v)", folder, ok)
	}
	if top.HasWildcard() {
		t.Fatalf("expected literal pattern")
	}
}

func TestKeyFoldsCase(t *testing.T) {
	a := mustCompile(t, `C:\Data\X.txt`, pathutil.Windows, pathutil.EnvironmentDefault)
	b := mustCompile(t, `c:/data/x.txt`, pathutil.Windows, pathutil.EnvironmentDefault)
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}
	c := mustCompile(t, "/Data/X.txt", pathutil.Unix, pathutil.EnvironmentDefault)
	d := mustCompile(t, "/data/x.txt", pathutil.Unix, pathutil.EnvironmentDefault)
	if c.Key() == d.Key() {
		t.Fatalf("expected distinct keys under case-sensitive policy")
	}
}
