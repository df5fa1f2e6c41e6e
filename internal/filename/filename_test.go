package filename

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Todo", "Todo"},
		{"my note.md", "my-note.md"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system.ini`, "system.ini"},
		{"hello wörld!?.txt", "hello-wrld.txt"},
		{"a_b-c.d", "a_b-c.d"},
	}
	for _, c := range cases {
		got, err := Sanitize(c.in)
		if err != nil {
			t.Errorf("Sanitize(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 300)
	cases := []struct {
		in, want string
	}{
		{long, strings.Repeat("a", MaxLength)},
		{long + ".md", strings.Repeat("a", MaxLength-3) + ".md"},
		{long + ".JPEG", strings.Repeat("a", MaxLength-5) + ".JPEG"},
		{"x." + long, ("x." + long)[:MaxLength]},
	}
	for _, c := range cases {
		got, err := Sanitize(c.in)
		if err != nil {
			t.Fatalf("Sanitize: %v", err)
		}
		if got != c.want {
			t.Errorf("Sanitize(len %d) = %q (len %d), want len %d", len(c.in), got, len(got), len(c.want))
		}
	}
}

func TestSanitizeRejectsEmpty(t *testing.T) {
	for _, in := range []string{"", "///", "ü€", "dir/", "..", "a/.."} {
		if _, err := Sanitize(in); !errors.Is(err, apperr.ErrInvalidName) {
			t.Errorf("Sanitize(%q) err = %v, want ErrInvalidName", in, err)
		}
	}
}

func TestSanitizeOutputAlphabet(t *testing.T) {
	safe := regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	inputs := []string{
		"a/b\\c d", "<script>.md", "名前.md", "x\x00y", "tab\there", "../.. /x y z",
		"%2e%2e%2fetc", "C:\\Users\\me\\file.txt",
	}
	for _, in := range inputs {
		got, err := Sanitize(in)
		if err != nil {
			continue
		}
		if strings.ContainsAny(got, `/\`) || !safe.MatchString(got) {
			t.Errorf("Sanitize(%q) = %q contains unsafe characters", in, got)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"a.MD":           "md",
		"archive.tar.gz": "gz",
		"noext":          "",
		"trailing.":      "",
		".hidden":        "hidden",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureSuffix(t *testing.T) {
	if got := EnsureSuffix("Todo", "md"); got != "Todo.md" {
		t.Errorf("got %q", got)
	}
	if got := EnsureSuffix("Todo.md", "md"); got != "Todo.md" {
		t.Errorf("got %q", got)
	}
	if got := EnsureSuffix("Todo.txt", "md"); got != "Todo.txt.md" {
		t.Errorf("got %q", got)
	}
}

func TestTimestamped(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 5, 3, 0, time.UTC)
	if got := Timestamped(ts, "Todo.md"); got != "2026-10-17_090503_Todo.md" {
		t.Errorf("got %q", got)
	}
}

func TestWithCounter(t *testing.T) {
	if got := WithCounter("a.md", 1); got != "a.md" {
		t.Errorf("got %q", got)
	}
	if got := WithCounter("a.md", 3); got != "a-3.md" {
		t.Errorf("got %q", got)
	}
	if got := WithCounter("README", 2); got != "README-2" {
		t.Errorf("got %q", got)
	}
}
