package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Groceries\ntags:\n  - home\n  - weekly\n---\n# List\nmilk and eggs\n")
	r := Parse(input)
	if r.Title != "Groceries" {
		t.Errorf("title = %q, want %q", r.Title, "Groceries")
	}
	if len(r.Tags) != 2 || r.Tags[0] != "home" || r.Tags[1] != "weekly" {
		t.Errorf("tags = %v, want [home weekly]", r.Tags)
	}
	if r.Body != "# List\nmilk and eggs\n" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Excerpt != "milk and eggs" {
		t.Errorf("excerpt = %q", r.Excerpt)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r := Parse([]byte("# Just a heading\nSome text.\n"))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	r := Parse([]byte(input))
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if r.Body != input {
		t.Errorf("body = %q, want whole input", r.Body)
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	input := "---\ntitle: x\nno closing delimiter"
	r := Parse([]byte(input))
	if r.Frontmatter != nil || r.Body != input {
		t.Errorf("unclosed frontmatter should be body: %+v", r)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{"tags": []any{"alpha"}}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestExtractTags_CommaSeparated(t *testing.T) {
	tags := extractTags("", map[string]any{"tags": "a, b,,a"})
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tags = %v, want [a b]", tags)
	}
}

func TestExtractTags_IgnoresHeadings(t *testing.T) {
	tags := extractTags("# Title\n## Sub\ntext #real", nil)
	if len(tags) != 1 || tags[0] != "real" {
		t.Errorf("tags = %v, want [real]", tags)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	title := deriveTitle(map[string]any{"title": "FM Title"}, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

func TestExcerpt_Truncates(t *testing.T) {
	long := strings.Repeat("ä", ExcerptLen+10)
	got := excerpt("# h\n\n" + long)
	if n := len([]rune(got)); n != ExcerptLen+1 {
		t.Errorf("excerpt has %d runes, want %d", n, ExcerptLen+1)
	}
	if excerpt("# only heading\n") != "" {
		t.Error("expected empty excerpt")
	}
}
