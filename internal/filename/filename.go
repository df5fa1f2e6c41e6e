// Package filename turns untrusted names into safe single path segments.
package filename

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// TimestampLayout is the sortable prefix used for generated file names.
const TimestampLayout = "2006-01-02_150405"

// MaxLength caps a sanitized name in bytes. It leaves room for the timestamp
// prefix and collision counter within the usual 255-byte file name limit.
const MaxLength = 200

// maxKeptExtension is the longest extension, dot included, that truncation
// preserves.
const maxKeptExtension = 16

var unsafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Sanitize reduces name to its final path segment, replaces spaces with
// hyphens and drops every character outside [A-Za-z0-9._-]. Results longer
// than MaxLength are shortened, keeping the extension.
// It returns apperr.ErrInvalidName when nothing usable is left.
func Sanitize(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, " ", "-")
	name = unsafeRe.ReplaceAllString(name, "")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: nothing left after sanitizing", apperr.ErrInvalidName)
	}
	return truncate(name), nil
}

func truncate(name string) string {
	if len(name) <= MaxLength {
		return name
	}
	suffix := ""
	if ext := Extension(name); ext != "" && len(ext)+1 <= maxKeptExtension {
		suffix = name[len(name)-len(ext)-1:]
	}
	return name[:MaxLength-len(suffix)] + suffix
}

// Extension returns the lower-cased suffix after the last dot, without the dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Base strips the extension reported by Extension.
func Base(name string) string {
	if ext := Extension(name); ext != "" {
		return name[:len(name)-len(ext)-1]
	}
	return name
}

// EnsureSuffix appends ".<ext>" unless name already carries that extension.
func EnsureSuffix(name, ext string) string {
	if Extension(name) == ext {
		return name
	}
	return name + "." + ext
}

// Timestamped prefixes name with t formatted as TimestampLayout.
func Timestamped(t time.Time, name string) string {
	return t.Format(TimestampLayout) + "_" + name
}

// WithCounter inserts "-n" before the extension, used to break same-second collisions.
func WithCounter(name string, n int) string {
	if n <= 1 {
		return name
	}
	ext := Extension(name)
	if ext == "" {
		return fmt.Sprintf("%s-%d", name, n)
	}
	return fmt.Sprintf("%s-%d.%s", Base(name), n, name[len(name)-len(ext):])
}
