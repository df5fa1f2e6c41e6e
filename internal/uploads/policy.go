package uploads

import (
	"slices"
	"strings"
)

// Extension policy modes.
const (
	PolicyAllowlist = "allowlist"
	PolicyDenylist  = "denylist"
)

// DefaultAllowed is the allowlist used when none is configured.
var DefaultAllowed = []string{
	"md", "markdown", "txt", "csv", "json", "yaml", "yml", "log",
	"pdf", "doc", "docx", "odt", "rtf", "xls", "xlsx", "ods", "ppt", "pptx", "odp",
	"png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "ico",
	"mp3", "wav", "ogg", "flac", "m4a", "mp4", "webm", "mov", "mkv",
	"zip", "tar", "gz", "tgz", "7z",
}

// DefaultDenied lists executable and server-side script types refused in denylist mode.
var DefaultDenied = []string{
	"php", "phtml", "php3", "php4", "php5", "php7", "phps", "pht", "phar",
	"exe", "com", "bat", "cmd", "sh", "bash", "cgi", "pl", "py", "rb",
	"asp", "aspx", "jsp", "jspx", "dll", "so", "dylib",
}

// Policy decides which file extensions may be uploaded.
type Policy struct {
	Mode       string
	Extensions []string
}

// DefaultPolicy is an allowlist of common document, media and archive types.
func DefaultPolicy() Policy {
	return Policy{Mode: PolicyAllowlist, Extensions: DefaultAllowed}
}

// NewPolicy builds a policy, falling back to the mode's default list when
// extensions is empty.
func NewPolicy(mode string, extensions []string) Policy {
	if mode == "" {
		mode = PolicyAllowlist
	}
	if len(extensions) == 0 {
		if mode == PolicyDenylist {
			extensions = DefaultDenied
		} else {
			extensions = DefaultAllowed
		}
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")))
	}
	return Policy{Mode: mode, Extensions: normalized}
}

// Permits reports whether files with the lower-cased extension ext may be stored.
func (p Policy) Permits(ext string) bool {
	listed := slices.Contains(p.Extensions, ext)
	if p.Mode == PolicyDenylist {
		return !listed
	}
	return ext != "" && listed
}
