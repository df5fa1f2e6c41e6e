package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/filename"
)

var mimeToExt = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/svg+xml":   "svg",
	"application/pdf": "pdf",
	"text/plain":      "txt",
	"text/markdown":   "md",
}

// fetcher retrieves upload content from data URIs and remote URLs.
type fetcher struct {
	maxBytes  int64
	client    *http.Client
	checkHost func(host string) error
}

func newFetcher(maxBytes int64) *fetcher {
	f := &fetcher{maxBytes: maxBytes, checkHost: checkBlockedHost}
	f.client = &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects (max 5)")
			}
			return f.checkHost(req.URL.Hostname())
		},
	}
	return f
}

type uploadResult struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Markdown string `json:"markdown"`
}

func (s *Server) uploadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = s.fetcher.fetch(ctx, rawURL)
	}
	if err != nil {
		return s.toolError("upload_file", err), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = filenameFromURL(rawURL, ext)
	}
	if err := validateMagicBytes(data, filename.Extension(path.Base(name))); err != nil {
		return s.toolError("upload_file", err), nil
	}

	up, err := s.uploads.Store(ctx, bytes.NewReader(data), name, int64(len(data)))
	if err != nil {
		return s.toolError("upload_file", err), nil
	}
	link := "/" + up.Path
	snippet := fmt.Sprintf("[%s](%s)", up.Filename, link)
	if strings.HasPrefix(mimeFor(up.Type), "image/") {
		snippet = "!" + snippet
	}
	return jsonResult(uploadResult{
		Path:     up.Path,
		Filename: up.Filename,
		Size:     up.Size,
		Markdown: snippet,
	}), nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI: missing comma separator: %w", apperr.ErrInvalidInput)
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported: %w", apperr.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("data URI: invalid base64: %w", apperr.ErrInvalidInput)
		}
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	return data, mimeToExt[mime], nil
}

// fetch downloads rawURL, refusing loopback and metadata hosts and bodies
// over the upload limit.
func (f *fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", apperr.ErrInvalidInput)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q (only http/https): %w", parsed.Scheme, apperr.ErrInvalidInput)
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", apperr.ErrInvalidInput)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			return nil, "", fmt.Errorf("download refused: %w", apperr.ErrForbidden)
		}
		return nil, "", fmt.Errorf("download failed: %w", apperr.ErrInvalidInput)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d: %w", resp.StatusCode, apperr.ErrInvalidInput)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("download: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("download exceeds %d bytes: %w", f.maxBytes, apperr.ErrPayloadTooLarge)
	}
	ct := resp.Header.Get("Content-Type")
	return data, mimeToExt[strings.TrimSpace(strings.Split(ct, ";")[0])], nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host %s: %w", host, apperr.ErrForbidden)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return fmt.Errorf("blocked host: loopback address %s: %w", host, apperr.ErrForbidden)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s: %w", host, apperr.ErrForbidden)
	}
	return nil
}

// filenameFromURL takes the last URL path segment, falling back to a UUID.
func filenameFromURL(rawURL, ext string) string {
	if ext == "" {
		ext = "bin"
	}
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	return uuid.New().String() + "." + ext
}

func mimeFor(ext string) string {
	if ext == "jpeg" {
		ext = "jpg"
	}
	for mime, e := range mimeToExt {
		if e == ext {
			return mime
		}
	}
	return ""
}

// validateMagicBytes checks that image and PDF content matches its extension.
// Other types are not sniffed.
func validateMagicBytes(data []byte, ext string) error {
	if ext == "jpeg" {
		ext = "jpg"
	}
	switch ext {
	case "svg":
		prefix := data[:min(len(data), 1024)]
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content is not an SVG image: %w", apperr.ErrUnsupportedType)
		}
		return nil
	case "png", "jpg", "gif", "webp", "pdf":
		detected := http.DetectContentType(data)
		if mimeToExt[strings.Split(detected, ";")[0]] != ext {
			return fmt.Errorf("content does not match extension %s (detected %s): %w", ext, detected, apperr.ErrUnsupportedType)
		}
	}
	return nil
}
