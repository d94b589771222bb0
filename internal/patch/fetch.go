package patch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// CatalogScheme addresses files shipped with the formula catalogue, e.g.
// "catalog:magnum-bindings/patches/fix.patch".
const CatalogScheme = "catalog"

// Fetcher retrieves the content behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTP fetches http and https URLs.
type HTTP struct {
	Client *http.Client
}

func (h *HTTP) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// File reads file URLs and bare paths.
type File struct{}

func (File) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		p = u.Path
	}
	return os.ReadFile(p)
}

// FS reads URLs of the form "scheme:path" from a file system.
type FS struct {
	FS fs.FS
}

func (f FS) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	_, p, _ := strings.Cut(rawURL, ":")
	p = path.Clean(strings.TrimPrefix(p, "/"))
	return fs.ReadFile(f.FS, p)
}

// Schemes dispatches on the URL scheme. The empty scheme selects the
// fetcher for bare paths.
type Schemes map[string]Fetcher

// NewSchemes returns the default dispatch table. catalog may be nil.
func NewSchemes(client *http.Client, catalog fs.FS) Schemes {
	h := &HTTP{Client: client}
	s := Schemes{
		"http":  h,
		"https": h,
		"file":  File{},
		"":      File{},
	}
	if catalog != nil {
		s[CatalogScheme] = FS{FS: catalog}
	}
	return s
}

func (s Schemes) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	scheme := ""
	if i := strings.Index(rawURL, ":"); i > 1 {
		// a single letter before the colon is a Windows drive
		scheme = strings.ToLower(rawURL[:i])
	}
	f, ok := s[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported URL scheme %q", scheme)
	}
	return f.Fetch(ctx, rawURL)
}
