package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ErrSourceNotFound is returned by Source.List when the source location does
// not exist.
var ErrSourceNotFound = errors.New("ingestion: source not found")

// Source enumerates documents and returns their text.
type Source interface {
	// List returns the identifiers of every eligible document.
	List(ctx context.Context) ([]string, error)

	// Read returns the text content of one document.
	Read(ctx context.Context, id string) (string, error)
}

// DirSource walks a directory tree and yields every regular file accepted
// by Allow. Document identifiers are the file paths.
type DirSource struct {
	// Root is the directory to walk.
	Root string

	// Allow filters files by name. Nil accepts every file.
	Allow func(name string) bool
}

// List walks Root recursively.
func (d *DirSource) List(ctx context.Context) ([]string, error) {
	fi, err := os.Stat(d.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, d.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion: stat %s: %w", d.Root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("ingestion: %s is not a directory", d.Root)
	}

	var paths []string
	err = filepath.WalkDir(d.Root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !e.Type().IsRegular() {
			return nil
		}
		if d.Allow == nil || d.Allow(e.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walk %s: %w", d.Root, err)
	}
	return paths, nil
}

// Read returns the file content as text.
func (d *DirSource) Read(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	return string(b), nil
}

// URLSource fetches a fixed list of HTTP(S) pages. The body is used as-is,
// so plain-text or markdown endpoints give the best chunks.
type URLSource struct {
	// URLs are the pages to fetch.
	URLs []string

	// UserAgent is sent with every request.
	UserAgent string

	// Client is the HTTP client; nil uses a client with a 30s timeout.
	Client *http.Client
}

// List returns the configured URLs.
func (u *URLSource) List(context.Context) ([]string, error) {
	return u.URLs, nil
}

// Read fetches one URL.
func (u *URLSource) Read(ctx context.Context, url string) (string, error) {
	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("ingestion: creating request: %w", err)
	}
	ua := u.UserAgent
	if ua == "" {
		ua = "docchat-go/1.0 (document ingestion)"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/plain, text/markdown, text/html")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingestion: http get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ingestion: reading body of %s: %w", url, err)
	}
	return string(body), nil
}
