package scoring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ImageSource resolves an image reference to its bytes.
type ImageSource interface {
	Image(ctx context.Context, ref string) ([]byte, error)
}

// Fetcher reads images over HTTP(S) or from a local assets directory.
type Fetcher struct {
	Dir  string
	http *http.Client
}

func NewFetcher(dir string) *Fetcher {
	return &Fetcher{Dir: dir, http: &http.Client{}}
}

func (f *Fetcher) Image(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.download(ctx, ref)
	}
	path := filepath.Join(f.Dir, filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref, err)
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
