// Package fetcher downloads the default product catalog and keeps a local
// JSON snapshot of it.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"go.uber.org/zap"
)

// Fetcher retrieves product records over HTTP.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

func New(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch GETs url and decodes the JSON array of products it returns.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer resp.Body.Close()

	f.logger.Info("fetched products", zap.String("url", url), zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, bytes.TrimSpace(body))
	}

	var products []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	if len(products) > 0 {
		f.logger.Info("first product", zap.Any("title", products[0]["title"]))
	}
	return products, nil
}

// Save writes products to path as indented JSON without escaping non-ASCII
// characters. The parent directory is created if needed.
func Save(path string, products []map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(products); err != nil {
		return fmt.Errorf("failed to encode products: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// FetchAndSave downloads the catalog and stores it at path, returning the
// number of products saved.
func (f *Fetcher) FetchAndSave(ctx context.Context, url, path string) (int, error) {
	products, err := f.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	if err := Save(path, products); err != nil {
		return 0, err
	}

	size := int64(0)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	f.logger.Info("saved snapshot",
		zap.String("path", path),
		zap.Int("products", len(products)),
		zap.String("size", humanize.Bytes(uint64(size))),
	)
	return len(products), nil
}

// LoadSnapshot loads and normalizes the saved catalog snapshot.
func LoadSnapshot(path string) (*catalog.Table, error) {
	t, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return catalog.Normalize(t), nil
}
