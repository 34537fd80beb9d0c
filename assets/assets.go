// Package assets acquires reference data on first launch: an idempotent
// "ensure present locally" operation that downloads from a configured URL
// with progress reporting and never leaves a partial artifact behind.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
)

const (
	appDirName       = "map-align"
	partialSuffix    = ".partial"
	progressInterval = 2 * time.Second
)

// ErrNoURL is returned when the asset is absent locally and no download URL
// is configured.
var ErrNoURL = errors.New("assets: asset missing and no url configured")

// EnsureReferenceMap guarantees the named asset exists in the user cache
// directory, downloading it from rawURL if absent, and returns its local
// path. Safe to call on every launch. Transient failures surface as errors
// with any partial file removed; the caller decides whether to retry.
func EnsureReferenceMap(ctx context.Context, rawURL, name string, logger *slog.Logger) (string, error) {
	dest, err := xdg.CacheFile(filepath.Join(appDirName, name))
	if err != nil {
		return "", fmt.Errorf("assets: resolve cache path: %w", err)
	}
	return EnsureAt(ctx, rawURL, dest, logger)
}

// EnsureAt is EnsureReferenceMap with an explicit destination path.
func EnsureAt(ctx context.Context, rawURL, dest string, logger *slog.Logger) (string, error) {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		return dest, nil
	}
	if rawURL == "" {
		return "", ErrNoURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("assets: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("assets: unsupported url scheme %q", parsed.Scheme)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("assets: create cache dir: %w", err)
	}
	if err := download(ctx, rawURL, dest, logger); err != nil {
		return "", err
	}
	return dest, nil
}

// download streams the asset into dest+".partial" and renames on success.
// Any failure removes the partial file.
func download(ctx context.Context, rawURL, dest string, logger *slog.Logger) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("assets: build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("assets: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assets: download: HTTP %d", resp.StatusCode)
	}

	tmpPath := dest + partialSuffix
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("assets: create partial file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	pw := &progressWriter{
		total:  resp.ContentLength,
		logger: logger,
		name:   filepath.Base(dest),
		nextAt: time.Now().Add(progressInterval),
	}
	if _, err = io.Copy(io.MultiWriter(tmp, pw), resp.Body); err != nil {
		return fmt.Errorf("assets: stream body: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("assets: sync partial file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("assets: close partial file: %w", err)
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("assets: finalize asset: %w", err)
	}
	if logger != nil {
		logger.Info("asset downloaded", "name", pw.name, "size", humanize.Bytes(uint64(pw.written)))
	}
	return nil
}

// progressWriter logs download progress at a fixed interval.
type progressWriter struct {
	written int64
	total   int64
	logger  *slog.Logger
	name    string
	nextAt  time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.logger != nil && time.Now().After(p.nextAt) {
		p.nextAt = time.Now().Add(progressInterval)
		if p.total > 0 {
			p.logger.Info("downloading asset", "name", p.name,
				"progress", fmt.Sprintf("%s / %s (%.0f%%)",
					humanize.Bytes(uint64(p.written)), humanize.Bytes(uint64(p.total)),
					100*float64(p.written)/float64(p.total)))
		} else {
			p.logger.Info("downloading asset", "name", p.name,
				"progress", humanize.Bytes(uint64(p.written)))
		}
	}
	return len(b), nil
}
