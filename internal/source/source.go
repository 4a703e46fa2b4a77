// Package source resolves song and media locators (file paths or http(s) URLs)
// into readable data.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/linuxmatters/jivewave/internal/config"
)

// ErrEmpty is returned when a locator resolves to zero bytes
var ErrEmpty = errors.New("empty resource")

// Client is used for remote locators
var Client = &http.Client{Timeout: 5 * time.Minute}

// Open returns a reader for locator
func Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if locator == "" {
		return nil, fmt.Errorf("no locator given")
	}
	if !config.IsRemote(locator) {
		p, err := homedir.Expand(locator)
		if err != nil {
			return nil, err
		}
		return os.Open(p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", locator, err)
	}
	resp, err := Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", locator, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: %s", locator, resp.Status)
	}
	return resp.Body, nil
}

// Localize makes locator available as a local file. Remote locators are
// downloaded into a temporary file which cleanup removes; local paths are
// returned as-is with a no-op cleanup.
func Localize(ctx context.Context, locator string) (string, func(), error) {
	noop := func() {}
	if !config.IsRemote(locator) {
		p, err := homedir.Expand(locator)
		if err != nil {
			return "", noop, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return "", noop, err
		}
		if info.Size() == 0 {
			return "", noop, fmt.Errorf("%s: %w", p, ErrEmpty)
		}
		return p, noop, nil
	}

	body, err := Open(ctx, locator)
	if err != nil {
		return "", noop, err
	}
	defer body.Close()

	// Keep the extension so format detection by name still works
	ext := path.Ext(strings.SplitN(locator, "?", 2)[0])
	f, err := os.CreateTemp("", "jivewave-*"+ext)
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to download %s: %w", locator, err)
	}
	if n == 0 {
		cleanup()
		return "", noop, fmt.Errorf("%s: %w", locator, ErrEmpty)
	}
	return filepath.Clean(f.Name()), cleanup, nil
}
