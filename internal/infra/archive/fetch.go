// Package archive downloads prebuilt binary archives and unpacks them into
// their install roots.
package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/paths"
)

// Fetcher downloads an archive once and unpacks it once: an existing archive
// file skips the download and an existing install root skips the unpack.
type Fetcher struct {
	Client *http.Client
}

// Outcome reports which stages of Fetch did work.
type Outcome struct {
	Downloaded bool
	Unpacked   bool
}

func (f Fetcher) Fetch(ctx context.Context, url, archivePath, installDir string) (Outcome, error) {
	var out Outcome
	exists, err := paths.FileExists(archivePath)
	if err != nil {
		return out, err
	}
	if !exists {
		if err := f.Download(ctx, url, archivePath); err != nil {
			return out, err
		}
		out.Downloaded = true
	}

	unpacked, err := paths.DirExists(installDir)
	if err != nil {
		return out, err
	}
	if unpacked {
		return out, nil
	}
	if err := Unpack(archivePath, installDir); err != nil {
		return out, err
	}
	out.Unpacked = true
	return out, nil
}

// Download writes url to dest through a temporary file in the same
// directory, so an interrupted download never leaves a truncated archive.
func (f Fetcher) Download(ctx context.Context, url, dest string) error {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	trace := debuglog.NewTrace("download")
	debuglog.LogEvent(trace, "download", "url", url, "dest", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return fmt.Errorf("download %s: %w", url, copyErr)
		}
		return fmt.Errorf("download %s: %w", url, closeErr)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("save %s: %w", dest, err)
	}
	debuglog.LogEvent(trace, "downloaded", "bytes", n)
	return nil
}
