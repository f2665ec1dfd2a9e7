package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/serkansmg/SunoApiManager/internal/model"
)

const downloadChunkSize = 8 * 1024

// DownloadFile streams a CDN asset to destPath. CDN URLs are
// pre-signed, so no session headers are attached. Progress is reported
// as a fraction when Content-Length is known, indeterminate otherwise.
func (c *SunoClient) DownloadFile(ctx context.Context, url, destPath string, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.dlClient.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return &DownloadError{URL: url, Err: err}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer out.Close()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return &DownloadError{URL: url, Err: writeErr}
			}
			written += int64(n)
			if onProgress != nil {
				if total > 0 {
					onProgress(float64(written)/float64(total), "downloading")
				} else {
					onProgress(model.IndeterminateProgress, "downloading")
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &DownloadError{URL: url, Err: readErr}
		}
	}

	return nil
}
