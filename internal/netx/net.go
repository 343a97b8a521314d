// Package netx contains small HTTP helpers shared by client components.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// UploadToPresignedURL PUTs body to a presigned bucket URL with the given
// content type. A non-200 response is returned as an error including the
// response body for diagnostics.
func UploadToPresignedURL(ctx context.Context, client *http.Client, url string, body []byte, contentType string) error {
	if client == nil {
		client = http.DefaultClient
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
