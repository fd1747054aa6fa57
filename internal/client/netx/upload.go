// Package netx contains small networking helpers for the client.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/admitflow/admitflow/internal/common"
)

// UploadToPresignedURL PUTs file bytes to a presigned S3 URL issued by the
// server. An unreachable endpoint maps to common.ErrUnavailable like any
// other transport failure.
func UploadToPresignedURL(ctx context.Context, url string, file []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(file))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}
