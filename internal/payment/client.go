package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-apparel-checkout/internal/apperr"
)

// client is the JSON-over-HTTP plumbing shared by the remote gateways.
// No retries: a failed call surfaces to the caller.
type client struct {
	base   string
	key    string
	secret string
	http   *http.Client
}

func newClient(base, key, secret string, timeout time.Duration, hc *http.Client) *client {
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &client{
		base:   strings.TrimRight(base, "/"),
		key:    key,
		secret: secret,
		http:   hc,
	}
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("payment: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return apperr.Gateway(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.SetBasicAuth(c.key, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Gateway(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Gateway(err, "read %s %s", method, path)
	}
	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("gateway resource %s not found", path)
	}
	if resp.StatusCode >= 300 {
		return apperr.Gateway(fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)), "%s %s", method, path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Gateway(err, "decode %s %s", method, path)
	}
	return nil
}
