// Package ipfs pins metadata documents and returns their content identifiers.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

// Uploader stores a payload and returns its content identifier.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (cid string, err error)
}

// URI returns the ipfs:// URI of cid.
func URI(cid string) string {
	return "ipfs://" + cid
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the base URL of a Kubo compatible HTTP API, e.g. http://127.0.0.1:5001.
	Endpoint string
	// Token is sent as a bearer token when set.
	Token    string
	Attempts uint
	Timeout  time.Duration
}

// Client uploads through the /api/v0/add endpoint of a Kubo compatible node or pinning service.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	lggr logger.Logger
}

func NewClient(cfg ClientConfig, lggr logger.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("ipfs endpoint is required")
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		lggr: lggr,
	}, nil
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Upload pins data and returns its CID. Uploads are content addressed, so failed attempts are
// retried.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	cid, err := retry.DoWithData(func() (string, error) {
		return c.add(ctx, data)
	},
		retry.Context(ctx),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.lggr.Warnw("IPFS upload failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload to IPFS: %w", err)
	}
	c.lggr.Infow("Uploaded to IPFS", "cid", cid, "bytes", len(data))

	return cid, nil
}

func (c *Client) add(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "metadata.json")
	if err != nil {
		return "", retry.Unrecoverable(err)
	}
	if _, err = part.Write(data); err != nil {
		return "", retry.Unrecoverable(err)
	}
	if err = w.Close(); err != nil {
		return "", retry.Unrecoverable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/v0/add?pin=true", &body)
	if err != nil {
		return "", retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", retry.Unrecoverable(err)
		}

		return "", err
	}

	var out addResponse
	if err = json.Unmarshal(raw, &out); err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("failed to decode add response: %w", err))
	}
	if out.Hash == "" {
		return "", retry.Unrecoverable(errors.New("add response has no hash"))
	}

	return out.Hash, nil
}
