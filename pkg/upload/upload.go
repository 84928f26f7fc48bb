// Package upload sends documents to the server's HTTP upload endpoint.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrNotPDF = errors.New("only .pdf files can be uploaded")

// Result is the server's answer: filename on success, error on failure.
type Result struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient targets <origin>/upload.
func NewClient(origin string, timeout time.Duration) (*Client, error) {
	endpoint, err := uploadEndpoint(origin)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func uploadEndpoint(origin string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
	if trimmed == "" {
		return "", errors.New("server origin is empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "parse server origin")
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = path.Join("/", u.Path, "upload")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Upload posts the file at p as the multipart field "file" and returns the
// name the server stored it under.
func (c *Client) Upload(ctx context.Context, p string) (string, error) {
	if !isPDF(p) {
		return "", errors.Wrap(ErrNotPDF, filepath.Base(p))
	}
	f, err := os.Open(p)
	if err != nil {
		return "", errors.Wrap(err, "open upload file")
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(p))
	if err != nil {
		return "", errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", errors.Wrap(err, "read upload file")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "finish multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Debug().Str("component", "upload").Str("file", p).Str("endpoint", c.endpoint).Msg("uploading")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read upload response")
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", errors.Errorf("upload HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || res.Error != "" {
		msg := res.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", errors.Errorf("upload failed: %s", msg)
	}
	if res.Filename == "" {
		return "", errors.New("upload response has no filename")
	}
	log.Info().Str("component", "upload").Str("filename", res.Filename).Msg("upload complete")
	return res.Filename, nil
}
