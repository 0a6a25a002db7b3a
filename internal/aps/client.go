// Package aps talks to the cloud BIM viewer service: object storage upload,
// model translation and the derivative metadata endpoints.
package aps

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/joseph-ayodele/takeoff-tracker/internal/bim"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

var defaultScopes = []string{"data:read", "data:write", "data:create", "bucket:read"}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Bucket       string
	Timeout      time.Duration
}

// Client is a 2-legged OAuth client. The token source caches the access
// token until it is about to expire.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	tokens oauth2.TokenSource
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/authentication/v2/token",
		Scopes:       defaultScopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// Token requests go through the same transport as API calls.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	c.tokens = cc.TokenSource(tokenCtx)
	return c
}

// View is one derivative viewable of a translated model.
type View struct {
	Name string `json:"name"`
	Role string `json:"role"`
	GUID string `json:"guid"`
}

// ManifestStatus reports translation state.
type ManifestStatus struct {
	Status   string `json:"status"`
	Progress string `json:"progress"`
}

// Succeeded reports a finished, usable translation.
func (m ManifestStatus) Succeeded() bool { return m.Status == "success" }

// Failed reports a terminal translation failure.
func (m ManifestStatus) Failed() bool { return m.Status == "failed" || m.Status == "timeout" }

func (c *Client) accessToken() (*oauth2.Token, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, common.ConfigurationError("aps client credentials are not configured")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		c.logger.Error("aps.token.failed", "error", err)
		return nil, fmt.Errorf("aps token: %w", err)
	}
	return tok, nil
}

// do sends req and returns the body and status. Non-2xx is not an error here.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	reqID := uuid.NewString()
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("aps.http.send_error", "req_id", reqID, "path", req.URL.Path, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("aps.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("aps.http.response",
		"req_id", reqID,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.StatusCode, nil
}

// call performs an authenticated request. A 202 is reported as not ready.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.accessToken()
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	token.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, status, err := c.do(req)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusAccepted:
		return common.NotReady(fmt.Sprintf("aps %s is still being processed", path))
	case status == http.StatusNotFound:
		return common.NotFound("aps resource", path)
	case status/100 != 2:
		return fmt.Errorf("aps %s %s: non-2xx status %d: %s", method, path, status, snippet(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type signedUpload struct {
	UploadKey string   `json:"uploadKey"`
	URLs      []string `json:"urls"`
}

// Upload stores data in the configured bucket through a signed single-part
// upload and returns the model URN.
func (c *Client) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	if c.cfg.Bucket == "" {
		return "", common.ConfigurationError("aps bucket is not configured")
	}
	key := url.PathEscape(uuid.NewString() + "-" + filename)
	objPath := fmt.Sprintf("/oss/v2/buckets/%s/objects/%s/signeds3upload", url.PathEscape(c.cfg.Bucket), key)

	var su signedUpload
	if err := c.call(ctx, http.MethodGet, objPath, nil, &su); err != nil {
		return "", fmt.Errorf("request upload url: %w", err)
	}
	if len(su.URLs) == 0 {
		return "", fmt.Errorf("aps returned no upload url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, su.URLs[0], bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	_, status, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("upload bytes: %w", err)
	}
	if status/100 != 2 {
		return "", fmt.Errorf("upload bytes: non-2xx status %d", status)
	}

	var done struct {
		ObjectID string `json:"objectId"`
	}
	if err := c.call(ctx, http.MethodPost, objPath, map[string]string{"uploadKey": su.UploadKey}, &done); err != nil {
		return "", fmt.Errorf("complete upload: %w", err)
	}
	if done.ObjectID == "" {
		return "", fmt.Errorf("aps returned no object id")
	}
	c.logger.Info("aps.upload.ok", "filename", filename, "size_bytes", len(data))
	return EncodeURN(done.ObjectID), nil
}

// EncodeURN is the unpadded URL-safe base64 of an object id.
func EncodeURN(objectID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(objectID))
}

// Translate starts an SVF2 translation job for urn.
func (c *Client) Translate(ctx context.Context, urn string) error {
	job := map[string]any{
		"input": map[string]any{"urn": urn},
		"output": map[string]any{
			"formats": []map[string]any{{"type": "svf2", "views": []string{"2d", "3d"}}},
		},
	}
	var out struct {
		Result string `json:"result"`
	}
	// The job endpoint answers 200 or 201; both mean accepted.
	if err := c.call(ctx, http.MethodPost, "/modelderivative/v2/designdata/job", job, &out); err != nil {
		return fmt.Errorf("start translation: %w", err)
	}
	c.logger.Info("aps.translate.started", "urn", urn, "result", out.Result)
	return nil
}

func (c *Client) Manifest(ctx context.Context, urn string) (ManifestStatus, error) {
	var m ManifestStatus
	err := c.call(ctx, http.MethodGet, "/modelderivative/v2/designdata/"+url.PathEscape(urn)+"/manifest", nil, &m)
	return m, err
}

func (c *Client) ListViews(ctx context.Context, urn string) ([]View, error) {
	var out struct {
		Data struct {
			Metadata []View `json:"metadata"`
		} `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/modelderivative/v2/designdata/"+url.PathEscape(urn)+"/metadata", nil, &out); err != nil {
		return nil, err
	}
	return out.Data.Metadata, nil
}

// PickView prefers the first 3d viewable and falls back to the first one.
func PickView(views []View) (View, bool) {
	for _, v := range views {
		if v.Role == "3d" {
			return v, true
		}
	}
	if len(views) > 0 {
		return views[0], true
	}
	return View{}, false
}

func (c *Client) ObjectTree(ctx context.Context, urn, guid string) ([]bim.Node, error) {
	var out struct {
		Data struct {
			Objects []bim.Node `json:"objects"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/modelderivative/v2/designdata/%s/metadata/%s", url.PathEscape(urn), url.PathEscape(guid))
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data.Objects, nil
}

func (c *Client) Properties(ctx context.Context, urn, guid string) ([]bim.ObjectProperties, error) {
	var out struct {
		Data struct {
			Collection []bim.ObjectProperties `json:"collection"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/modelderivative/v2/designdata/%s/metadata/%s/properties", url.PathEscape(urn), url.PathEscape(guid))
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data.Collection, nil
}

func snippet(b []byte) string {
	const n = 200
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}
