package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/naperu/wabarelay/internal/domain"
)

// maxDownload bounds media downloads from the gateway.
const maxDownload = 100 << 20

type Config struct {
	// MessagesURL is the full endpoint messages are posted to.
	MessagesURL string
	// MediaUploadURL is the endpoint for pre-uploading media; optional.
	MediaUploadURL string
	// GraphURL is the base that media ids are resolved against.
	GraphURL    string
	AccessToken string
	Timeout     time.Duration
	// MaxDownload caps a single media download in bytes.
	MaxDownload int64
}

// Client is a bearer-authenticated client for the gateway HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxDownload <= 0 {
		cfg.MaxDownload = maxDownload
	}
	cfg.GraphURL = strings.TrimRight(cfg.GraphURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether outbound sends can reach the gateway.
func (c *Client) Configured() bool {
	return c.cfg.AccessToken != "" && c.cfg.MessagesURL != ""
}

// CanUpload reports whether media can be pre-uploaded.
func (c *Client) CanUpload() bool {
	return c.cfg.AccessToken != "" && c.cfg.MediaUploadURL != ""
}

func (c *Client) do(req *http.Request, limit int64) ([]byte, http.Header, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway %s request failed: %v: %w", req.Method, err, domain.ErrUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, fmt.Errorf("gateway read body: %v: %w", err, domain.ErrUpstream)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("gateway %s %s returned %d: %s: %w",
			req.Method, req.URL.Path, resp.StatusCode, truncate(body, 300), domain.ErrUpstream)
	}
	if int64(len(body)) > limit {
		return nil, nil, fmt.Errorf("gateway %s %s body exceeds %d bytes: %w",
			req.Method, req.URL.Path, limit, domain.ErrUpstream)
	}
	return body, resp.Header, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gateway marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	body, _, err := c.do(req, 1<<20)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gateway decode response: %v: %w", err, domain.ErrUpstream)
	}
	return nil
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts msg and returns the remote message id.
func (c *Client) Send(ctx context.Context, msg OutboundMessage) (string, error) {
	var resp sendResponse
	if err := c.doJSON(ctx, http.MethodPost, c.cfg.MessagesURL, msg, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("gateway response has no message id: %w", domain.ErrUpstream)
	}
	return resp.Messages[0].ID, nil
}

// MediaDescriptor is what the gateway returns for a media id.
type MediaDescriptor struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

func (c *Client) GetMedia(ctx context.Context, mediaID string) (*MediaDescriptor, error) {
	var desc MediaDescriptor
	if err := c.doJSON(ctx, http.MethodGet, c.cfg.GraphURL+"/"+mediaID, nil, &desc); err != nil {
		return nil, err
	}
	if desc.URL == "" {
		return nil, fmt.Errorf("media %s has no download url: %w", mediaID, domain.ErrUpstream)
	}
	return &desc, nil
}

// Download fetches raw bytes from a media URL returned by GetMedia.
func (c *Client) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	body, header, err := c.do(req, c.cfg.MaxDownload)
	if err != nil {
		return nil, "", err
	}
	return body, header.Get("Content-Type"), nil
}

// FetchMedia resolves a media id and downloads its bytes.
func (c *Client) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	desc, err := c.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}
	data, contentType, err := c.Download(ctx, desc.URL)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = desc.MimeType
	}
	return data, contentType, nil
}

// UploadMedia pre-uploads a local file and returns its media id.
func (c *Client) UploadMedia(ctx context.Context, filePath, mimeType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("messaging_product", messagingProduct)
	_ = w.WriteField("type", mimeType)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filePath)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MediaUploadURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, _, err := c.do(req, 1<<20)
	if err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return "", fmt.Errorf("gateway upload returned no media id: %w", domain.ErrUpstream)
	}
	return resp.ID, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
