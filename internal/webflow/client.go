// Package webflow is a thin client for the Webflow CMS endpoints this
// service consumes: item creation (v1 collection items), asset upload and
// live item patching (v2). The CMS owns all state; nothing is cached here.
package webflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/designpress/go-services/internal/apperr"
)

const userAgent = "Designpress-PDF-Converter/1.0.0"

// Client wraps the Webflow HTTP API with bearer-token auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the given API base URL (tests point this at
// a local server). Request deadlines come from the caller's context; the
// client itself sets no timeout, matching the platform-governed CMS calls.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Item is a CMS item as returned by Webflow. Raw keeps the upstream
// representation so handlers can echo it verbatim.
type Item struct {
	ID   string
	Slug string
	Raw  json.RawMessage
}

// Asset is the result of an asset upload.
type Asset struct {
	FileID string
	ID     string
	Raw    json.RawMessage
}

// Ref returns the identifier written into an item's file field.
func (a *Asset) Ref() string {
	if a.FileID != "" {
		return a.FileID
	}
	return a.ID
}

// CreateItem creates a new collection item from the given field data.
// Fields should include slug and the _draft/_archived flags.
func (c *Client) CreateItem(ctx context.Context, collectionID string, fields map[string]any) (*Item, error) {
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/collections/%s/items", c.baseURL, collectionID)
	body, err := c.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(payload), "Webflow API error")
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// UploadAsset uploads data as a named site asset and returns its reference.
func (c *Client) UploadAsset(ctx context.Context, siteID, fileName string, data []byte, contentType string) (*Asset, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/sites/%s/assets", c.baseURL, siteID)
	body, err := c.do(ctx, http.MethodPost, url, mw.FormDataContentType(), &buf, "Webflow asset upload error")
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode asset response: %w", err)
	}
	return &Asset{
		FileID: stringField(raw, "fileId"),
		ID:     stringField(raw, "id"),
		Raw:    json.RawMessage(body),
	}, nil
}

// UpdateItemLive patches the live representation of an item with fieldData.
func (c *Client) UpdateItemLive(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*Item, error) {
	payload, err := json.Marshal(map[string]any{"fieldData": fieldData})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v2/collections/%s/items/%s/live", c.baseURL, collectionID, itemID)
	body, err := c.do(ctx, http.MethodPatch, url, "application/json", bytes.NewReader(payload), "Webflow CMS update error")
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// do issues one request and returns the response body, converting any
// non-2xx response into an upstream error carrying status and body text.
func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader, errPrefix string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errPrefix, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", errPrefix, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(errPrefix, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// decodeItem tolerates both the v1 shape (top-level _id/slug) and the v2
// shape (id + fieldData.slug).
func decodeItem(body []byte) (*Item, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode item response: %w", err)
	}
	item := &Item{Raw: json.RawMessage(body)}
	item.ID = stringField(raw, "id")
	if item.ID == "" {
		item.ID = stringField(raw, "_id")
	}
	item.Slug = stringField(raw, "slug")
	if item.Slug == "" {
		if fd, ok := raw["fieldData"].(map[string]any); ok {
			item.Slug = stringField(fd, "slug")
		}
	}
	return item, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
