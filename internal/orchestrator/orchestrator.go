// Package orchestrator sequences the submission operations the way the
// browser client does, holding the rendered PDF in memory between the render
// stage and the optional upload.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// State of the submission flow.
type State int

const (
	StateIdle State = iota
	StateCreating
	StateRendering
	StatePreviewing
	StateUploading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreating:
		return "creating"
	case StateRendering:
		return "rendering"
	case StatePreviewing:
		return "previewing"
	case StateUploading:
		return "uploading"
	}
	return "unknown"
}

// FormData is the content of one form submission.
type FormData struct {
	Name             string
	ShortDescription string
	RichText         string
	DesignType       string
	// Optional attachment paths; read at submit time.
	ImagePath string
	PDFPath   string
}

// ItemRef identifies the CMS item created by a submission.
type ItemRef struct {
	ItemID  string
	Slug    string
	PageURL string
}

// Orchestrator drives one submission at a time against the backend service.
// It is cooperative and single-goroutine: each stage blocks on its network
// call before the next begins. Not safe for concurrent use.
type Orchestrator struct {
	baseURL         string
	pageURLTemplate string
	hc              *http.Client

	state State
	item  ItemRef
	pdf   []byte
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Orchestrator) { o.hc = hc }
}

// New creates an orchestrator for the service at baseURL. pageURLTemplate
// turns a created item's slug into the public page URL to render, e.g.
// "https://mysite.webflow.io/designs/%s".
func New(baseURL, pageURLTemplate string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		baseURL:         strings.TrimRight(baseURL, "/"),
		pageURLTemplate: pageURLTemplate,
		hc:              &http.Client{},
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State  { return o.state }
func (o *Orchestrator) Item() ItemRef { return o.item }

// PDF returns the held rendered document, or nil outside Previewing.
func (o *Orchestrator) PDF() []byte { return o.pdf }

// Submit runs the creation and render stages. Any failure returns the
// orchestrator to Idle with held state cleared and is never retried
// automatically; a render failure leaves the created CMS item in place,
// cleanup of such items is manual.
func (o *Orchestrator) Submit(ctx context.Context, form FormData) error {
	if o.state != StateIdle {
		return fmt.Errorf("submit is only allowed from idle, current state is %s", o.state)
	}
	if o.pageURLTemplate == "" {
		return fmt.Errorf("page URL template is not configured")
	}

	o.state = StateCreating
	item, err := o.createItem(ctx, form)
	if err != nil {
		o.resetToIdle()
		return fmt.Errorf("create item: %w", err)
	}
	o.item = item

	o.state = StateRendering
	pdf, err := o.generatePDF(ctx, item.PageURL)
	if err != nil {
		o.resetToIdle()
		// name the item that now needs manual cleanup
		return fmt.Errorf("render page for item %s (slug %q): %w", item.ItemID, item.Slug, err)
	}

	o.pdf = pdf
	o.state = StatePreviewing
	return nil
}

// Upload attaches the held PDF to the created item. Only valid while
// Previewing; failure keeps the orchestrator in Previewing so the user can
// retry the upload or save the PDF locally instead.
func (o *Orchestrator) Upload(ctx context.Context, fileName string) error {
	if o.state != StatePreviewing {
		return fmt.Errorf("upload is only allowed while previewing, current state is %s", o.state)
	}
	o.state = StateUploading
	err := o.uploadPDF(ctx, fileName)
	o.state = StatePreviewing
	if err != nil {
		return fmt.Errorf("upload pdf: %w", err)
	}
	return nil
}

// SavePDF writes the held PDF to path.
func (o *Orchestrator) SavePDF(path string) error {
	if o.state != StatePreviewing {
		return fmt.Errorf("no rendered PDF is held, current state is %s", o.state)
	}
	return os.WriteFile(path, o.pdf, 0o644)
}

// Dismiss discards the held PDF and item reference and returns to Idle.
func (o *Orchestrator) Dismiss() {
	o.resetToIdle()
}

func (o *Orchestrator) resetToIdle() {
	o.state = StateIdle
	o.item = ItemRef{}
	o.pdf = nil
}

func (o *Orchestrator) createItem(ctx context.Context, form FormData) (ItemRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"name":             form.Name,
		"shortDescription": form.ShortDescription,
		"richText":         form.RichText,
		"designType":       form.DesignType,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return ItemRef{}, err
		}
	}
	for field, path := range map[string]string{"image": form.ImagePath, "pdf": form.PDFPath} {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return ItemRef{}, err
		}
		fw, err := mw.CreateFormFile(field, filepath.Base(path))
		if err == nil {
			_, err = io.Copy(fw, f)
		}
		f.Close()
		if err != nil {
			return ItemRef{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return ItemRef{}, err
	}

	body, err := o.post(ctx, "/create-cms-item", mw.FormDataContentType(), &buf)
	if err != nil {
		return ItemRef{}, err
	}

	var resp struct {
		WebflowItem map[string]any `json:"webflowItem"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ItemRef{}, fmt.Errorf("decode response: %w", err)
	}
	ref := ItemRef{
		ItemID: stringField(resp.WebflowItem, "id"),
		Slug:   stringField(resp.WebflowItem, "slug"),
	}
	if ref.ItemID == "" {
		ref.ItemID = stringField(resp.WebflowItem, "_id")
	}
	if ref.ItemID == "" {
		return ItemRef{}, fmt.Errorf("response carries no item id")
	}
	ref.PageURL = fmt.Sprintf(o.pageURLTemplate, ref.Slug)
	return ref, nil
}

func (o *Orchestrator) generatePDF(ctx context.Context, pageURL string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		return nil, err
	}
	body, err := o.post(ctx, "/generate-pdf", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var resp struct {
		PDF  string `json:"pdf"`
		Size int    `json:"size"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	pdf, err := base64.StdEncoding.DecodeString(resp.PDF)
	if err != nil {
		return nil, fmt.Errorf("decode pdf payload: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("response carries no pdf")
	}
	return pdf, nil
}

func (o *Orchestrator) uploadPDF(ctx context.Context, fileName string) error {
	payload, err := json.Marshal(map[string]string{
		"itemId":    o.item.ItemID,
		"pdfBase64": base64.StdEncoding.EncodeToString(o.pdf),
		"fileName":  fileName,
	})
	if err != nil {
		return err
	}
	_, err = o.post(ctx, "/upload-pdf-to-cms", "application/json", bytes.NewReader(payload))
	return err
}

// post issues one request and surfaces the server's structured error message
// on non-2xx responses.
func (o *Orchestrator) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := o.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s: %s", path, e.Error)
		}
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return respBody, nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
