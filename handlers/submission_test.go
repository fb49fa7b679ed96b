package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designpress/go-services/internal/apperr"
	"github.com/designpress/go-services/internal/config"
	"github.com/designpress/go-services/internal/webflow"
)

// fakeCMS records upstream calls and returns canned results.
type fakeCMS struct {
	createCalls int
	uploadCalls int
	patchCalls  int

	createErr error
	uploadErr error
	patchErr  error

	lastFields    map[string]any
	lastFileName  string
	lastFieldData map[string]any
}

func (f *fakeCMS) CreateItem(_ context.Context, _ string, fields map[string]any) (*webflow.Item, error) {
	f.createCalls++
	f.lastFields = fields
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &webflow.Item{
		ID:   "item123",
		Slug: fields["slug"].(string),
		Raw:  json.RawMessage(fmt.Sprintf(`{"_id":"item123","slug":%q}`, fields["slug"])),
	}, nil
}

func (f *fakeCMS) UploadAsset(_ context.Context, _ string, fileName string, _ []byte, _ string) (*webflow.Asset, error) {
	f.uploadCalls++
	f.lastFileName = fileName
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &webflow.Asset{FileID: "file789", Raw: json.RawMessage(`{"fileId":"file789"}`)}, nil
}

func (f *fakeCMS) UpdateItemLive(_ context.Context, _ string, itemID string, fieldData map[string]any) (*webflow.Item, error) {
	f.patchCalls++
	f.lastFieldData = fieldData
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	return &webflow.Item{ID: itemID, Raw: json.RawMessage(fmt.Sprintf(`{"id":%q}`, itemID))}, nil
}

// fakeRenderer simulates the session lifecycle contract: a session is opened
// per call and must be closed on every exit path.
type fakeRenderer struct {
	pdf          []byte
	err          error
	calls        int
	openSessions int
}

func (f *fakeRenderer) RenderPage(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	f.openSessions++
	defer func() { f.openSessions-- }()
	if f.err != nil {
		return nil, f.err
	}
	return f.pdf, nil
}

type fakeArchive struct {
	calls        int
	keys         []string
	presignCalls int
}

func (f *fakeArchive) StorePDF(_ context.Context, key string, _ []byte) error {
	f.calls++
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeArchive) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.presignCalls++
	return "https://archive.local/" + key, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Webflow: config.WebflowConfig{
			APIToken:     "tok",
			CollectionID: "col1",
			SiteID:       "site1",
		},
	}
}

func newTestRouter(cfg *config.Config, cms CMSClient, r *fakeRenderer, a Archiver) *gin.Engine {
	g := gin.New()
	h := NewSubmissionHandler(cfg, cms, r, a)
	h.Register(g)
	return g
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestCreateItemMissingName(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"shortDescription": "no name"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "name")
	assert.Zero(t, cms.createCalls, "CMS must never be called on validation failure")
}

func TestCreateItemBlankNameRejected(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"name": "   "}, nil)
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, cms.createCalls)
}

func TestCreateItemMissingConfiguration(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(&config.Config{}, cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Test"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "credentials missing")
	assert.Zero(t, cms.createCalls)
}

func TestCreateItemSuccess(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{
		"name":             "My Cool Design!!",
		"shortDescription": "short",
		"richText":         "<p>hi</p>",
		"designType":       "typeA",
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["success"])

	item, ok := resp["webflowItem"].(map[string]any)
	require.True(t, ok, "webflowItem echoes the CMS representation")
	assert.Equal(t, "item123", item["_id"])

	require.Equal(t, 1, cms.createCalls)
	assert.Equal(t, "my-cool-design", cms.lastFields["slug"])
	assert.Equal(t, true, cms.lastFields["_draft"], "items are created as drafts")
}

func TestCreateItemUpstreamFailure(t *testing.T) {
	cms := &fakeCMS{createErr: apperr.Upstream("Webflow API error", 502, "bad gateway")}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Test"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errMsg, _ := decodeBody(t, w)["error"].(string)
	assert.Contains(t, errMsg, "502")
	assert.Contains(t, errMsg, "bad gateway")
}

func TestCreateItemRoutesAttachmentsThroughAssetUpload(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Test"}, map[string][]byte{
		"image": []byte("png-bytes"),
		"pdf":   []byte("%PDF-1.4"),
	})
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, cms.uploadCalls, "both files go through the asset-upload path")
	assert.Equal(t, "file789", cms.lastFields["main-image"])
	assert.Equal(t, "file789", cms.lastFields["pdf-file"])
}

func TestCreateItemAttachmentFailureDoesNotBlockCreation(t *testing.T) {
	cms := &fakeCMS{uploadErr: errors.New("asset store down")}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	body, ct := multipartBody(t, map[string]string{"name": "Test"}, map[string][]byte{
		"image": []byte("png-bytes"),
	})
	req := httptest.NewRequest(http.MethodPost, "/create-cms-item", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, cms.createCalls)
	_, hasRef := cms.lastFields["main-image"]
	assert.False(t, hasRef, "failed attachment upload leaves no reference behind")
}

func TestGeneratePDFMissingURL(t *testing.T) {
	rend := &fakeRenderer{}
	g := newTestRouter(testConfig(), &fakeCMS{}, rend, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate-pdf", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "url")
	assert.Zero(t, rend.calls)
}

func TestGeneratePDFSuccess(t *testing.T) {
	pdf := []byte("%PDF-1.4 rendered content")
	rend := &fakeRenderer{pdf: pdf}
	arch := &fakeArchive{}
	g := newTestRouter(testConfig(), &fakeCMS{}, rend, arch)

	req := httptest.NewRequest(http.MethodPost, "/generate-pdf", strings.NewReader(`{"url":"https://site.webflow.io/designs/test"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(len(pdf)), resp["size"])

	decoded, err := base64.StdEncoding.DecodeString(resp["pdf"].(string))
	require.NoError(t, err)
	assert.Equal(t, pdf, decoded)

	assert.Equal(t, 1, arch.calls, "rendered PDF is archived when an archive is wired")
	assert.Equal(t, 1, arch.presignCalls, "archive URL is resolved for the logs")
	assert.Zero(t, rend.openSessions, "browser session released")
}

func TestGeneratePDFRenderFailureReleasesSession(t *testing.T) {
	rend := &fakeRenderer{err: apperr.Render("PDF rendering timed out after 30s", context.DeadlineExceeded)}
	g := newTestRouter(testConfig(), &fakeCMS{}, rend, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate-pdf", strings.NewReader(`{"url":"https://slow.example"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "timed out")
	assert.Equal(t, 1, rend.calls)
	assert.Zero(t, rend.openSessions, "session must be released on the failure path too")
}

func TestUploadPDFMissingFields(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	for _, body := range []string{`{}`, `{"itemId":"item123"}`, `{"pdfBase64":"aGk="}`} {
		req := httptest.NewRequest(http.MethodPost, "/upload-pdf-to-cms", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
	assert.Zero(t, cms.uploadCalls)
	assert.Zero(t, cms.patchCalls)
}

func TestUploadPDFInvalidBase64(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf-to-cms", strings.NewReader(`{"itemId":"item123","pdfBase64":"%%%not-base64%%%"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, cms.uploadCalls)
}

func TestUploadPDFSuccess(t *testing.T) {
	cms := &fakeCMS{}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf-to-cms",
		strings.NewReader(fmt.Sprintf(`{"itemId":"item123","pdfBase64":%q}`, payload)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["success"])
	assert.NotNil(t, resp["asset"])
	assert.NotNil(t, resp["item"])

	assert.Equal(t, 1, cms.uploadCalls)
	assert.Equal(t, 1, cms.patchCalls)
	assert.Equal(t, "generated.pdf", cms.lastFileName, "default file name applied")
	assert.Equal(t, "file789", cms.lastFieldData["pdf-file"])
}

func TestUploadPDFAssetUploadFailureSkipsPatch(t *testing.T) {
	cms := &fakeCMS{uploadErr: apperr.Upstream("Webflow asset upload error", 500, "boom")}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf-to-cms",
		strings.NewReader(fmt.Sprintf(`{"itemId":"item123","pdfBase64":%q}`, payload)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, cms.uploadCalls)
	assert.Zero(t, cms.patchCalls, "patch never attempted after a failed upload")
}

func TestUploadPDFPatchFailureLeavesAssetOrphaned(t *testing.T) {
	cms := &fakeCMS{patchErr: apperr.Upstream("Webflow CMS update error", 404, "item not found")}
	g := newTestRouter(testConfig(), cms, &fakeRenderer{}, nil)

	payload := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/upload-pdf-to-cms",
		strings.NewReader(fmt.Sprintf(`{"itemId":"item123","pdfBase64":%q}`, payload)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, cms.uploadCalls, "upload happened exactly once")
	assert.Equal(t, 1, cms.patchCalls, "patch attempted exactly once, no retry")
}

func TestNonPOSTMethodsRejected(t *testing.T) {
	cms := &fakeCMS{}
	rend := &fakeRenderer{}
	g := newTestRouter(testConfig(), cms, rend, nil)

	for _, path := range []string{"/create-cms-item", "/generate-pdf", "/upload-pdf-to-cms"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			g.ServeHTTP(w, req)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", method, path)
		}
	}
	assert.Zero(t, cms.createCalls+cms.uploadCalls+cms.patchCalls, "no side effects")
	assert.Zero(t, rend.calls)
}
