package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/designpress/go-services/internal/apperr"
	"github.com/designpress/go-services/internal/config"
	"github.com/designpress/go-services/internal/render"
	"github.com/designpress/go-services/internal/submission"
	"github.com/designpress/go-services/internal/webflow"
	"github.com/designpress/go-services/pkg/logger"
	"github.com/designpress/go-services/pkg/metrics"
)

// CMSClient is the slice of the Webflow client the handlers depend on.
// Tests substitute a recording fake.
type CMSClient interface {
	CreateItem(ctx context.Context, collectionID string, fields map[string]any) (*webflow.Item, error)
	UploadAsset(ctx context.Context, siteID, fileName string, data []byte, contentType string) (*webflow.Asset, error)
	UpdateItemLive(ctx context.Context, collectionID, itemID string, fieldData map[string]any) (*webflow.Item, error)
}

// Archiver stores an off-to-the-side copy of rendered PDFs. Optional.
type Archiver interface {
	StorePDF(ctx context.Context, key string, data []byte) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// SubmissionHandler implements the three form-pipeline operations:
// item creation, PDF generation, and PDF attachment. Each request is an
// independent, stateless unit; the only state lives in the CMS.
type SubmissionHandler struct {
	cfg      *config.Config
	cms      CMSClient
	renderer render.Renderer
	archive  Archiver
}

// NewSubmissionHandler wires the handler; archive may be nil.
func NewSubmissionHandler(cfg *config.Config, cms CMSClient, renderer render.Renderer, archive Archiver) *SubmissionHandler {
	return &SubmissionHandler{cfg: cfg, cms: cms, renderer: renderer, archive: archive}
}

// Register mounts the POST endpoints. Non-POST methods on these paths get a
// 405 instead of gin's default 404.
func (h *SubmissionHandler) Register(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
	})
	r.POST("/create-cms-item", h.CreateItem)
	r.POST("/generate-pdf", h.GeneratePDF)
	r.POST("/upload-pdf-to-cms", h.UploadPDF)
}

// CreateItem accepts the multipart form submission and creates a draft CMS
// item. Not idempotent: every successful call creates a new item.
func (h *SubmissionHandler) CreateItem(c *gin.Context) {
	var sub submission.Submission
	if err := c.ShouldBind(&sub); err != nil {
		respondError(c, apperr.Validation("Error parsing form data."))
		return
	}
	if err := sub.Validate(); err != nil {
		respondError(c, err)
		return
	}
	if err := h.cfg.Webflow.Validate(); err != nil {
		logger.Errorf("create-cms-item: %v", err)
		respondError(c, err)
		return
	}

	logger.Infof("received submission: name=%q designType=%q image=%t pdf=%t",
		sub.Name, sub.DesignType, sub.Image != nil, sub.PDF != nil)

	fields := sub.FieldData()
	h.attachUploads(c.Request.Context(), &sub, fields)

	item, err := h.cms.CreateItem(c.Request.Context(), h.cfg.Webflow.CollectionID, fields)
	if err != nil {
		logger.Errorf("Webflow create item failed: %v", err)
		metrics.ItemsCreated.WithLabelValues(metrics.OutcomeError).Inc()
		respondError(c, err)
		return
	}

	logger.Infof("Webflow CMS item created: id=%s slug=%s", item.ID, item.Slug)
	metrics.ItemsCreated.WithLabelValues(metrics.OutcomeOK).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "webflowItem": item.Raw})
}

// attachUploads routes submitted image/pdf files through the same CMS
// asset-upload path the attachment operation uses and records the returned
// references in the field data. A failed upload is logged and skipped;
// creation is never blocked on attachments. Without a configured site ID the
// files are logged and discarded.
func (h *SubmissionHandler) attachUploads(ctx context.Context, sub *submission.Submission, fields map[string]any) {
	if sub.Image == nil && sub.PDF == nil {
		return
	}
	if h.cfg.Webflow.SiteID == "" {
		logger.Warnf("submission carries attachments but no Webflow site ID is configured; dropping them")
		return
	}
	if sub.Image != nil {
		if ref, err := h.uploadAttachment(ctx, sub.Image); err != nil {
			logger.Warnf("image attachment upload failed: %v", err)
		} else {
			fields["main-image"] = ref
		}
	}
	if sub.PDF != nil {
		if ref, err := h.uploadAttachment(ctx, sub.PDF); err != nil {
			logger.Warnf("pdf attachment upload failed: %v", err)
		} else {
			fields["pdf-file"] = ref
		}
	}
}

func (h *SubmissionHandler) uploadAttachment(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	asset, err := h.cms.UploadAsset(ctx, h.cfg.Webflow.SiteID, fh.Filename, data, contentType)
	if err != nil {
		return "", err
	}
	return asset.Ref(), nil
}

// GeneratePDF renders the given page URL to a PDF and returns it base64
// encoded along with the raw byte length.
func (h *SubmissionHandler) GeneratePDF(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		respondError(c, apperr.Validation("Missing required field: url"))
		return
	}

	logger.Infof("generating PDF from URL: %s", req.URL)
	start := time.Now()
	pdf, err := h.renderer.RenderPage(c.Request.Context(), req.URL)
	if err != nil {
		logger.Errorf("PDF generation failed: %v", err)
		metrics.PDFsRendered.WithLabelValues(metrics.OutcomeError).Inc()
		respondError(c, err)
		return
	}
	metrics.PDFsRendered.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.RenderDuration.Observe(time.Since(start).Seconds())
	logger.Infof("PDF generated successfully, size: %d", len(pdf))

	h.archivePDF(c.Request.Context(), pdf)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pdf":     base64.StdEncoding.EncodeToString(pdf),
		"size":    len(pdf),
	})
}

// archivePDF stores a copy in the configured bucket. Failures are logged and
// otherwise ignored; the archive is never a store of record.
func (h *SubmissionHandler) archivePDF(ctx context.Context, pdf []byte) {
	if h.archive == nil {
		return
	}
	key := fmt.Sprintf("%s/%s.pdf", time.Now().UTC().Format("2006/01/02"), uuid.NewString())
	if err := h.archive.StorePDF(ctx, key, pdf); err != nil {
		logger.Warnf("archiving rendered PDF failed: %v", err)
		return
	}
	url, err := h.archive.PresignedURL(ctx, key, 24*time.Hour)
	if err != nil {
		logger.Debugf("rendered PDF archived under %s", key)
		return
	}
	logger.Infof("rendered PDF archived under %s: %s", key, url)
}

// UploadPDF decodes the base64 payload, uploads it as a CMS asset, then
// patches the item's live file field. If the upload fails the patch is never
// attempted; if the patch fails the asset stays orphaned in the CMS asset
// store (accepted inconsistency window, no compensating delete, no retry).
func (h *SubmissionHandler) UploadPDF(c *gin.Context) {
	var req struct {
		ItemID    string `json:"itemId"`
		PDFBase64 string `json:"pdfBase64"`
		FileName  string `json:"fileName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID == "" || req.PDFBase64 == "" {
		respondError(c, apperr.Validation("Missing required fields: itemId, pdfBase64"))
		return
	}
	if err := h.cfg.Webflow.ValidateAssets(); err != nil {
		logger.Errorf("upload-pdf-to-cms: %v", err)
		respondError(c, err)
		return
	}

	pdf, err := base64.StdEncoding.DecodeString(req.PDFBase64)
	if err != nil {
		respondError(c, apperr.Validation("Invalid pdfBase64 payload"))
		return
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = "generated.pdf"
	}

	logger.Infof("uploading PDF to CMS item: %s", req.ItemID)

	asset, err := h.cms.UploadAsset(c.Request.Context(), h.cfg.Webflow.SiteID, fileName, pdf, "application/pdf")
	if err != nil {
		logger.Errorf("Webflow asset upload failed: %v", err)
		metrics.AssetUploads.WithLabelValues(metrics.OutcomeError).Inc()
		respondError(c, err)
		return
	}

	item, err := h.cms.UpdateItemLive(c.Request.Context(), h.cfg.Webflow.CollectionID, req.ItemID, map[string]any{
		"pdf-file": asset.Ref(),
	})
	if err != nil {
		logger.Errorf("Webflow CMS update failed, asset %s is orphaned: %v", asset.Ref(), err)
		metrics.AssetUploads.WithLabelValues(metrics.OutcomeError).Inc()
		respondError(c, err)
		return
	}

	logger.Infof("CMS item %s updated with PDF asset %s", item.ID, asset.Ref())
	metrics.AssetUploads.WithLabelValues(metrics.OutcomeOK).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "asset": asset.Raw, "item": item.Raw})
}

// respondError converts any failure into the structured JSON error body; no
// raw error values cross the HTTP boundary in any other shape.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}
