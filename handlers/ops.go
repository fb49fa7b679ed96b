package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/designpress/go-services/internal/config"
)

var startTime = time.Now()

// RegisterOps mounts liveness, readiness, and the masked configuration
// introspection endpoint.
func RegisterOps(r *gin.Engine, cfg *config.Config, archiveReady bool) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: Webflow credentials are the one hard dependency; the
	// archive is optional and only reported when configured.
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{
			"webflow": cfg.Webflow.Validate() == nil,
		}
		if cfg.Archive.Enabled() {
			deps["archive"] = archiveReady
		}
		ready := deps["webflow"]
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// masked previews only; the raw credentials never leave the process
	r.GET("/debug/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"hasApiKey":           cfg.Webflow.APIToken != "",
			"hasCollectionId":     cfg.Webflow.CollectionID != "",
			"hasSiteId":           cfg.Webflow.SiteID != "",
			"apiKeyPreview":       maskSecret(cfg.Webflow.APIToken),
			"collectionIdPreview": maskSecret(cfg.Webflow.CollectionID),
			"siteIdPreview":       maskSecret(cfg.Webflow.SiteID),
		})
	})
}

// maskSecret shows the first and last four characters of a credential, or
// "NOT SET" when absent. Short values are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "NOT SET"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
