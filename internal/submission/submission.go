package submission

import (
	"mime/multipart"
	"strings"

	"github.com/designpress/go-services/internal/apperr"
)

// Submission is one decoded form submission. It exists only for the duration
// of a single create-item request and is never persisted by this service.
type Submission struct {
	Name             string                `form:"name"`
	ShortDescription string                `form:"shortDescription"`
	RichText         string                `form:"richText"`
	DesignType       string                `form:"designType"`
	Image            *multipart.FileHeader `form:"image"`
	PDF              *multipart.FileHeader `form:"pdf"`
}

// Validate checks the required fields and normalizes Name. The slug edge case
// is guarded here: a name with no alphanumeric characters produces an empty
// slug, which is rejected before anything reaches the CMS.
func (s *Submission) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return apperr.Validation("Missing required field: name")
	}
	if Slugify(s.Name) == "" {
		return apperr.Validation("Field name must contain at least one alphanumeric character")
	}
	return nil
}

// FieldData builds the Webflow field-data record for a new draft item.
func (s *Submission) FieldData() map[string]any {
	return map[string]any{
		"name":              s.Name,
		"slug":              Slugify(s.Name),
		"short-description": s.ShortDescription,
		"rich-text":         s.RichText,
		"design-type":       s.DesignType,
		"_archived":         false,
		"_draft":            true,
	}
}

// Slugify derives the URL-safe slug for a name: lower-case, every run of
// non-alphanumeric characters collapsed to a single hyphen, leading and
// trailing hyphens trimmed. Empty only when name has no alphanumerics.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
