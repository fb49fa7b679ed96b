// Package render drives a headless browser to print a CMS page as PDF.
package render

import (
	"context"
	"time"
)

const (
	// A4 dimensions in inches; Chrome's print API takes inches.
	a4WidthInches    = 8.27
	a4HeightInches   = 11.69
	cssPixelsPerInch = 96

	defaultTimeout  = 30 * time.Second
	defaultMarginPx = 20
)

// Renderer turns a page URL into PDF bytes. The browser session backing a
// call is scoped to that call and released on every exit path.
type Renderer interface {
	RenderPage(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Chrome renderer.
type Options struct {
	// Timeout bounds navigation, network idle wait, and printing.
	Timeout time.Duration
	// MarginPx is applied to all four sides.
	MarginPx float64
	// RemoteURL connects to an existing Chrome instead of launching one.
	RemoteURL string
	// NoSandbox is required when running as root in a container.
	NoSandbox bool
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.MarginPx == 0 {
		o.MarginPx = defaultMarginPx
	}
	return o
}

func pxToInches(px float64) float64 {
	return px / cssPixelsPerInch
}
