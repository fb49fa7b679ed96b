// Command submit drives a full design submission against a running
// submission service: create the CMS item, render its page to PDF, and
// optionally publish the PDF back onto the item.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/designpress/go-services/internal/orchestrator"
)

func main() {
	var (
		server       = pflag.String("server", "http://localhost:5020", "base URL of the submission service")
		pageTemplate = pflag.String("page-template", "", "printf template mapping a slug to its public page URL, e.g. https://mysite.webflow.io/designs/%s")
		name         = pflag.String("name", "", "design name (required)")
		description  = pflag.String("description", "", "short description")
		richText     = pflag.String("rich-text", "", "rich text body (HTML)")
		designType   = pflag.String("design-type", "", "design type")
		imagePath    = pflag.String("image", "", "path to a main image to attach")
		pdfPath      = pflag.String("pdf", "", "path to a PDF to attach")
		upload       = pflag.Bool("upload", false, "publish the rendered PDF back onto the CMS item")
		out          = pflag.String("out", "", "write the rendered PDF to this path")
		fileName     = pflag.String("file-name", "", "file name for the published PDF (default derived server-side)")
		timeout      = pflag.Duration("timeout", 2*time.Minute, "overall timeout for the submission")
	)
	pflag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "submit: --name is required")
		pflag.Usage()
		os.Exit(2)
	}
	if *pageTemplate == "" {
		fmt.Fprintln(os.Stderr, "submit: --page-template is required (the render step needs a public page URL)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	o := orchestrator.New(*server, *pageTemplate)
	form := orchestrator.FormData{
		Name:             *name,
		ShortDescription: *description,
		RichText:         *richText,
		DesignType:       *designType,
		ImagePath:        *imagePath,
		PDFPath:          *pdfPath,
	}

	if err := o.Submit(ctx, form); err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}

	item := o.Item()
	fmt.Printf("created item %s (slug %q)\n", item.ItemID, item.Slug)
	fmt.Printf("rendered %s (%d bytes)\n", item.PageURL, len(o.PDF()))

	if *out != "" {
		if err := o.SavePDF(*out); err != nil {
			fmt.Fprintf(os.Stderr, "submit: saving PDF: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *out)
	}

	if *upload {
		if err := o.Upload(ctx, *fileName); err != nil {
			fmt.Fprintf(os.Stderr, "submit: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("published PDF onto item %s\n", item.ItemID)
	}
}
