package synopsis

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ChromiumPDFRenderer prints the markdown synopsis to PDF through a
// headless Chromium. The binary is located automatically; set chromePath
// to override.
type ChromiumPDFRenderer struct {
	chromePath string
}

func NewChromiumPDFRenderer() *ChromiumPDFRenderer {
	return &ChromiumPDFRenderer{chromePath: detectChromePath()}
}

// RenderResult prints a generated synopsis, with the protocol header as
// document metadata.
func (r *ChromiumPDFRenderer) RenderResult(ctx context.Context, res Result) ([]byte, error) {
	meta := "<div><strong>Protocol:</strong> " + html.EscapeString(res.Synopsis.ProtocolID) + "</div>" +
		"<div><strong>Version:</strong> " + html.EscapeString(res.Synopsis.ProtocolVersion) + "</div>"
	if res.Synopsis.Sponsor != "" {
		meta += "<div><strong>Sponsor:</strong> " + html.EscapeString(res.Synopsis.Sponsor) + "</div>"
	}
	return r.Render(ctx, res.Synopsis.ProtocolTitle, meta, RenderMarkdown(res))
}

// Render prints a markdown document to PDF. metaHTML may be empty.
func (r *ChromiumPDFRenderer) Render(ctx context.Context, title, metaHTML, markdown string) ([]byte, error) {
	htmlDoc, err := buildHTML(title, metaHTML, markdown)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.6).
				WithMarginBottom(0.75).
				WithMarginLeft(0.55).
				WithMarginRight(0.55).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func buildHTML(title, metaHTML, markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	metaBlock := ""
	if metaHTML != "" {
		metaBlock = "<div class='doc-meta'>" + metaHTML + "</div>"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" +
		html.EscapeString(title) + "</title>" +
		"<style>" + synopsisCSS + "</style></head><body>" +
		"<div class='doc'>" + metaBlock +
		"<div class='doc-body'>" + content.String() + "</div></div>" +
		"</body></html>", nil
}

const synopsisCSS = `
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
body{font-family:Georgia,"Times New Roman",serif;font-size:11pt;line-height:1.45;color:#1c1917;background:#fff;margin:0;padding:0.5rem;}
.doc{max-width:900px;margin:0 auto;}
.doc-meta{font-size:9.5pt;color:#44403c;border-bottom:2px solid #1e3a5f;padding-bottom:0.4rem;margin-bottom:1rem;}
.doc-meta strong{color:#1c1917;}
.doc-body h1{font-size:15pt;color:#1e3a5f;border-bottom:1px solid #cbd5e1;padding-bottom:0.2rem;}
.doc-body h2{font-size:12pt;color:#1e3a5f;margin-top:1.1em;}
.doc-body table{width:100%;border-collapse:collapse;font-size:9.5pt;}
.doc-body th,.doc-body td{border:1px solid #a8a29e;padding:0.3rem 0.4rem;text-align:left;vertical-align:top;}
.doc-body thead th{background:#f1f5f9;font-weight:700;}
.doc-body code{font-family:"DejaVu Sans Mono",monospace;font-size:9pt;background:#f5f5f4;padding:0 0.15rem;}
@media print{ @page{size:A4;margin:14mm;} body{padding:0;} .doc{max-width:none;} }
`

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
