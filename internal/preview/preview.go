// Package preview renders tickets to PNG with headless Chrome so the
// dashboard can show what the printer will produce.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/utils"
)

// DefaultTimeout bounds one screenshot, browser start included.
const DefaultTimeout = 15 * time.Second

// ErrNoBrowser is returned when no Chrome or Chromium binary is available.
var ErrNoBrowser = errors.New("chrome/chromium is required for image previews but was not found")

// ticketTemplate lays the ticket out in a monospace column of Width
// characters, the way a thermal head prints it.
var ticketTemplate = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  html, body { margin: 0; background: #fff; }
  pre {
    margin: 0;
    padding: 8px;
    width: {{.Width}}ch;
    font-family: "DejaVu Sans Mono", "Courier New", monospace;
    font-size: 14px;
    line-height: 1.25;
    color: #000;
    white-space: pre;
  }
</style>
</head>
<body><pre>{{.Text}}</pre></body>
</html>
`))

type Renderer struct {
	// ChromePath forces a browser binary; empty lets chromedp find one.
	ChromePath string
	Timeout    time.Duration
}

// New builds a Renderer from configuration. Without a configured path the
// usual install locations are searched; ErrNoBrowser is returned when none
// has a browser.
func New(cfg model.PreviewConfig) (Renderer, error) {
	r := Renderer{ChromePath: cfg.ChromePath, Timeout: cfg.Timeout}
	if r.ChromePath == "" {
		found, path := utils.CheckChrome()
		if !found {
			return r, ErrNoBrowser
		}
		r.ChromePath = path
	}
	return r, nil
}

// renderHTML returns the page that is screenshotted for ticket.
func renderHTML(ticket layout.Ticket) (string, error) {
	var buf bytes.Buffer
	err := ticketTemplate.Execute(&buf, struct {
		Width int
		Text  string
	}{Width: ticket.Width, Text: ticket.Text()})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// PNG screenshots the rendered ticket.
func (r Renderer) PNG(ctx context.Context, ticket layout.Ticket) ([]byte, error) {
	html, err := renderHTML(ticket)
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cdpCancel := chromedp.NewContext(allocCtx)
	defer cdpCancel()

	var png []byte
	err = chromedp.Run(cdpCtx,
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.WaitReady("pre", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			png = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating image: %w", err)
	}
	return png, nil
}

func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
