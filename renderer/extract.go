package renderer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	readability "github.com/go-shiori/go-readability"
	"github.com/pagelens/pagelens/models"
	"golang.org/x/net/html"
	nurl "net/url"
)

// noiseSelectors are stripped from the DOM before plain-text extraction, on
// top of the caller's removeElements list.
var noiseSelectors = []string{
	"script", "style", "noscript", "template", "iframe",
	"nav", "aside", "header > nav", "footer",
	`[class*="advert"]`, `[class*="ad-"]`, `[id*="advert"]`,
	`[class*="cookie-banner"]`, `[class*="consent"]`,
}

// blockTags force a paragraph break in the text output.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "br": true, "blockquote": true, "pre": true,
}

var spaceRe = regexp.MustCompile(`[ \t\r\f]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// minTextLength is the threshold under which the DOM traversal is assumed to
// have missed the content and the readability fallback kicks in.
const minTextLength = 80

// ExtractText converts rendered HTML into plain text preserving reading
// order: noise elements and the caller's removeElements are stripped first,
// text nodes are joined with single-space normalisation, block boundaries
// become paragraph breaks.
func ExtractText(html, sourceURL string, removeSelectors []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("text extraction: unparseable HTML", "error", err)
		return ""
	}

	for _, sel := range removeSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var sb strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			if goquery.NodeName(node) == "#text" {
				text := spaceRe.ReplaceAllString(node.Text(), " ")
				if strings.TrimSpace(text) != "" {
					sb.WriteString(text)
				}
				return
			}
			name := goquery.NodeName(node)
			if blockTags[name] {
				sb.WriteString("\n")
			}
			walk(node)
			if blockTags[name] {
				sb.WriteString("\n")
			}
		})
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	walk(root)

	text := blankLinesRe.ReplaceAllString(sb.String(), "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))

	if len(text) < minTextLength {
		// The rescue path reads the stripped document and gets the same
		// whitespace normalisation, so removals stay removed.
		if stripped, herr := doc.Html(); herr == nil {
			fallback := spaceRe.ReplaceAllString(readabilityText(stripped, sourceURL), " ")
			flines := strings.Split(fallback, "\n")
			for i, line := range flines {
				flines[i] = strings.TrimSpace(line)
			}
			fallback = strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(flines, "\n"), "\n\n"))
			if len(fallback) > len(text) {
				return fallback
			}
		}
	}
	return text
}

// readabilityText runs the Mozilla Readability algorithm as a rescue path
// for pages whose text lives outside the usual DOM shape.
func readabilityText(html, sourceURL string) string {
	parsed, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		slog.Warn("readability fallback failed", "url", sourceURL, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// htmlTitle pulls the <title> content straight out of the markup, for pages
// whose document.title read fails or comes back empty.
func htmlTitle(raw string) string {
	tokenizer := html.NewTokenizer(bytes.NewReader([]byte(raw)))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}

// newMarkdownConverter creates a reusable, goroutine-safe converter: the base
// plugin strips script/style/head noise, commonmark renders the structure,
// and the table plugin keeps tabular data intact with minimal padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

var markdownConv = newMarkdownConverter()

// ToMarkdown converts rendered HTML to Markdown, resolving relative links
// against the final URL so the output is self-contained.
func ToMarkdown(html, finalURL string) (string, error) {
	domain := ""
	if u, err := nurl.Parse(finalURL); err == nil {
		domain = u.Scheme + "://" + u.Host
	}
	return markdownConv.ConvertString(html, converter.WithDomain(domain))
}

// captureScreenshot grabs the current page as PNG or JPEG bytes.
func captureScreenshot(p *rod.Page, opts *models.ScreenshotOptions) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{}
	if opts.Format == "jpeg" {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		q := opts.Quality
		if q == 0 {
			q = 80
		}
		req.Quality = &q
	} else {
		req.Format = proto.PageCaptureScreenshotFormatPng
	}
	return p.Screenshot(opts.FullPage, req)
}

// imageDimensions reads the pixel size out of encoded PNG/JPEG bytes without
// decoding the full image. Returns zeros when the bytes are not a readable
// image.
func imageDimensions(data []byte) (w, h int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Debug("screenshot dimension probe failed", "error", err)
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// paperDimensions maps a paper-size name onto width/height in inches.
func paperDimensions(size string) (w, h float64) {
	switch strings.ToUpper(size) {
	case "LETTER":
		return 8.5, 11
	case "LEGAL":
		return 8.5, 14
	case "A3":
		return 11.69, 16.54
	case "TABLOID":
		return 11, 17
	default: // A4
		return 8.27, 11.69
	}
}

// capturePDF prints the page. Background rendering is always on and the
// scale is pinned at 1.0; the caller's margins are honoured.
func capturePDF(p *rod.Page, opts *models.PDFOptions) ([]byte, error) {
	w, h := paperDimensions(opts.PaperSize)
	scale := 1.0
	margin := opts.MarginIn

	req := &proto.PagePrintToPDF{
		PrintBackground: true,
		Scale:           &scale,
		PaperWidth:      &w,
		PaperHeight:     &h,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
	}

	reader, err := p.PDF(req)
	if err != nil {
		return nil, fmt.Errorf("pdf print failed: %w", err)
	}
	return io.ReadAll(reader)
}
