package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"sunmatch/internal"
)

// ExtractedDocument is the raw text recovered from one ingested document
// before normalization, plus where it came from.
type ExtractedDocument struct {
	Text            string
	Method          internal.ExtractionMethod
	Subject         string
	AttachmentNames []string
}

// ExtractFromEmailRaw pulls proposal text out of a raw RFC 5322 message:
// the plain body, the HTML body stripped to text, and the plain text of any
// PDF attachment. Method is native when only the bodies contribute and
// hybrid when attachment text is mixed in. OCR-sourced text never originates
// here; upstream OCR services hand us text files and mark them themselves.
func ExtractFromEmailRaw(raw []byte) (ExtractedDocument, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return ExtractedDocument{}, err
	}

	parts := make([]string, 0, 4)
	if env.Text != "" {
		parts = append(parts, env.Text)
	}
	if env.HTML != "" {
		if text := htmlToText(env.HTML); text != "" {
			parts = append(parts, text)
		}
	}
	bodyParts := len(parts)

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			text, err := pdfToText(att.Content)
			if err != nil || strings.TrimSpace(text) == "" {
				continue
			}
			parts = append(parts, text)
		}
	}

	method := internal.MethodNative
	if bodyParts > 0 && len(parts) > bodyParts {
		method = internal.MethodHybrid
	}

	return ExtractedDocument{
		Text:            strings.Join(parts, "\n\n"),
		Method:          method,
		Subject:         env.GetHeader("Subject"),
		AttachmentNames: attachmentNames,
	}, nil
}

// ExtractFile handles the one-shot path: a standalone .pdf, .eml or .txt on
// disk. Anything else is ErrUnsupportedInput.
func ExtractFile(path string) (ExtractedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExtractedDocument{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := pdfToText(raw)
		if err != nil {
			return ExtractedDocument{}, err
		}
		return ExtractedDocument{Text: text, Method: internal.MethodNative}, nil
	case ".eml":
		return ExtractFromEmailRaw(raw)
	case ".txt":
		return ExtractedDocument{Text: string(raw), Method: internal.MethodNative}, nil
	}
	return ExtractedDocument{}, internal.ErrUnsupportedInput
}

func pdfToText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// htmlToText flattens the HTML body to line-oriented text so the section
// anchors and field extractor see headings and rows the way a PDF render
// would present them.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	lines := []string{}
	doc.Find("h1,h2,h3,h4,p,li,tr,div").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Filter("h1,h2,h3,h4,p,li,tr,div").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(lines, "\n")
}
