package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sunmatch/internal"
)

func TestExtractFromEmailRawPlain(t *testing.T) {
	raw := []byte("Subject: Your Solar Quote\r\n" +
		"From: sales@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"30 x EGING EG-440NT54-HL/BF-DG 440W solar panels\r\n")

	doc, err := ExtractFromEmailRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Subject != "Your Solar Quote" {
		t.Fatalf("subject = %q", doc.Subject)
	}
	if doc.Method != internal.MethodNative {
		t.Fatalf("method = %q", doc.Method)
	}
	if !strings.Contains(doc.Text, "EG-440NT54-HL/BF-DG") {
		t.Fatalf("body text missing: %q", doc.Text)
	}
}

func TestExtractFromEmailRawHTML(t *testing.T) {
	raw := []byte("Subject: Quote\r\n" +
		"From: sales@example.com\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><h2>Equipment</h2><p>GOODWE GW6000-EH 6kW inverter</p></body></html>\r\n")

	doc, err := ExtractFromEmailRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.Text, "Equipment") || !strings.Contains(doc.Text, "GW6000-EH") {
		t.Fatalf("html text missing: %q", doc.Text)
	}
}

func TestHTMLToTextLineOriented(t *testing.T) {
	html := `<table><tr><td>GOODWE</td><td>GW6000-EH</td></tr><tr><td>Price</td><td>$9,990</td></tr></table>`
	text := htmlToText(html)
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), text)
	}
}

func TestExtractFileTxt(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "scan.txt")
	if err := os.WriteFile(path, []byte("EGING EG-440NT54-HL/BF-DG 440W"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := ExtractFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Method != internal.MethodNative {
		t.Fatalf("method = %q", doc.Method)
	}
	if !strings.Contains(doc.Text, "440W") {
		t.Fatalf("text = %q", doc.Text)
	}
}

func TestExtractFileUnsupported(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "notes.docx")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractFile(path); !errors.Is(err, internal.ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
}
