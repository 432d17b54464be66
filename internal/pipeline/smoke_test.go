package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/config"
	"sunmatch/internal/storage"
)

func TestSmokeEmailToXLSX(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.UpsertProducts(testCatalog()); err != nil {
		t.Fatal(err)
	}

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "sample_proposal.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := db.UpsertDocument("gmail", "<proposal-1@brightspark.example>", "Your Solar Proposal",
		"sales@brightspark.example", "2026-08-10T09:30:00Z", "hash", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	// Tight window so adjacent line items don't bleed into each other's
	// validation context in this compact fixture.
	cfg.ContextWindow = 60

	proc, err := NewProcessingService(db, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := proc.ProcessDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Fatal("fixture must be detected as a proposal")
	}
	if res.Candidates != 3 {
		t.Fatalf("expected 3 candidates, got %d", res.Candidates)
	}

	stored, err := db.GetDocumentByID(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.Status != "processed" {
		t.Fatalf("document status = %+v", stored)
	}
	if stored.Method != string(internal.MethodNative) {
		t.Fatalf("method = %q", stored.Method)
	}

	rows, err := db.GetExportRows(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 export rows, got %d", len(rows))
	}
	if rows[0].ProductType != "panel" || rows[1].ProductType != "battery" || rows[2].ProductType != "inverter" {
		t.Fatalf("row order wrong: %q %q %q", rows[0].ProductType, rows[1].ProductType, rows[2].ProductType)
	}

	out := filepath.Join(tmp, "result.xlsx")
	if err := ExportRowsToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestProcessSkipsNonProposal(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.UpsertProducts(testCatalog()); err != nil {
		t.Fatal(err)
	}

	raw := "Subject: Invoice overdue\r\n" +
		"From: accounts@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Please settle the attached invoice for plumbing services.\r\n"
	rawPath := filepath.Join(tmp, "invoice.eml")
	if err := os.WriteFile(rawPath, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := db.UpsertDocument("imap", "<invoice-1@example.com>", "Invoice overdue",
		"accounts@example.com", "2026-08-11T10:00:00Z", "hash2", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	proc, err := NewProcessingService(db, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := proc.ProcessDocument(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Fatal("invoice must be skipped")
	}

	stored, err := db.GetDocumentByID(doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != "skipped" {
		t.Fatalf("status = %q", stored.Status)
	}
}
