package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sunmatch/internal"
	"sunmatch/internal/catalog"
	"sunmatch/internal/config"
	"sunmatch/internal/storage"
)

// ProcessingService drives stored documents through extract, detect, match
// and persist. The catalog index is built once per service from the stored
// products and reused across documents.
type ProcessingService struct {
	db     *storage.DB
	cfg    config.Config
	logger *zap.Logger

	engine *Engine
}

func NewProcessingService(db *storage.DB, cfg config.Config, logger *zap.Logger) (*ProcessingService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	products, err := db.ListProducts()
	if err != nil {
		return nil, err
	}
	idx := catalog.BuildIndex(products, catalog.NewBrandAliasTable(), logger)
	engine, err := NewEngine(idx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &ProcessingService{db: db, cfg: cfg, logger: logger, engine: engine}, nil
}

type ProcessResult struct {
	DocumentID int
	Candidates int
	Skipped    bool
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	doc, err := s.db.MustDocumentByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessDocument(doc)
}

// ProcessPending works through documents in fetched state, oldest first.
// Returns documents processed and candidates persisted.
func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListDocumentsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedDocs := 0
	totalCandidates := 0
	for _, doc := range pending {
		if provider != "" && doc.Provider != provider {
			continue
		}
		res, err := s.ProcessDocument(doc)
		if err != nil {
			return processedDocs, totalCandidates, err
		}
		processedDocs++
		totalCandidates += res.Candidates
	}
	return processedDocs, totalCandidates, nil
}

func (s *ProcessingService) ProcessDocument(doc internal.DocumentRow) (ProcessResult, error) {
	start := time.Now()

	extracted, err := ExtractFile(doc.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("extract %s: %w", doc.RawRef, err)
	}

	if err := s.db.ClearDocumentProcessing(doc.ID); err != nil {
		return ProcessResult{}, err
	}

	detect := DetectProposal(firstNonEmpty(extracted.Subject, doc.Subject), extracted.Text, extracted.AttachmentNames)
	if !detect.IsProposal {
		s.logger.Info("document skipped",
			zap.Int("documentId", doc.ID),
			zap.Float64("detectScore", detect.Score))
		_ = s.db.UpdateDocumentStatus(doc.ID, "skipped")
		_ = s.db.InsertRun(traceID(), doc.ID,
			map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
			map[string]int{"panels": 0, "batteries": 0, "inverters": 0})
		return ProcessResult{DocumentID: doc.ID, Skipped: true}, nil
	}

	result, err := s.engine.MatchDocument(extracted.Text, extracted.Method)
	if err != nil {
		return ProcessResult{}, err
	}

	if err := s.db.InsertMatchResult(doc.ID, result); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.SetDocumentMethod(doc.ID, string(extracted.Method)); err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.UpdateDocumentStatus(doc.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}

	counts := map[string]int{
		"panels":    len(result.Panels),
		"batteries": len(result.Batteries),
		"inverters": len(result.Inverters),
	}
	_ = s.db.InsertRun(traceID(), doc.ID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		counts)

	total := counts["panels"] + counts["batteries"] + counts["inverters"]
	s.logger.Info("document processed",
		zap.Int("documentId", doc.ID),
		zap.Int("candidates", total),
		zap.Duration("took", time.Since(start)))

	return ProcessResult{DocumentID: doc.ID, Candidates: total}, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
