package listener

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"sunmatch/internal/config"
	"sunmatch/internal/connectors"
	gmailconnector "sunmatch/internal/connectors/gmail"
	imapconnector "sunmatch/internal/connectors/imap"
	"sunmatch/internal/pipeline"
	"sunmatch/internal/storage"
)

// Service polls one mailbox on an interval: fetch, process, optionally
// export. A failed cycle is logged and the next one runs anyway.
type Service struct {
	db     *storage.DB
	cfg    config.Config
	logger *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, cfg: cfg, logger: logger}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

// runCycle checks ctx between stages so a shutdown mid-cycle stops before the
// next stage instead of running the cycle to completion.
func (s *Service) runCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawDocDir, mailConnector, s.logger)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The processor is rebuilt each cycle so a catalog sync that landed
	// between cycles is picked up without a restart.
	processor, err := pipeline.NewProcessingService(s.db, s.cfg, s.logger)
	if err != nil {
		return err
	}
	processedDocs, _, err := processor.ProcessPending(s.cfg.ListenerProcessBatch, provider)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.cfg.ListenerAutoExport {
		if err := s.exportProcessed(provider); err != nil {
			return err
		}
	}

	s.logger.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", fetchResult.Fetched),
		zap.Int("stored", fetchResult.Stored),
		zap.Int("processed", processedDocs))
	return nil
}

func (s *Service) exportProcessed(provider string) error {
	docs, err := s.db.ListDocumentsByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.Provider != provider {
			continue
		}
		rows, err := s.db.GetExportRows(doc.ID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", doc.ID, sanitizeMessageID(doc.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
			return err
		}
		_ = s.db.UpdateDocumentStatus(doc.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
