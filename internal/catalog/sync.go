package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sunmatch/internal/config"
	"sunmatch/internal/storage"
)

// SyncService pulls the remote catalog into local storage. The in-memory
// Index is rebuilt from storage wholesale after a sync; there are no
// incremental index updates.
type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
	logger *zap.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg, logger: logger}
}

// InitialSync replaces the stored catalog with the full remote listing.
func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	products, skipped, err := s.client.GetProductsAll(ctx)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		s.logger.Warn("catalog sync skipped malformed entries", zap.Int("skipped", skipped))
	}
	if err := s.db.UpsertProducts(products); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("catalog.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}

// IncrementalSync upserts entries changed within the lookback window.
func (s *SyncService) IncrementalSync(ctx context.Context, lookbackHours int) (int, error) {
	products, skipped, err := s.client.GetProductsSince(ctx, lookbackHours)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		s.logger.Warn("catalog sync skipped malformed entries", zap.Int("skipped", skipped))
	}
	if len(products) > 0 {
		if err := s.db.UpsertProducts(products); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("catalog.last_incremental_sync", time.Now().UTC().Format(time.RFC3339))
	return len(products), nil
}
