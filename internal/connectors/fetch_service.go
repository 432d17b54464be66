package connectors

import (
	"go.uber.org/zap"

	"sunmatch/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDocDir string, connector MailConnector, logger *zap.Logger) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawDocDir),
		logger:    logger,
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		doc, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		stored++
		s.logger.Debug("message stored",
			zap.String("provider", msg.Provider),
			zap.String("messageId", msg.MessageID),
			zap.Int("documentId", doc.ID))
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
