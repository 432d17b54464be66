package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"sunmatch/internal"
	"sunmatch/internal/storage"
)

// MailStoreService writes raw messages to disk (content-addressed by hash)
// and registers them as documents. Storing the same message twice is a
// no-op on disk and an upsert in the database.
type MailStoreService struct {
	db        *storage.DB
	rawDocDir string
}

func NewMailStoreService(db *storage.DB, rawDocDir string) *MailStoreService {
	return &MailStoreService{db: db, rawDocDir: rawDocDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.DocumentRow, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawDocDir, 0o755); err != nil {
		return internal.DocumentRow{}, err
	}

	rawPath := filepath.Join(s.rawDocDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.DocumentRow{}, err
		}
	}

	return s.db.UpsertDocument(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
}
