package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"sunmatch/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  brand TEXT NOT NULL,
  model TEXT NOT NULL,
  spec REAL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);
CREATE INDEX IF NOT EXISTS idx_products_type ON products(type);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  method TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS candidates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  productType TEXT NOT NULL,
  rank INTEGER NOT NULL,
  productId TEXT NOT NULL,
  confidence REAL NOT NULL,
  needsConfirmation INTEGER NOT NULL,
  evidenceJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(documentId, productType, rank),
  FOREIGN KEY(documentId) REFERENCES documents(id),
  FOREIGN KEY(productId) REFERENCES products(id)
);

CREATE TABLE IF NOT EXISTS fields (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  name TEXT NOT NULL,
  valueJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(documentId, name),
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  documentId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(products []internal.Product) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (id, type, brand, model, spec, lastSeenAt)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  type=excluded.type,
  brand=excluded.brand,
  model=excluded.model,
  spec=excluded.spec,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(p.ID, string(p.Type), p.Brand, p.Model, p.Spec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts() ([]internal.Product, error) {
	rows, err := d.conn.Query(`SELECT id, type, brand, model, spec FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		var p internal.Product
		var typ string
		var spec sql.NullFloat64
		if err := rows.Scan(&p.ID, &typ, &p.Brand, &p.Model, &spec); err != nil {
			return nil, err
		}
		p.Type = internal.ProductType(typ)
		if spec.Valid {
			p.Spec = internal.FloatPtr(spec.Float64)
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (d *DB) UpsertDocument(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func (d *DB) GetDocumentByProviderMessageID(provider, messageID string) (*internal.DocumentRow, error) {
	row, err := d.scanDocument(d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, method
FROM documents WHERE provider = ? AND messageId = ?
`, provider, messageID))
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (d *DB) GetDocumentByID(id int) (*internal.DocumentRow, error) {
	return d.scanDocument(d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, method
FROM documents WHERE id = ?
`, id))
}

func (d *DB) scanDocument(r *sql.Row) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	var method sql.NullString
	err := r.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Method = method.String
	return &row, nil
}

func (d *DB) ListDocumentsByStatus(status string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, method
FROM documents WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		var row internal.DocumentRow
		var method sql.NullString
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef, &method); err != nil {
			return nil, err
		}
		row.Method = method.String
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

func (d *DB) SetDocumentMethod(documentID int, method string) error {
	_, err := d.conn.Exec(`UPDATE documents SET method = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, method, documentID)
	return err
}

// ClearDocumentProcessing removes candidates and fields from a previous run
// so reprocessing a document replaces rather than appends.
func (d *DB) ClearDocumentProcessing(documentID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM candidates WHERE documentId = ?`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fields WHERE documentId = ?`, documentID); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertMatchResult persists the full engine output for one document in one
// transaction: ranked candidates per type plus whichever scalar fields were
// extracted.
func (d *DB) InsertMatchResult(documentID int, result *internal.DocumentMatchResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO candidates (documentId, productType, rank, productId, confidence, needsConfirmation, evidenceJson)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range []internal.ProductType{internal.TypePanel, internal.TypeBattery, internal.TypeInverter} {
		for rank, c := range result.Candidates(t) {
			evidenceJSON, _ := json.Marshal(c.Evidence)
			needs := 0
			if c.NeedsConfirmation {
				needs = 1
			}
			if _, err := stmt.Exec(documentID, string(t), rank+1, c.Product.ID, c.Confidence, needs, string(evidenceJSON)); err != nil {
				return err
			}
		}
	}

	fields := map[string]any{}
	if result.SystemSizeKW != nil {
		fields["systemSizeKw"] = result.SystemSizeKW
	}
	if result.TotalCost != nil {
		fields["totalCost"] = result.TotalCost
	}
	if result.Postcode != nil {
		fields["postcode"] = result.Postcode
	}
	if result.Installer != nil {
		fields["installer"] = result.Installer
	}
	for name, value := range fields {
		valueJSON, _ := json.Marshal(value)
		if _, err := tx.Exec(`
INSERT INTO fields (documentId, name, valueJson) VALUES (?, ?, ?)
ON CONFLICT(documentId, name) DO UPDATE SET valueJson = excluded.valueJson
`, documentID, name, string(valueJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) InsertRun(traceID string, documentID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, documentId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, documentID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) GetExportRows(documentID int) ([]internal.MatchExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  c.documentId,
  c.productType,
  c.rank,
  c.productId,
  p.brand,
  p.model,
  p.spec,
  c.confidence,
  c.needsConfirmation,
  c.evidenceJson
FROM candidates c
JOIN products p ON p.id = c.productId
WHERE c.documentId = ?
ORDER BY
  CASE c.productType WHEN 'panel' THEN 1 WHEN 'battery' THEN 2 ELSE 3 END,
  c.rank ASC
`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MatchExportRow
	for rows.Next() {
		var row internal.MatchExportRow
		var spec sql.NullFloat64
		var needs int
		var evidenceJSON string
		if err := rows.Scan(
			&row.DocumentID,
			&row.ProductType,
			&row.Rank,
			&row.ProductID,
			&row.Brand,
			&row.Model,
			&spec,
			&row.Confidence,
			&needs,
			&evidenceJSON,
		); err != nil {
			return nil, err
		}
		if spec.Valid {
			row.Spec = internal.FloatPtr(spec.Float64)
		}
		row.NeedsConfirmation = needs != 0

		var evidence []internal.EvidenceRow
		_ = json.Unmarshal([]byte(evidenceJSON), &evidence)
		row.EvidenceCount = len(evidence)
		best := -1.0
		for _, ev := range evidence {
			if ev.Score > best {
				best = ev.Score
				row.BestSnippet = ev.Snippet
			}
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (d *DB) MustDocumentByProviderMessageID(provider, messageID string) (internal.DocumentRow, error) {
	row, err := d.GetDocumentByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, fmt.Errorf("%w: provider=%s messageId=%s", internal.ErrDocumentNotFound, provider, messageID)
	}
	return *row, nil
}
