package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Failure is one inbound event the bridge could not ingest.
type Failure struct {
	ID        string
	Channel   string
	Topic     string
	Reason    string
	Payload   map[string]any
	CreatedAt time.Time
}

// Journal records ingestion failures for operator review.
type Journal struct {
	db *DB
}

// NewJournal creates a journal over the given database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// RecordFailure stores a failed inbound event and returns its id.
func (j *Journal) RecordFailure(ctx context.Context, channel, topic, reason string, payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}

	id := uuid.New().String()
	_, err = j.db.sql.ExecContext(ctx,
		`INSERT INTO ingestion_failures (id, channel, topic, reason, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, channel, topic, reason, string(raw), time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return "", fmt.Errorf("recording ingestion failure: %w", err)
	}
	return id, nil
}

// Recent returns the newest failures, optionally filtered by channel.
// channel == "" means all channels.
func (j *Journal) Recent(ctx context.Context, channel string, limit int) ([]Failure, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, channel, topic, reason, payload, created_at
		 FROM ingestion_failures`
	args := []any{}
	if channel != "" {
		query += " WHERE channel = ?"
		args = append(args, channel)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ingestion failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		var raw, createdAt string
		if err := rows.Scan(&f.ID, &f.Channel, &f.Topic, &f.Reason, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning ingestion failure: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &f.Payload); err != nil {
			f.Payload = map[string]any{}
		}
		f.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Prune deletes failures older than the retention window and returns the
// number removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.DateTime)
	res, err := j.db.sql.ExecContext(ctx,
		"DELETE FROM ingestion_failures WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning ingestion failures: %w", err)
	}
	return res.RowsAffected()
}
