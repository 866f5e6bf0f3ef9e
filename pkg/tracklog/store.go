package tracklog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Interaction is one logged question/answer exchange with its diagnostics.
type Interaction struct {
	ID              string
	Channel         string
	UserID          string
	Question        string
	Answer          string
	Category        string
	Workshops       []string
	UsedFallback    bool
	ChunksUsed      int
	TokensUsed      int
	TokensAvailable int
	Model           string
	Feedback        int // 0 none, +1 thumbs up, -1 thumbs down
	CreatedAtMS     int64
}

// Store persists interaction logs and the retrieval cache in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates/opens the tracklog database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tracklog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tracklog db: %w", err)
	}
	// Single-process writer. One shared connection avoids SQLite writer
	// lock contention under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT 'content',
			workshops TEXT NOT NULL DEFAULT '[]',
			used_fallback INTEGER NOT NULL DEFAULT 0,
			chunks_used INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			tokens_available INTEGER NOT NULL DEFAULT 0,
			model TEXT NOT NULL DEFAULT '',
			feedback INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at_ms);`,
		`CREATE TABLE IF NOT EXISTS retrieval_cache (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_retrieval_cache_expires ON retrieval_cache(expires_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init tracklog schema: %w", err)
		}
	}
	return nil
}

// LogInteraction inserts an interaction record, assigning an ID when empty.
// Returns the stored ID.
func (s *Store) LogInteraction(ctx context.Context, it Interaction) (string, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAtMS == 0 {
		it.CreatedAtMS = time.Now().UnixMilli()
	}
	workshops, err := json.Marshal(it.Workshops)
	if err != nil {
		return "", fmt.Errorf("marshal workshops: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions (
			id, channel, user_id, question, answer, category, workshops,
			used_fallback, chunks_used, tokens_used, tokens_available, model,
			feedback, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Channel, it.UserID, it.Question, it.Answer, it.Category, string(workshops),
		boolToInt(it.UsedFallback), it.ChunksUsed, it.TokensUsed, it.TokensAvailable, it.Model,
		it.Feedback, it.CreatedAtMS)
	if err != nil {
		return "", fmt.Errorf("log interaction: %w", err)
	}
	return it.ID, nil
}

// SetFeedback records thumbs up/down for an interaction.
func (s *Store) SetFeedback(ctx context.Context, id string, feedback int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE interactions SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("interaction %s not found", id)
	}
	return nil
}

// GetInteraction loads one interaction by ID.
func (s *Store) GetInteraction(ctx context.Context, id string) (Interaction, error) {
	var it Interaction
	var workshops string
	var usedFallback int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, channel, user_id, question, answer, category, workshops,
		       used_fallback, chunks_used, tokens_used, tokens_available, model,
		       feedback, created_at_ms
		FROM interactions WHERE id = ?`, id).Scan(
		&it.ID, &it.Channel, &it.UserID, &it.Question, &it.Answer, &it.Category, &workshops,
		&usedFallback, &it.ChunksUsed, &it.TokensUsed, &it.TokensAvailable, &it.Model,
		&it.Feedback, &it.CreatedAtMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, fmt.Errorf("interaction %s not found", id)
	}
	if err != nil {
		return Interaction{}, fmt.Errorf("get interaction: %w", err)
	}
	it.UsedFallback = usedFallback != 0
	if err := json.Unmarshal([]byte(workshops), &it.Workshops); err != nil {
		return Interaction{}, fmt.Errorf("parse workshops: %w", err)
	}
	return it, nil
}

// GetCache returns a non-expired cached value.
func (s *Store) GetCache(ctx context.Context, key string, nowMS int64) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM retrieval_cache WHERE key = ? AND expires_at_ms > ?`, key, nowMS).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cache: %w", err)
	}
	return value, true, nil
}

// PutCache stores a value with an absolute expiry.
func (s *Store) PutCache(ctx context.Context, key, value string, expiresAtMS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retrieval_cache (key, value, expires_at_ms) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at_ms = excluded.expires_at_ms`,
		key, value, expiresAtMS)
	if err != nil {
		return fmt.Errorf("put cache: %w", err)
	}
	return nil
}

// Sweep deletes expired cache entries and interactions older than the
// retention window. Returns rows removed.
func (s *Store) Sweep(ctx context.Context, nowMS, retentionMS int64) (int64, error) {
	var removed int64

	res, err := s.db.ExecContext(ctx, `DELETE FROM retrieval_cache WHERE expires_at_ms <= ?`, nowMS)
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		removed += n
	}

	if retentionMS > 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM interactions WHERE created_at_ms < ?`, nowMS-retentionMS)
		if err != nil {
			return removed, fmt.Errorf("sweep interactions: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += n
		}
	}
	return removed, nil
}

// FeedbackSummary tallies feedback over the most recent interactions.
func (s *Store) FeedbackSummary(ctx context.Context, limit int) (up, down, total int, err error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT feedback FROM interactions ORDER BY created_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("feedback summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fb int
		if err := rows.Scan(&fb); err != nil {
			return 0, 0, 0, fmt.Errorf("scan feedback: %w", err)
		}
		total++
		switch {
		case fb > 0:
			up++
		case fb < 0:
			down++
		}
	}
	return up, down, total, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CacheKey builds a stable cache key from the question and the options that
// affect retrieval.
func CacheKey(question, model string, maxWorkshops, chunksPerWorkshop int, filter []string) string {
	return strings.Join([]string{
		"answer",
		strings.ToLower(strings.TrimSpace(question)),
		model,
		fmt.Sprintf("%d", maxWorkshops),
		fmt.Sprintf("%d", chunksPerWorkshop),
		strings.Join(filter, ","),
	}, "|")
}
