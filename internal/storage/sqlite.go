// Package storage provides persistence gateway implementations for the
// scheduler: a SQLite database and a plain JSON file. Both exchange
// full-state snapshots; neither retries on failure.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/jfenske/recollect/internal/card"
)

const (
	metaVersion     = "version"
	metaGlobalStats = "global_stats"
	metaUIState     = "ui_state"
)

// SQLite is a PersistenceGateway backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the
// schema is in place.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads the stored snapshot. It returns (nil, nil) when the
// database has never been saved to.
func (s *SQLite) Load(ctx context.Context) (*card.StorageBlob, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, metaVersion).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot version: %w", err)
	}

	blob := &card.StorageBlob{
		Version: version,
		Cards:   make(map[string]*card.Card),
	}

	if err := s.loadMetaJSON(ctx, metaGlobalStats, &blob.GlobalStats); err != nil {
		return nil, err
	}
	if err := s.loadMetaJSON(ctx, metaUIState, &blob.UIState); err != nil {
		return nil, err
	}
	if err := s.loadCards(ctx, blob); err != nil {
		return nil, err
	}
	if err := s.loadGroups(ctx, blob); err != nil {
		return nil, err
	}
	if err := s.loadDailyStats(ctx, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func (s *SQLite) loadMetaJSON(ctx context.Context, key string, dst interface{}) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read meta %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) loadCards(ctx context.Context, blob *card.StorageBlob) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, answer, file_path, difficulty, stability, retrievability,
		       last_review, next_review, reviews, lapses, review_history, created_at
		FROM cards
	`)
	if err != nil {
		return fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c                                 card.Card
			lastReview, nextReview, createdAt int64
			history                           string
		)
		if err := rows.Scan(
			&c.ID, &c.Text, &c.Answer, &c.FilePath,
			&c.Difficulty, &c.Stability, &c.Retrievability,
			&lastReview, &nextReview, &c.Reviews, &c.Lapses,
			&history, &createdAt,
		); err != nil {
			return fmt.Errorf("scan card row: %w", err)
		}
		c.LastReview = fromMillis(lastReview)
		c.NextReview = fromMillis(nextReview)
		c.CreatedAt = fromMillis(createdAt)
		if err := json.Unmarshal([]byte(history), &c.ReviewHistory); err != nil {
			return fmt.Errorf("decode review history for card %s: %w", c.ID, err)
		}
		blob.Cards[c.ID] = &c
	}
	return rows.Err()
}

func (s *SQLite) loadGroups(ctx context.Context, blob *card.StorageBlob) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, filter, sort_order, created_time, is_reversed, settings
		FROM card_groups
	`)
	if err != nil {
		return fmt.Errorf("query card groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g           card.CardGroup
			createdTime int64
			settings    sql.NullString
		)
		if err := rows.Scan(
			&g.ID, &g.Name, &g.Filter, &g.SortOrder,
			&createdTime, &g.IsReversed, &settings,
		); err != nil {
			return fmt.Errorf("scan card group row: %w", err)
		}
		g.CreatedTime = fromMillis(createdTime)
		if settings.Valid {
			if err := json.Unmarshal([]byte(settings.String), &g.Settings); err != nil {
				return fmt.Errorf("decode settings for group %s: %w", g.ID, err)
			}
		}
		blob.CardGroups = append(blob.CardGroups, &g)
	}
	return rows.Err()
}

func (s *SQLite) loadDailyStats(ctx context.Context, blob *card.StorageBlob) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, new_cards_learned, cards_reviewed
		FROM daily_stats ORDER BY date DESC
	`)
	if err != nil {
		return fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ds   card.DailyStats
			date int64
		)
		if err := rows.Scan(&date, &ds.NewCardsLearned, &ds.CardsReviewed); err != nil {
			return fmt.Errorf("scan daily stats row: %w", err)
		}
		ds.Date = fromMillis(date)
		blob.DailyStats = append(blob.DailyStats, ds)
	}
	return rows.Err()
}

// Save replaces the stored snapshot inside a single transaction.
func (s *SQLite) Save(ctx context.Context, blob *card.StorageBlob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"cards", "card_groups", "daily_stats"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range blob.Cards {
		history, err := json.Marshal(c.ReviewHistory)
		if err != nil {
			return fmt.Errorf("encode review history for card %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cards (id, text, answer, file_path, difficulty, stability,
				retrievability, last_review, next_review, reviews, lapses,
				review_history, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.ID, c.Text, c.Answer, c.FilePath,
			c.Difficulty, c.Stability, c.Retrievability,
			toMillis(c.LastReview), toMillis(c.NextReview),
			c.Reviews, c.Lapses, string(history), toMillis(c.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert card %s: %w", c.ID, err)
		}
	}

	for _, g := range blob.CardGroups {
		var settings interface{}
		if g.Settings != nil {
			encoded, err := json.Marshal(g.Settings)
			if err != nil {
				return fmt.Errorf("encode settings for group %s: %w", g.ID, err)
			}
			settings = string(encoded)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO card_groups (id, name, filter, sort_order, created_time,
				is_reversed, settings)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			g.ID, g.Name, g.Filter, g.SortOrder,
			toMillis(g.CreatedTime), g.IsReversed, settings,
		); err != nil {
			return fmt.Errorf("insert card group %s: %w", g.ID, err)
		}
	}

	for _, ds := range blob.DailyStats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (date, new_cards_learned, cards_reviewed)
			VALUES (?, ?, ?)
		`, toMillis(ds.Date), ds.NewCardsLearned, ds.CardsReviewed); err != nil {
			return fmt.Errorf("insert daily stats: %w", err)
		}
	}

	if err := saveMeta(ctx, tx, metaVersion, blob.Version); err != nil {
		return err
	}
	stats, err := json.Marshal(blob.GlobalStats)
	if err != nil {
		return fmt.Errorf("encode global stats: %w", err)
	}
	if err := saveMeta(ctx, tx, metaGlobalStats, string(stats)); err != nil {
		return err
	}
	if len(blob.UIState) > 0 {
		if err := saveMeta(ctx, tx, metaUIState, string(blob.UIState)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func saveMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
