package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/Cheese-Video-Analyzer/internal/session"
)

const schema = `CREATE TABLE IF NOT EXISTS analysis_results (
	session_id   TEXT PRIMARY KEY,
	moves        JSONB NOT NULL,
	moves_uci    TEXT[] NOT NULL,
	pgn          TEXT NOT NULL,
	plies        INTEGER NOT NULL,
	legal_plies  INTEGER NOT NULL,
	final_fen    TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
)`

// Repository archives completed analyses in Postgres.
type Repository struct {
	db *sql.DB
}

// Open connects to databaseURL and makes sure the table exists.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	repo := NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure analysis_results: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record upserts one completed analysis keyed by session id.
func (r *Repository) Record(ctx context.Context, c session.Completed) error {
	if r == nil || r.db == nil {
		return nil
	}
	if strings.TrimSpace(c.SessionID) == "" {
		return errors.New("completed analysis without session id")
	}
	moves := c.Moves
	if moves == nil {
		moves = []string{}
	}
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	uci := c.Summary.UCI
	if uci == nil {
		uci = []string{}
	}
	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	const q = `INSERT INTO analysis_results (
		session_id, moves, moves_uci, pgn, plies, legal_plies, final_fen, outcome, completed_at
	  ) VALUES (
		$1, $2::jsonb, $3, $4, $5, $6, $7, $8, $9
	  ) ON CONFLICT (session_id) DO UPDATE SET
		moves=EXCLUDED.moves,
		moves_uci=EXCLUDED.moves_uci,
		pgn=EXCLUDED.pgn,
		plies=EXCLUDED.plies,
		legal_plies=EXCLUDED.legal_plies,
		final_fen=EXCLUDED.final_fen,
		outcome=EXCLUDED.outcome,
		completed_at=EXCLUDED.completed_at`

	_, err = r.db.ExecContext(ctx, q,
		c.SessionID,
		string(movesRaw),
		pq.Array(uci),
		c.PGN,
		c.Summary.Plies, c.Summary.Legal,
		c.Summary.FEN,
		c.Summary.Outcome,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis result: %w", err)
	}
	return nil
}
