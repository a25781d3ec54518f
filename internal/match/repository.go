package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/JalenduP/Chess-it/internal/domain"
)

// PostgresRepository is the durable store for user records and the
// permanent game archive.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const q = `
		SELECT id, username, rating, wins, losses, draws, games_played
		FROM users WHERE id = $1`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Username, &u.Rating, &u.Wins, &u.Losses, &u.Draws, &u.GamesPlayed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// SettleGame archives the completed game and writes both settled user
// records in one transaction, so a rating update never lands without its
// game and vice versa.
func (r *PostgresRepository) SettleGame(ctx context.Context, g *domain.Game, white, black *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertGame(ctx, tx, g); err != nil {
		return err
	}
	for _, u := range []*domain.User{white, black} {
		const q = `
			UPDATE users
			SET rating = $2, wins = $3, losses = $4, draws = $5, games_played = $6
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, u.ID, u.Rating, u.Wins, u.Losses, u.Draws, u.GamesPlayed); err != nil {
			return fmt.Errorf("settle user %s: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ArchiveGame(ctx context.Context, g *domain.Game) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsertGame(ctx, tx, g); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertGame(ctx context.Context, tx *sql.Tx, g *domain.Game) error {
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	const q = `
		INSERT INTO games (
			id, white_id, white_name, black_id, black_name,
			minutes, increment, fen, moves, turn,
			status, result, reason,
			white_time_ms, black_time_ms,
			white_rating_before, black_rating_before,
			white_rating_change, black_rating_change,
			pgn, created_at, started_at, completed_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23
		) ON CONFLICT (id) DO UPDATE SET
			black_id=EXCLUDED.black_id,
			black_name=EXCLUDED.black_name,
			fen=EXCLUDED.fen,
			moves=EXCLUDED.moves,
			turn=EXCLUDED.turn,
			status=EXCLUDED.status,
			result=EXCLUDED.result,
			reason=EXCLUDED.reason,
			white_time_ms=EXCLUDED.white_time_ms,
			black_time_ms=EXCLUDED.black_time_ms,
			black_rating_before=EXCLUDED.black_rating_before,
			white_rating_change=EXCLUDED.white_rating_change,
			black_rating_change=EXCLUDED.black_rating_change,
			pgn=EXCLUDED.pgn,
			started_at=EXCLUDED.started_at,
			completed_at=EXCLUDED.completed_at`

	_, err = tx.ExecContext(ctx, q,
		g.ID, g.WhiteID, g.WhiteName, nullStr(g.BlackID), nullStr(g.BlackName),
		g.TimeControl.Minutes, g.TimeControl.Increment, g.FEN, string(moves), string(g.Turn),
		string(g.Status), nullStr(string(g.Result)), nullStr(string(g.Reason)),
		g.WhiteTimeMs, g.BlackTimeMs,
		g.WhiteRatingBefore, g.BlackRatingBefore,
		g.WhiteRatingChange, g.BlackRatingChange,
		g.PGN, g.CreatedAt, nullTime(g.StartedAt), nullTime(g.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", g.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	const q = gameSelect + ` WHERE id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func (r *PostgresRepository) History(ctx context.Context, playerID string, page, limit int) ([]*domain.Game, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	const countQ = `
		SELECT count(*) FROM games
		WHERE (white_id = $1 OR black_id = $1) AND status = 'completed'`
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, playerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	const q = gameSelect + `
		WHERE (white_id = $1 OR black_id = $1) AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, playerID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var games []*domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, g)
	}
	return games, total, rows.Err()
}

const gameSelect = `
	SELECT id, white_id, white_name, black_id, black_name,
		minutes, increment, fen, moves, turn,
		status, result, reason,
		white_time_ms, black_time_ms,
		white_rating_before, black_rating_before,
		white_rating_change, black_rating_change,
		pgn, created_at, started_at, completed_at
	FROM games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		g                        domain.Game
		blackID, blackName       sql.NullString
		result, reason           sql.NullString
		movesRaw                 []byte
		turn, status             string
		startedAt, completedAt   sql.NullTime
	)
	err := row.Scan(
		&g.ID, &g.WhiteID, &g.WhiteName, &blackID, &blackName,
		&g.TimeControl.Minutes, &g.TimeControl.Increment, &g.FEN, &movesRaw, &turn,
		&status, &result, &reason,
		&g.WhiteTimeMs, &g.BlackTimeMs,
		&g.WhiteRatingBefore, &g.BlackRatingBefore,
		&g.WhiteRatingChange, &g.BlackRatingChange,
		&g.PGN, &g.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(movesRaw, &g.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves for %s: %w", g.ID, err)
	}
	g.BlackID = blackID.String
	g.BlackName = blackName.String
	g.Turn = domain.Color(turn)
	g.Status = domain.Status(status)
	g.Result = domain.Result(result.String)
	g.Reason = domain.Reason(reason.String)
	if startedAt.Valid {
		g.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		g.CompletedAt = completedAt.Time
	}
	return &g, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
