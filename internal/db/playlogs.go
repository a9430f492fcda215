package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayLogRepository handles play log database operations.
type PlayLogRepository struct {
	pool *pgxpool.Pool
}

// InsertBatch inserts play events, skipping any (track_id, played_at) pair
// that is already stored. It returns the number of rows actually inserted.
func (r *PlayLogRepository) InsertBatch(ctx context.Context, logs []PlayLog) (int64, error) {
	if len(logs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO play_logs (track_id, played_at)
		SELECT * FROM unnest($1::bigint[], $2::timestamp[])
		ON CONFLICT (track_id, played_at) DO NOTHING
	`

	trackIDs := make([]int64, len(logs))
	playedAts := make([]time.Time, len(logs))
	for i, l := range logs {
		trackIDs[i] = l.TrackID
		playedAts[i] = l.PlayedAt.UTC()
	}

	result, err := r.pool.Exec(ctx, query, trackIDs, playedAts)
	if err != nil {
		return 0, fmt.Errorf("batch inserting play logs: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListForTrack returns a track's play events, most recent first.
func (r *PlayLogRepository) ListForTrack(ctx context.Context, trackID int64) ([]PlayLog, error) {
	query := `
		SELECT id, track_id, played_at
		FROM play_logs
		WHERE track_id = $1
		ORDER BY played_at DESC
	`
	rows, err := r.pool.Query(ctx, query, trackID)
	if err != nil {
		return nil, fmt.Errorf("querying play logs: %w", err)
	}
	defer rows.Close()

	var logs []PlayLog
	for rows.Next() {
		var l PlayLog
		if err := rows.Scan(&l.ID, &l.TrackID, &l.PlayedAt); err != nil {
			return nil, fmt.Errorf("scanning play log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
