package db

import (
	"context"
	"fmt"
)

// Stats returns the row count of every listening-history table.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM albums),
			(SELECT COUNT(*) FROM album_artists),
			(SELECT COUNT(*) FROM tracks),
			(SELECT COUNT(*) FROM album_tracks),
			(SELECT COUNT(*) FROM play_logs)
	`
	var s Stats
	err := db.pool.QueryRow(ctx, query).Scan(
		&s.Artists,
		&s.Albums,
		&s.AlbumArtists,
		&s.Tracks,
		&s.AlbumTracks,
		&s.PlayLogs,
	)
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}
	return &s, nil
}
