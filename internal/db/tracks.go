package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// InsertWithAlbums inserts track (or finds the existing track with the same
// title) and links it to albumIDs in one transaction.
func (r *TrackRepository) InsertWithAlbums(ctx context.Context, track Track, albumIDs []int64) (Track, error) {
	var saved Track
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO tracks (title)
			VALUES ($1)
			ON CONFLICT (title) DO NOTHING
			RETURNING id, title, created_at
		`, track.Title).Scan(&saved.ID, &saved.Title, &saved.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, `
				SELECT id, title, created_at
				FROM tracks
				WHERE title = $1
			`, track.Title).Scan(&saved.ID, &saved.Title, &saved.CreatedAt)
		}
		if err != nil {
			return fmt.Errorf("inserting track row: %w", err)
		}

		if len(albumIDs) == 0 {
			return nil
		}

		query := `
			INSERT INTO album_tracks (album_id, track_id)
			SELECT *, $2::bigint FROM unnest($1::bigint[])
			ON CONFLICT (album_id, track_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, query, albumIDs, saved.ID); err != nil {
			return fmt.Errorf("linking album tracks: %w", err)
		}
		return nil
	})
	if err != nil {
		return Track{}, fmt.Errorf("inserting track %q: %w", track.Title, err)
	}
	return saved, nil
}

// GetByTitle retrieves a track by title.
func (r *TrackRepository) GetByTitle(ctx context.Context, title string) (*Track, error) {
	var track Track
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, created_at
		FROM tracks
		WHERE title = $1
	`, title).Scan(&track.ID, &track.Title, &track.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &track, nil
}

// GetAlbumTracks retrieves all tracks on an album, ordered by title.
func (r *TrackRepository) GetAlbumTracks(ctx context.Context, albumID int64) ([]Track, error) {
	query := `
		SELECT t.id, t.title, t.created_at
		FROM tracks t
		JOIN album_tracks alt ON t.id = alt.track_id
		WHERE alt.album_id = $1
		ORDER BY t.title
	`
	rows, err := r.pool.Query(ctx, query, albumID)
	if err != nil {
		return nil, fmt.Errorf("querying album tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var track Track
		if err := rows.Scan(&track.ID, &track.Title, &track.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}
