package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlbumRepository handles album database operations.
type AlbumRepository struct {
	pool *pgxpool.Pool
}

// InsertWithArtists inserts album (or finds the existing album with the same
// title) and links it to artistIDs, all in one transaction. Links that already
// exist are kept. The persisted album is returned.
func (r *AlbumRepository) InsertWithArtists(ctx context.Context, album Album, artistIDs []int64) (Album, error) {
	var saved Album
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		saved, err = insertAlbum(ctx, tx, album)
		if err != nil {
			return err
		}

		if len(artistIDs) == 0 {
			return nil
		}

		query := `
			INSERT INTO album_artists (album_id, artist_id)
			SELECT $1::bigint, * FROM unnest($2::bigint[])
			ON CONFLICT (album_id, artist_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, query, saved.ID, artistIDs); err != nil {
			return fmt.Errorf("linking album artists: %w", err)
		}
		return nil
	})
	if err != nil {
		return Album{}, fmt.Errorf("inserting album %q: %w", album.Title, err)
	}
	return saved, nil
}

// insertAlbum inserts the album row, falling back to the existing row on a title conflict.
func insertAlbum(ctx context.Context, tx pgx.Tx, album Album) (Album, error) {
	var saved Album
	err := tx.QueryRow(ctx, `
		INSERT INTO albums (title, release_date)
		VALUES ($1, $2)
		ON CONFLICT (title) DO NOTHING
		RETURNING id, title, release_date, created_at
	`, album.Title, album.ReleaseDate).Scan(&saved.ID, &saved.Title, &saved.ReleaseDate, &saved.CreatedAt)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Album{}, fmt.Errorf("inserting album row: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT id, title, release_date, created_at
		FROM albums
		WHERE title = $1
	`, album.Title).Scan(&saved.ID, &saved.Title, &saved.ReleaseDate, &saved.CreatedAt)
	if err != nil {
		return Album{}, fmt.Errorf("looking up existing album: %w", err)
	}
	return saved, nil
}

// GetByTitle retrieves an album by title.
func (r *AlbumRepository) GetByTitle(ctx context.Context, title string) (*Album, error) {
	var album Album
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, release_date, created_at
		FROM albums
		WHERE title = $1
	`, title).Scan(&album.ID, &album.Title, &album.ReleaseDate, &album.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying album: %w", err)
	}
	return &album, nil
}
