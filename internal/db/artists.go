package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

// InsertIgnore inserts every name that does not exist yet. Existing names are
// skipped silently. Generated ids are not returned because skipped rows have
// none; use FindByNames to resolve them.
func (r *ArtistRepository) InsertIgnore(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := `
		INSERT INTO artists (name)
		SELECT * FROM unnest($1::text[])
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, names); err != nil {
		return fmt.Errorf("batch inserting artists: %w", err)
	}
	return nil
}

// FindByNames returns the artists whose name is in names.
func (r *ArtistRepository) FindByNames(ctx context.Context, names []string) ([]Artist, error) {
	if len(names) == 0 {
		return []Artist{}, nil
	}

	query := `
		SELECT id, name, created_at
		FROM artists
		WHERE name = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("querying artists: %w", err)
	}
	defer rows.Close()

	artists := []Artist{}
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning artist: %w", err)
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// ArtistIDsForAlbum returns the ids of the artists linked to an album.
func (r *ArtistRepository) ArtistIDsForAlbum(ctx context.Context, albumID int64) ([]int64, error) {
	query := `SELECT artist_id FROM album_artists WHERE album_id = $1 ORDER BY artist_id`
	rows, err := r.pool.Query(ctx, query, albumID)
	if err != nil {
		return nil, fmt.Errorf("querying album artists: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning album artist: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
