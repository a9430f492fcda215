package sync

import (
	"context"

	"github.com/justestif/go-spotify-listening-log/internal/db"
)

// Store is the storage the upsert stages write through.
type Store interface {
	// InsertArtists inserts every name not stored yet and ignores the rest.
	InsertArtists(ctx context.Context, names []string) error
	// FindArtistsByName returns the stored artists whose name is in names.
	FindArtistsByName(ctx context.Context, names []string) ([]db.Artist, error)
	// InsertAlbumWithArtists stores album and its artist links atomically.
	InsertAlbumWithArtists(ctx context.Context, album db.Album, artistIDs []int64) (db.Album, error)
	// InsertTrackWithAlbums stores track and its album links atomically.
	InsertTrackWithAlbums(ctx context.Context, track db.Track, albumIDs []int64) (db.Track, error)
	// InsertPlayLogs stores play events, ignoring (track_id, played_at) duplicates.
	InsertPlayLogs(ctx context.Context, logs []db.PlayLog) (int64, error)
}

// NewStore returns a Store backed by database.
func NewStore(database *db.DB) Store {
	return &dbStore{db: database}
}

type dbStore struct {
	db *db.DB
}

func (s *dbStore) InsertArtists(ctx context.Context, names []string) error {
	return s.db.Artists().InsertIgnore(ctx, names)
}

func (s *dbStore) FindArtistsByName(ctx context.Context, names []string) ([]db.Artist, error) {
	return s.db.Artists().FindByNames(ctx, names)
}

func (s *dbStore) InsertAlbumWithArtists(ctx context.Context, album db.Album, artistIDs []int64) (db.Album, error) {
	return s.db.Albums().InsertWithArtists(ctx, album, artistIDs)
}

func (s *dbStore) InsertTrackWithAlbums(ctx context.Context, track db.Track, albumIDs []int64) (db.Track, error) {
	return s.db.Tracks().InsertWithAlbums(ctx, track, albumIDs)
}

func (s *dbStore) InsertPlayLogs(ctx context.Context, logs []db.PlayLog) (int64, error) {
	return s.db.PlayLogs().InsertBatch(ctx, logs)
}
