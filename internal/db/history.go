package db

import (
	"context"
	"fmt"
	"time"
)

// TrackHistory is a track with its play events, most recent first.
type TrackHistory struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	PlayedAt []time.Time `json:"played_at"`
}

// AlbumHistory is an album with its linked artists and tracks.
type AlbumHistory struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	ReleaseDate string         `json:"release_date"`
	ArtistIDs   []int64        `json:"artist_ids"`
	Tracks      []TrackHistory `json:"tracks"`
}

// Profile is the user behind a stored access token.
type Profile struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	LastSyncAt  *time.Time `json:"last_sync_at"`
}

// AlbumHistory returns the album titled title with its artists, tracks and plays.
// Returns ErrNotFound when no album has that title.
func (db *DB) AlbumHistory(ctx context.Context, title string) (*AlbumHistory, error) {
	album, err := db.Albums().GetByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	artistIDs, err := db.Artists().ArtistIDsForAlbum(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	tracks, err := db.Tracks().GetAlbumTracks(ctx, album.ID)
	if err != nil {
		return nil, err
	}

	history := &AlbumHistory{
		ID:          album.ID,
		Title:       album.Title,
		ReleaseDate: album.ReleaseDate.Format(time.DateOnly),
		ArtistIDs:   nonNil(artistIDs),
		Tracks:      make([]TrackHistory, 0, len(tracks)),
	}
	for _, track := range tracks {
		th, err := db.trackHistory(ctx, track)
		if err != nil {
			return nil, err
		}
		history.Tracks = append(history.Tracks, *th)
	}
	return history, nil
}

// TrackHistory returns the track titled title with its plays.
// Returns ErrNotFound when no track has that title.
func (db *DB) TrackHistory(ctx context.Context, title string) (*TrackHistory, error) {
	track, err := db.Tracks().GetByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	return db.trackHistory(ctx, *track)
}

func (db *DB) trackHistory(ctx context.Context, track Track) (*TrackHistory, error) {
	logs, err := db.PlayLogs().ListForTrack(ctx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("loading plays for track %q: %w", track.Title, err)
	}
	playedAt := make([]time.Time, 0, len(logs))
	for _, l := range logs {
		playedAt = append(playedAt, l.PlayedAt)
	}
	return &TrackHistory{ID: track.ID, Title: track.Title, PlayedAt: playedAt}, nil
}

// Profile returns the user whose stored account holds accessToken.
// Returns ErrNotFound for tokens that never went through login.
func (db *DB) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	account, err := db.Accounts().GetByAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := db.Users().Get(ctx, account.UserID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		LastSyncAt:  user.LastSyncAt,
	}, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
