package db

import "time"

// Artist is a performer, unique by name.
type Artist struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Album is a release, identified by title.
type Album struct {
	ID          int64
	Title       string
	ReleaseDate time.Time // date only
	CreatedAt   time.Time
}

// Track is a song, identified by title.
type Track struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// PlayLog is one play event. PlayedAt is stored in UTC without a zone.
type PlayLog struct {
	ID       int64
	TrackID  int64
	PlayedAt time.Time
}

// User represents a Spotify user profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSyncAt  *time.Time // nullable
}

// Account holds a user's provider credentials.
type Account struct {
	ID           int64
	Provider     string
	ProviderID   string
	AccessToken  string
	RefreshToken string
	UserID       string
}

// Stats are row counts per table.
type Stats struct {
	Artists      int64 `json:"artists"`
	Albums       int64 `json:"albums"`
	AlbumArtists int64 `json:"album_artists"`
	Tracks       int64 `json:"tracks"`
	AlbumTracks  int64 `json:"album_tracks"`
	PlayLogs     int64 `json:"play_logs"`
}
