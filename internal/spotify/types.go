package spotify

// RecentPlays is the body of GET /me/player/recently-played.
// Spotify can answer HTTP 200 with Error set instead of Items.
type RecentPlays struct {
	Items   []RecentPlay `json:"items"`
	Next    string       `json:"next"`
	Limit   int          `json:"limit"`
	Cursors *Cursors     `json:"cursors"`
	Error   *APIError    `json:"error,omitempty"`
}

// Cursors are the paging cursors of a recently-played page.
type Cursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

// RecentPlay is one play event. PlayedAt is an ISO 8601 timestamp with zone.
type RecentPlay struct {
	Track    Track  `json:"track"`
	PlayedAt string `json:"played_at"`
}

// Track is the subset of a Spotify track object the sync consumes.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	DurationMs   int          `json:"duration_ms"`
	Artists      []Artist     `json:"artists"`
	Album        Album        `json:"album"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Album is a simplified Spotify album object.
type Album struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	AlbumType            string       `json:"album_type"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	Artists              []Artist     `json:"artists"`
	Images               []Image      `json:"images"`
	ExternalURLs         ExternalURLs `json:"external_urls"`
}

// Artist is a simplified Spotify artist object.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Image is album artwork.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ExternalURLs holds public links to an object.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// APIError is the error object Spotify embeds in response bodies.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// errorEnvelope is decoded from every response before the typed body.
type errorEnvelope struct {
	Error *APIError `json:"error"`
}
