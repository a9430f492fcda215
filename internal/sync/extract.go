package sync

import (
	"errors"
	"time"

	"github.com/justestif/go-spotify-listening-log/internal/db"
	"github.com/justestif/go-spotify-listening-log/internal/spotify"
)

// Release date layouts by Spotify precision.
var releaseDateLayouts = map[string]string{
	"year":  "2006",
	"month": "2006-01",
	"day":   time.DateOnly,
	"":      time.DateOnly,
}

// AlbumEntry is an album to persist together with the names of its artists.
type AlbumEntry struct {
	Album       db.Album
	ArtistNames []string
}

// TrackEntry is one played track and the title of the album it was played from.
type TrackEntry struct {
	Track      db.Track
	AlbumTitle string
}

// TrackLookup resolves a track title to its persisted id.
type TrackLookup interface {
	TrackID(title string) (int64, bool)
}

// ExtractArtists returns the artist name of every album artist across plays,
// in order of appearance. Names are not deduplicated.
func ExtractArtists(plays []spotify.RecentPlay) []string {
	var names []string
	for _, p := range plays {
		for _, a := range p.Track.Album.Artists {
			names = append(names, a.Name)
		}
	}
	return names
}

// ExtractAlbums returns one entry per distinct album title in plays, in order
// of first appearance. When a title repeats with different artists, the
// artist lists are merged.
func ExtractAlbums(plays []spotify.RecentPlay) ([]AlbumEntry, error) {
	var entries []AlbumEntry
	index := make(map[string]int)
	seenArtist := make(map[string]map[string]bool)

	for _, p := range plays {
		album := p.Track.Album
		i, ok := index[album.Name]
		if !ok {
			released, err := ParseReleaseDate(album.ReleaseDate, album.ReleaseDatePrecision)
			if err != nil {
				return nil, err
			}
			i = len(entries)
			index[album.Name] = i
			seenArtist[album.Name] = make(map[string]bool)
			entries = append(entries, AlbumEntry{
				Album: db.Album{Title: album.Name, ReleaseDate: released},
			})
		}

		for _, a := range album.Artists {
			if seenArtist[album.Name][a.Name] {
				continue
			}
			seenArtist[album.Name][a.Name] = true
			entries[i].ArtistNames = append(entries[i].ArtistNames, a.Name)
		}
	}
	return entries, nil
}

// ExtractTracks returns one entry per play. Repeated plays of a track yield
// repeated entries.
func ExtractTracks(plays []spotify.RecentPlay) []TrackEntry {
	entries := make([]TrackEntry, 0, len(plays))
	for _, p := range plays {
		entries = append(entries, TrackEntry{
			Track:      db.Track{Title: p.Track.Name},
			AlbumTitle: p.Track.Album.Name,
		})
	}
	return entries
}

// ExtractPlayLogs returns one play log per play, with the track id taken from
// tracks and played_at converted to UTC.
func ExtractPlayLogs(plays []spotify.RecentPlay, tracks TrackLookup) ([]db.PlayLog, error) {
	logs := make([]db.PlayLog, 0, len(plays))
	for _, p := range plays {
		playedAt, err := ParsePlayedAt(p.PlayedAt)
		if err != nil {
			return nil, err
		}
		trackID, ok := tracks.TrackID(p.Track.Name)
		if !ok {
			return nil, &IntegrityError{Entity: "track", Key: p.Track.Name, Reason: "not persisted in this run"}
		}
		logs = append(logs, db.PlayLog{TrackID: trackID, PlayedAt: playedAt})
	}
	return logs, nil
}

// ParseReleaseDate parses a Spotify release date. Year and month precision
// dates resolve to the first day of the period.
func ParseReleaseDate(value, precision string) (time.Time, error) {
	layout, ok := releaseDateLayouts[precision]
	if !ok {
		return time.Time{}, &ParseError{
			Field: "release_date_precision",
			Value: precision,
			Err:   errors.New("unknown precision"),
		}
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, &ParseError{Field: "release_date", Value: value, Err: err}
	}
	return t, nil
}

// ParsePlayedAt parses an ISO 8601 timestamp with zone and returns it in UTC.
func ParsePlayedAt(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &ParseError{Field: "played_at", Value: value, Err: err}
	}
	return t.UTC(), nil
}
