package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-listening-log/internal/db"
	"github.com/justestif/go-spotify-listening-log/internal/spotify"
)

type playKey struct {
	trackID  int64
	playedAt time.Time
}

// memStore is an in-memory Store with unique natural keys and foreign key
// checks. Each insert method is atomic: it validates before writing.
type memStore struct {
	mu     gosync.Mutex
	nextID int64

	artists      map[string]db.Artist
	albums       map[string]db.Album
	albumArtists map[[2]int64]bool
	tracks       map[string]db.Track
	albumTracks  map[[2]int64]bool
	playLogs     map[playKey]bool

	// stages records the stage of every write, in order.
	stages []Stage

	albumCalls atomic.Int64
	trackCalls atomic.Int64

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	delay       time.Duration

	failAlbum  string
	panicAlbum string
	failTrack  string
	hideArtist string
}

func newMemStore() *memStore {
	return &memStore{
		artists:      make(map[string]db.Artist),
		albums:       make(map[string]db.Album),
		albumArtists: make(map[[2]int64]bool),
		tracks:       make(map[string]db.Track),
		albumTracks:  make(map[[2]int64]bool),
		playLogs:     make(map[playKey]bool),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) enter() func() {
	n := s.inFlight.Add(1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *memStore) InsertArtists(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, StageArtists)
	for _, name := range names {
		if _, ok := s.artists[name]; ok {
			continue
		}
		s.artists[name] = db.Artist{ID: s.id(), Name: name}
	}
	return nil
}

func (s *memStore) FindArtistsByName(_ context.Context, names []string) ([]db.Artist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Artist
	for _, name := range names {
		if name == s.hideArtist {
			continue
		}
		if a, ok := s.artists[name]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) artistExists(id int64) bool {
	for _, a := range s.artists {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *memStore) albumExists(id int64) bool {
	for _, a := range s.albums {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *memStore) trackExists(id int64) bool {
	for _, t := range s.tracks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *memStore) InsertAlbumWithArtists(ctx context.Context, album db.Album, artistIDs []int64) (db.Album, error) {
	s.albumCalls.Add(1)
	defer s.enter()()

	if album.Title == s.panicAlbum {
		panic("album writer exploded")
	}
	if album.Title == s.failAlbum {
		return db.Album{}, fmt.Errorf("inserting album %q: connection reset", album.Title)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return db.Album{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, StageAlbums)
	for _, id := range artistIDs {
		if !s.artistExists(id) {
			return db.Album{}, fmt.Errorf("album_artists: artist %d does not exist", id)
		}
	}
	saved, ok := s.albums[album.Title]
	if !ok {
		saved = db.Album{ID: s.id(), Title: album.Title, ReleaseDate: album.ReleaseDate}
		s.albums[album.Title] = saved
	}
	for _, id := range artistIDs {
		s.albumArtists[[2]int64{saved.ID, id}] = true
	}
	return saved, nil
}

func (s *memStore) InsertTrackWithAlbums(ctx context.Context, track db.Track, albumIDs []int64) (db.Track, error) {
	s.trackCalls.Add(1)
	defer s.enter()()

	if track.Title == s.failTrack {
		return db.Track{}, errors.New("tracks: deadlock detected")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return db.Track{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, StageTracks)
	for _, id := range albumIDs {
		if !s.albumExists(id) {
			return db.Track{}, fmt.Errorf("album_tracks: album %d does not exist", id)
		}
	}
	saved, ok := s.tracks[track.Title]
	if !ok {
		saved = db.Track{ID: s.id(), Title: track.Title}
		s.tracks[track.Title] = saved
	}
	for _, id := range albumIDs {
		s.albumTracks[[2]int64{id, saved.ID}] = true
	}
	return saved, nil
}

func (s *memStore) InsertPlayLogs(_ context.Context, logs []db.PlayLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, StagePlayLogs)
	for _, l := range logs {
		if !s.trackExists(l.TrackID) {
			return 0, fmt.Errorf("play_logs: track %d does not exist", l.TrackID)
		}
	}
	var n int64
	for _, l := range logs {
		key := playKey{trackID: l.TrackID, playedAt: l.PlayedAt.UTC()}
		if s.playLogs[key] {
			continue
		}
		s.playLogs[key] = true
		n++
	}
	return n, nil
}

type counts struct {
	Artists, Albums, AlbumArtists, Tracks, AlbumTracks, PlayLogs int
}

func (s *memStore) counts() counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return counts{
		Artists:      len(s.artists),
		Albums:       len(s.albums),
		AlbumArtists: len(s.albumArtists),
		Tracks:       len(s.tracks),
		AlbumTracks:  len(s.albumTracks),
		PlayLogs:     len(s.playLogs),
	}
}

// fakeFetcher replays a fixed sequence of fetch results.
type fakeFetcher struct {
	mu        gosync.Mutex
	responses []fetchResponse
	// refresh is returned by RefreshAccessToken when refreshErr is nil.
	refresh    *oauth2.Token
	refreshErr error

	fetchTokens  []string
	refreshCalls int
}

type fetchResponse struct {
	plays *spotify.RecentPlays
	err   error
}

func (f *fakeFetcher) FetchRecentPlays(_ context.Context, accessToken string) (*spotify.RecentPlays, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.fetchTokens)
	f.fetchTokens = append(f.fetchTokens, accessToken)
	if i >= len(f.responses) {
		return nil, fmt.Errorf("unexpected fetch #%d", i+1)
	}
	return f.responses[i].plays, f.responses[i].err
}

func (f *fakeFetcher) RefreshAccessToken(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if refreshToken == "" {
		return nil, spotify.ErrNoRefreshToken
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refresh, nil
}

func okPlays(items ...spotify.RecentPlay) fetchResponse {
	return fetchResponse{plays: &spotify.RecentPlays{Items: items}}
}

func unauthorized() fetchResponse {
	return fetchResponse{err: &spotify.AuthError{Status: 401, Message: "The access token expired"}}
}

func play(track, album, releaseDate, playedAt string, artists ...string) spotify.RecentPlay {
	var as []spotify.Artist
	for _, name := range artists {
		as = append(as, spotify.Artist{Name: name})
	}
	return spotify.RecentPlay{
		Track: spotify.Track{
			Name:    track,
			Artists: as,
			Album: spotify.Album{
				Name:                 album,
				ReleaseDate:          releaseDate,
				ReleaseDatePrecision: "day",
				Artists:              as,
			},
		},
		PlayedAt: playedAt,
	}
}
