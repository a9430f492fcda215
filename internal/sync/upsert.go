package sync

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-spotify-listening-log/internal/db"
)

// DefaultConcurrency is the default number of album or track transactions in flight.
const DefaultConcurrency = 5

// AlbumSet maps album titles to the rows stored by the album stage.
type AlbumSet struct {
	byTitle map[string]db.Album
}

// Len returns the number of albums in the set.
func (s AlbumSet) Len() int {
	return len(s.byTitle)
}

// Get returns the stored album titled title.
func (s AlbumSet) Get(title string) (db.Album, bool) {
	a, ok := s.byTitle[title]
	return a, ok
}

// IDs returns the ids of titles, in order. A title outside the set is an IntegrityError.
func (s AlbumSet) IDs(titles []string) ([]int64, error) {
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		a, ok := s.byTitle[title]
		if !ok {
			return nil, &IntegrityError{Entity: "album", Key: title, Reason: "not stored in this run"}
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// TrackSet maps track titles to the rows stored by the track stage.
type TrackSet struct {
	byTitle map[string]db.Track
}

// Len returns the number of tracks in the set.
func (s TrackSet) Len() int {
	return len(s.byTitle)
}

// TrackID implements TrackLookup.
func (s TrackSet) TrackID(title string) (int64, bool) {
	t, ok := s.byTitle[title]
	return t.ID, ok
}

// Engine writes extracted records in dependency order. Albums and tracks are
// written one transaction per entity, at most concurrency at a time.
type Engine struct {
	store       Store
	concurrency int
}

// NewEngine creates an Engine. A non-positive concurrency uses DefaultConcurrency.
func NewEngine(store Store, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{store: store, concurrency: concurrency}
}

// UpsertArtists inserts the artists not yet stored and resolves every name to its row.
func (e *Engine) UpsertArtists(ctx context.Context, names []string) (ArtistSet, error) {
	keys := distinct(names)
	if err := e.store.InsertArtists(ctx, keys); err != nil {
		return ArtistSet{}, fmt.Errorf("inserting artists: %w", err)
	}
	return ResolveArtists(ctx, e.store, keys)
}

// UpsertAlbums stores every album with its artist links. Each album is one
// transaction; the first failure cancels the albums not yet started and is
// returned.
func (e *Engine) UpsertAlbums(ctx context.Context, entries []AlbumEntry, artists ArtistSet) (AlbumSet, error) {
	type job struct {
		album     db.Album
		artistIDs []int64
	}

	// Entries sharing a title collapse onto one row; their artists are merged.
	var jobs []job
	index := make(map[string]int)
	for _, entry := range entries {
		ids, err := artists.IDs(entry.ArtistNames)
		if err != nil {
			return AlbumSet{}, err
		}
		i, ok := index[entry.Album.Title]
		if !ok {
			index[entry.Album.Title] = len(jobs)
			jobs = append(jobs, job{album: entry.Album, artistIDs: ids})
			continue
		}
		jobs[i].artistIDs = appendMissing(jobs[i].artistIDs, ids)
	}

	saved := make([]db.Album, len(jobs))
	err := e.forEach(ctx, len(jobs), func(ctx context.Context, i int) error {
		album, err := e.store.InsertAlbumWithArtists(ctx, jobs[i].album, jobs[i].artistIDs)
		if err != nil {
			return err
		}
		saved[i] = album
		return nil
	})
	if err != nil {
		return AlbumSet{}, err
	}

	set := AlbumSet{byTitle: make(map[string]db.Album, len(saved))}
	for _, a := range saved {
		set.byTitle[a.Title] = a
	}
	return set, nil
}

// UpsertTracks stores every distinct track title with links to the albums it
// was played from. Each track is one transaction, bounded like UpsertAlbums.
func (e *Engine) UpsertTracks(ctx context.Context, entries []TrackEntry, albums AlbumSet) (TrackSet, error) {
	type job struct {
		track    db.Track
		albumIDs []int64
	}

	var jobs []job
	index := make(map[string]int)
	for _, entry := range entries {
		ids, err := albums.IDs([]string{entry.AlbumTitle})
		if err != nil {
			return TrackSet{}, err
		}
		i, ok := index[entry.Track.Title]
		if !ok {
			index[entry.Track.Title] = len(jobs)
			jobs = append(jobs, job{track: entry.Track, albumIDs: ids})
			continue
		}
		jobs[i].albumIDs = appendMissing(jobs[i].albumIDs, ids)
	}

	saved := make([]db.Track, len(jobs))
	err := e.forEach(ctx, len(jobs), func(ctx context.Context, i int) error {
		track, err := e.store.InsertTrackWithAlbums(ctx, jobs[i].track, jobs[i].albumIDs)
		if err != nil {
			return err
		}
		saved[i] = track
		return nil
	})
	if err != nil {
		return TrackSet{}, err
	}

	set := TrackSet{byTitle: make(map[string]db.Track, len(saved))}
	for _, t := range saved {
		set.byTitle[t.Title] = t
	}
	return set, nil
}

// UpsertPlayLogs bulk inserts play events and returns how many were new.
func (e *Engine) UpsertPlayLogs(ctx context.Context, logs []db.PlayLog) (int64, error) {
	n, err := e.store.InsertPlayLogs(ctx, logs)
	if err != nil {
		return 0, fmt.Errorf("inserting play logs: %w", err)
	}
	return n, nil
}

// forEach runs fn for 0..n-1 with at most e.concurrency calls in flight and
// waits for all of them. The first error cancels the context passed to the
// remaining calls. A panicking call is reported as an error.
func (e *Engine) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker panic: %v", r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// appendMissing appends the ids from add that dst does not contain.
func appendMissing(dst, add []int64) []int64 {
	for _, id := range add {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}
