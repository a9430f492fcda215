// Package sync records a user's recently played tracks from Spotify in PostgreSQL.
//
// A run fetches the recent plays, refreshing the access token once on a 401,
// and then writes artists, albums, tracks and play logs in that order. Each
// stage commits before the next starts, so a failed run leaves the earlier
// stages persisted and can simply be run again.
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-listening-log/internal/logging"
	"github.com/justestif/go-spotify-listening-log/internal/spotify"
)

// Fetcher reads listening data from Spotify.
type Fetcher interface {
	FetchRecentPlays(ctx context.Context, accessToken string) (*spotify.RecentPlays, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Service runs syncs.
type Service struct {
	fetcher     Fetcher
	store       Store
	concurrency int
	metrics     *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets how many album or track transactions run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMetrics sets the collectors a Service updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a sync service.
func New(fetcher Fetcher, store Store, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Request holds the credentials for one run. RefreshToken may be empty.
type Request struct {
	AccessToken  string
	RefreshToken string
}

// Result summarizes a successful run.
type Result struct {
	RunID string
	// UpdatedToken is set when the access token was refreshed during the run.
	// The caller is responsible for persisting it.
	UpdatedToken *oauth2.Token
	Plays        int
	Artists      int
	Albums       int
	Tracks       int
	// PlayLogs is the number of play events not stored before this run.
	PlayLogs int64
	SyncedAt time.Time
}

// Run performs one sync. Any failure is returned as an *Error; stages that
// committed before the failure stay persisted.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	log := logging.With().Str("run_id", runID).Logger()
	log.Debug().Msg("sync run started")

	result, err := s.run(ctx, log, req)
	if err != nil {
		var syncErr *Error
		if errors.As(err, &syncErr) {
			log.Error().Err(syncErr.Err).
				Str("kind", string(syncErr.Kind)).
				Str("stage", string(syncErr.Stage)).
				Msg("sync run failed")
		}
		s.metrics.RunsTotal.WithLabelValues(string(KindOf(err))).Inc()
		return nil, err
	}

	result.RunID = runID
	s.metrics.RunsTotal.WithLabelValues("success").Inc()
	log.Info().
		Int("plays", result.Plays).
		Int("artists", result.Artists).
		Int("albums", result.Albums).
		Int("tracks", result.Tracks).
		Int64("new_play_logs", result.PlayLogs).
		Bool("token_refreshed", result.UpdatedToken != nil).
		Msg("sync run finished")
	return result, nil
}

func (s *Service) run(ctx context.Context, log zerolog.Logger, req Request) (*Result, error) {
	plays, token, err := s.fetch(ctx, log, req)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("plays", len(plays.Items)).Msg("fetched recent plays")

	engine := NewEngine(s.store, s.concurrency)

	start := time.Now()
	artists, err := engine.UpsertArtists(ctx, ExtractArtists(plays.Items))
	if err != nil {
		return nil, fail(StageArtists, KindStorage, err)
	}
	s.finishStage(log, StageArtists, start, artists.Len())

	start = time.Now()
	albumEntries, err := ExtractAlbums(plays.Items)
	if err != nil {
		return nil, fail(StageAlbums, KindParse, err)
	}
	albums, err := engine.UpsertAlbums(ctx, albumEntries, artists)
	if err != nil {
		return nil, fail(StageAlbums, KindStorage, err)
	}
	s.finishStage(log, StageAlbums, start, albums.Len())

	start = time.Now()
	tracks, err := engine.UpsertTracks(ctx, ExtractTracks(plays.Items), albums)
	if err != nil {
		return nil, fail(StageTracks, KindStorage, err)
	}
	s.finishStage(log, StageTracks, start, tracks.Len())

	start = time.Now()
	logs, err := ExtractPlayLogs(plays.Items, tracks)
	if err != nil {
		return nil, fail(StagePlayLogs, KindParse, err)
	}
	inserted, err := engine.UpsertPlayLogs(ctx, logs)
	if err != nil {
		return nil, fail(StagePlayLogs, KindStorage, err)
	}
	s.finishStage(log, StagePlayLogs, start, int(inserted))

	return &Result{
		UpdatedToken: token,
		Plays:        len(plays.Items),
		Artists:      artists.Len(),
		Albums:       albums.Len(),
		Tracks:       tracks.Len(),
		PlayLogs:     inserted,
		SyncedAt:     time.Now().UTC(),
	}, nil
}

// fetch reads the recent plays. A 401 triggers exactly one token refresh and
// one retry; the refreshed token is returned so the caller can persist it.
func (s *Service) fetch(ctx context.Context, log zerolog.Logger, req Request) (*spotify.RecentPlays, *oauth2.Token, error) {
	start := time.Now()
	defer s.metrics.observeStage(StageFetch, start)

	plays, err := s.fetcher.FetchRecentPlays(ctx, req.AccessToken)
	if err == nil {
		return plays, nil, nil
	}
	if !spotify.IsUnauthorized(err) {
		return nil, nil, fail(StageFetch, KindRemote, err)
	}

	log.Debug().Msg("access token rejected, refreshing")
	token, err := s.fetcher.RefreshAccessToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, spotify.ErrNoRefreshToken) {
			s.metrics.TokenRefreshesTotal.WithLabelValues("unavailable").Inc()
			return nil, nil, &Error{Kind: KindAuth, Stage: StageRefresh, Err: err}
		}
		s.metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		return nil, nil, &Error{Kind: KindRefresh, Stage: StageRefresh, Err: err}
	}
	s.metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()

	plays, err = s.fetcher.FetchRecentPlays(ctx, token.AccessToken)
	if err != nil {
		if spotify.IsUnauthorized(err) {
			return nil, nil, &Error{Kind: KindAuth, Stage: StageFetch, Err: err}
		}
		return nil, nil, fail(StageFetch, KindRemote, err)
	}
	return plays, token, nil
}

func (s *Service) finishStage(log zerolog.Logger, stage Stage, start time.Time, rows int) {
	s.metrics.observeStage(stage, start)
	s.metrics.RowsTotal.WithLabelValues(string(stage)).Add(float64(rows))
	log.Debug().
		Str("stage", string(stage)).
		Int("rows", rows).
		Dur("duration", time.Since(start)).
		Msg("stage committed")
}
