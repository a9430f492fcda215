//go:build integration

package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-listening-log/internal/db"
	"github.com/justestif/go-spotify-listening-log/internal/spotify"
	"github.com/justestif/go-spotify-listening-log/internal/sync"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("listening_log"),
		postgres.WithUsername("listening_log"),
		postgres.WithPassword("listening_log"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	database, err := db.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.Migrate(ctx))
	// Migrations are idempotent.
	require.NoError(t, database.Migrate(ctx))
	return database
}

type staticFetcher struct {
	plays *spotify.RecentPlays
}

func (f staticFetcher) FetchRecentPlays(context.Context, string) (*spotify.RecentPlays, error) {
	return f.plays, nil
}

func (f staticFetcher) RefreshAccessToken(context.Context, string) (*oauth2.Token, error) {
	return nil, spotify.ErrNoRefreshToken
}

func recentPlay(track, playedAt string) spotify.RecentPlay {
	artists := []spotify.Artist{{Name: "Y"}}
	return spotify.RecentPlay{
		Track: spotify.Track{
			Name:    track,
			Artists: artists,
			Album: spotify.Album{
				Name:                 "X",
				ReleaseDate:          "2023-05-05",
				ReleaseDatePrecision: "day",
				Artists:              artists,
			},
		},
		PlayedAt: playedAt,
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	fetcher := staticFetcher{plays: &spotify.RecentPlays{Items: []spotify.RecentPlay{
		recentPlay("A", "2024-01-01T00:00:00Z"),
		recentPlay("B", "2024-01-01T00:05:00Z"),
	}}}
	service := sync.New(fetcher, sync.NewStore(database), sync.WithConcurrency(2))

	want := db.Stats{Artists: 1, Albums: 1, AlbumArtists: 1, Tracks: 2, AlbumTracks: 2, PlayLogs: 2}

	first, err := service.Run(ctx, sync.Request{AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.PlayLogs)

	stats, err := database.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *stats)

	second, err := service.Run(ctx, sync.Request{AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.PlayLogs)

	stats, err = database.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *stats)

	album, err := database.AlbumHistory(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "2023-05-05", album.ReleaseDate)
	assert.Len(t, album.ArtistIDs, 1)
	require.Len(t, album.Tracks, 2)
	assert.Equal(t, "A", album.Tracks[0].Title)
	assert.Equal(t, "B", album.Tracks[1].Title)

	trackB, err := database.TrackHistory(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, album.Tracks[1].ID, trackB.ID)
	require.Len(t, trackB.PlayedAt, 1)
	assert.True(t, trackB.PlayedAt[0].Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)))

	_, err = database.TrackHistory(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestArtistsInsertIgnoreAndFind(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	artists := database.Artists()

	require.NoError(t, artists.InsertIgnore(ctx, []string{"M1", "M2"}))
	before, err := artists.FindByNames(ctx, []string{"M1", "M2"})
	require.NoError(t, err)
	require.Len(t, before, 2)

	require.NoError(t, artists.InsertIgnore(ctx, []string{"M1", "N1", "M2", "N2"}))
	after, err := artists.FindByNames(ctx, []string{"M1", "N1", "M2", "N2"})
	require.NoError(t, err)
	assert.Len(t, after, 4)

	ids := make(map[string]int64)
	for _, a := range after {
		ids[a.Name] = a.ID
	}
	for _, a := range before {
		assert.Equal(t, a.ID, ids[a.Name], "pre-existing id for %s changed", a.Name)
	}
}

func TestAlbumInsertWithArtists_ExistingTitle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.Artists().InsertIgnore(ctx, []string{"Y", "Z"}))
	found, err := database.Artists().FindByNames(ctx, []string{"Y", "Z"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	released := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := database.Albums().InsertWithArtists(ctx, db.Album{Title: "Greatest Hits", ReleaseDate: released}, []int64{found[0].ID})
	require.NoError(t, err)
	second, err := database.Albums().InsertWithArtists(ctx, db.Album{Title: "Greatest Hits", ReleaseDate: released}, []int64{found[1].ID})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	ids, err := database.Artists().ArtistIDsForAlbum(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestAlbumInsertWithArtists_RollsBackOnBadLink(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.Albums().InsertWithArtists(ctx, db.Album{Title: "Orphan", ReleaseDate: time.Now()}, []int64{999999})
	require.Error(t, err)

	_, err = database.Albums().GetByTitle(ctx, "Orphan")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAccounts_SaveLoginAndRecordSync(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	accounts := database.Accounts()

	user := &db.User{ID: "spotify-user", DisplayName: "Listener", Email: "listener@example.com"}
	account := &db.Account{
		Provider:     db.ProviderSpotify,
		ProviderID:   "spotify-user",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
	require.NoError(t, accounts.SaveLogin(ctx, user, account))
	assert.NotZero(t, account.ID)
	assert.Equal(t, "spotify-user", account.UserID)

	// Logging in again replaces the tokens on the same account.
	again := &db.Account{
		Provider:     db.ProviderSpotify,
		ProviderID:   "spotify-user",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
	}
	require.NoError(t, accounts.SaveLogin(ctx, user, again))
	assert.Equal(t, account.ID, again.ID)

	_, err := accounts.GetByAccessToken(ctx, "access-1")
	assert.ErrorIs(t, err, db.ErrNotFound)

	syncedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, accounts.RecordSync(ctx, "access-2", "access-3", syncedAt))

	stored, err := accounts.GetByAccessToken(ctx, "access-3")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", stored.RefreshToken)

	profile, err := database.Profile(ctx, "access-3")
	require.NoError(t, err)
	assert.Equal(t, "spotify-user", profile.UserID)
	assert.Equal(t, "Listener", profile.DisplayName)
	require.NotNil(t, profile.LastSyncAt)
	assert.True(t, profile.LastSyncAt.Equal(syncedAt))

	err = accounts.RecordSync(ctx, "unknown-token", "", syncedAt)
	assert.ErrorIs(t, err, db.ErrNotFound)
}
