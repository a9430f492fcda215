package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-spotify-listening-log/internal/spotify"
)

func TestExtractArtists(t *testing.T) {
	plays := []spotify.RecentPlay{
		play("A", "X", "2020-01-01", "2024-01-01T00:00:00Z", "Y"),
		play("B", "X", "2020-01-01", "2024-01-01T00:05:00Z", "Y", "Z"),
	}

	got := ExtractArtists(plays)

	assert.Equal(t, []string{"Y", "Y", "Z"}, got)
}

func TestExtractArtists_UsesAlbumArtists(t *testing.T) {
	p := play("A", "X", "2020-01-01", "2024-01-01T00:00:00Z", "Y")
	p.Track.Artists = []spotify.Artist{{Name: "Featured"}}

	assert.Equal(t, []string{"Y"}, ExtractArtists([]spotify.RecentPlay{p}))
}

func TestExtractAlbums(t *testing.T) {
	plays := []spotify.RecentPlay{
		play("A", "X", "2020-03-04", "2024-01-01T00:00:00Z", "Y"),
		play("B", "X", "2020-03-04", "2024-01-01T00:05:00Z", "Y"),
		play("C", "X", "2020-03-04", "2024-01-01T00:10:00Z", "Z"),
		play("D", "W", "1999-12-31", "2024-01-01T00:15:00Z", "Y"),
	}

	got, err := ExtractAlbums(plays)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "X", got[0].Album.Title)
	assert.Equal(t, time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC), got[0].Album.ReleaseDate)
	assert.Equal(t, []string{"Y", "Z"}, got[0].ArtistNames)

	assert.Equal(t, "W", got[1].Album.Title)
	assert.Equal(t, []string{"Y"}, got[1].ArtistNames)
}

func TestExtractAlbums_BadReleaseDate(t *testing.T) {
	plays := []spotify.RecentPlay{
		play("A", "X", "not-a-date", "2024-01-01T00:00:00Z", "Y"),
	}

	_, err := ExtractAlbums(plays)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "release_date", parseErr.Field)
	assert.Equal(t, "not-a-date", parseErr.Value)
}

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		precision string
		want      time.Time
		wantErr   bool
	}{
		{"day", "2021-07-09", "day", time.Date(2021, 7, 9, 0, 0, 0, 0, time.UTC), false},
		{"missing precision", "2021-07-09", "", time.Date(2021, 7, 9, 0, 0, 0, 0, time.UTC), false},
		{"month", "2021-07", "month", time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), false},
		{"year", "1977", "year", time.Date(1977, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"year value with day precision", "1977", "day", time.Time{}, true},
		{"garbage", "not-a-date", "day", time.Time{}, true},
		{"unknown precision", "2021-07-09", "week", time.Time{}, true},
		{"empty", "", "day", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReleaseDate(tt.value, tt.precision)
			if tt.wantErr {
				var parseErr *ParseError
				assert.ErrorAs(t, err, &parseErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTracks_OneEntryPerPlay(t *testing.T) {
	plays := []spotify.RecentPlay{
		play("A", "X", "2020-01-01", "2024-01-01T00:00:00Z", "Y"),
		play("A", "X", "2020-01-01", "2024-01-01T00:05:00Z", "Y"),
		play("B", "W", "2020-01-01", "2024-01-01T00:10:00Z", "Y"),
	}

	got := ExtractTracks(plays)

	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Track.Title)
	assert.Equal(t, "X", got[0].AlbumTitle)
	assert.Equal(t, "A", got[1].Track.Title)
	assert.Equal(t, "B", got[2].Track.Title)
	assert.Equal(t, "W", got[2].AlbumTitle)
}

type lookup map[string]int64

func (l lookup) TrackID(title string) (int64, bool) {
	id, ok := l[title]
	return id, ok
}

func TestExtractPlayLogs(t *testing.T) {
	plays := []spotify.RecentPlay{
		play("A", "X", "2020-01-01", "2024-01-01T01:00:00+01:00", "Y"),
		play("B", "X", "2020-01-01", "2024-01-01T00:05:00.123Z", "Y"),
	}

	got, err := ExtractPlayLogs(plays, lookup{"A": 7, "B": 8})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(7), got[0].TrackID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got[0].PlayedAt)
	assert.Equal(t, time.UTC, got[0].PlayedAt.Location())

	assert.Equal(t, int64(8), got[1].TrackID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 5, 0, 123_000_000, time.UTC), got[1].PlayedAt)
}

func TestExtractPlayLogs_Errors(t *testing.T) {
	t.Run("bad timestamp", func(t *testing.T) {
		plays := []spotify.RecentPlay{play("A", "X", "2020-01-01", "yesterday", "Y")}

		_, err := ExtractPlayLogs(plays, lookup{"A": 1})

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "played_at", parseErr.Field)
	})

	t.Run("unknown track", func(t *testing.T) {
		plays := []spotify.RecentPlay{play("A", "X", "2020-01-01", "2024-01-01T00:00:00Z", "Y")}

		_, err := ExtractPlayLogs(plays, lookup{})

		var integrityErr *IntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "A", integrityErr.Key)
	})
}
