package sync

import (
	"context"
	"fmt"

	"github.com/justestif/go-spotify-listening-log/internal/db"
)

// ArtistSet maps artist names to their stored rows. It is read-only once built.
type ArtistSet struct {
	byName map[string]db.Artist
}

// Len returns the number of artists in the set.
func (s ArtistSet) Len() int {
	return len(s.byName)
}

// Get returns the stored artist named name.
func (s ArtistSet) Get(name string) (db.Artist, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// IDs returns the ids of names, in order. A name outside the set is an IntegrityError.
func (s ArtistSet) IDs(names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		a, ok := s.byName[name]
		if !ok {
			return nil, &IntegrityError{Entity: "artist", Key: name, Reason: "not resolved in this run"}
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// ResolveArtists looks up the stored row of every name with a single query.
// The result covers each distinct name exactly once; a name without a row is
// an IntegrityError.
func ResolveArtists(ctx context.Context, store Store, names []string) (ArtistSet, error) {
	keys := distinct(names)
	rows, err := store.FindArtistsByName(ctx, keys)
	if err != nil {
		return ArtistSet{}, fmt.Errorf("looking up artists: %w", err)
	}
	byName, err := resolve("artist", keys, rows, func(a db.Artist) string { return a.Name })
	if err != nil {
		return ArtistSet{}, err
	}
	return ArtistSet{byName: byName}, nil
}

// resolve matches rows to keys by natural key. Every key must match exactly
// one row; rows for keys that were not requested are ignored.
func resolve[T any](entity string, keys []string, rows []T, keyOf func(T) string) (map[string]T, error) {
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	out := make(map[string]T, len(keys))
	for _, row := range rows {
		k := keyOf(row)
		if !wanted[k] {
			continue
		}
		if _, dup := out[k]; dup {
			return nil, &IntegrityError{Entity: entity, Key: k, Reason: "matched more than one row"}
		}
		out[k] = row
	}

	for _, k := range keys {
		if _, ok := out[k]; !ok {
			return nil, &IntegrityError{Entity: entity, Key: k}
		}
	}
	return out, nil
}

// distinct returns values without duplicates, keeping first-seen order.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
