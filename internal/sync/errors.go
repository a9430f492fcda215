package sync

import (
	"errors"
	"fmt"
)

// Kind classifies why a sync run failed.
type Kind string

// Failure kinds.
const (
	// KindAuth means the credentials cannot be recovered: a 401 with no
	// refresh token, or a 401 again after refreshing.
	KindAuth Kind = "auth"
	// KindRefresh means the refresh-token exchange itself failed.
	KindRefresh Kind = "refresh"
	// KindRemote covers every other Spotify or transport failure.
	KindRemote Kind = "remote"
	// KindParse means the remote data held a malformed date or timestamp.
	KindParse Kind = "parse"
	// KindStorage covers insert, lookup and transaction failures.
	KindStorage Kind = "storage"
	// KindIntegrity means an expected natural-key match was missing.
	KindIntegrity Kind = "integrity"
	// KindUnknown is returned by KindOf for errors not produced by a run.
	KindUnknown Kind = "unknown"
)

// Stage names one step of a run.
type Stage string

// Run stages, in execution order.
const (
	StageFetch    Stage = "fetch"
	StageRefresh  Stage = "refresh"
	StageArtists  Stage = "artists"
	StageAlbums   Stage = "albums"
	StageTracks   Stage = "tracks"
	StagePlayLogs Stage = "play_logs"
)

// Error is the single terminal failure of a sync run.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sync %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a run failure, or KindUnknown.
func KindOf(err error) Kind {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return KindUnknown
}

// ParseError reports a malformed value in the remote data.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a natural key that should have resolved to a stored row but did not.
type IntegrityError struct {
	Entity string
	Key    string
	Reason string
}

func (e *IntegrityError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no matching row"
	}
	return fmt.Sprintf("%s %q: %s", e.Entity, e.Key, reason)
}

// fail wraps err as a run failure. The kind is derived from the error's
// type: parse and integrity errors keep their own kind, everything else
// takes fallback.
func fail(stage Stage, fallback Kind, err error) error {
	kind := fallback
	var parseErr *ParseError
	var integrityErr *IntegrityError
	switch {
	case errors.As(err, &parseErr):
		kind = KindParse
	case errors.As(err, &integrityErr):
		kind = KindIntegrity
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
