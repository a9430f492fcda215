package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/justestif/go-spotify-listening-log/internal/db"
	"github.com/justestif/go-spotify-listening-log/internal/logging"
	"github.com/justestif/go-spotify-listening-log/internal/sync"
)

const stateCookieName = "oauth_state"

// Syncer runs one listening-history sync.
type Syncer interface {
	Run(ctx context.Context, req sync.Request) (*sync.Result, error)
}

// AccountStore persists logins and sync outcomes.
type AccountStore interface {
	SaveLogin(ctx context.Context, user *db.User, account *db.Account) error
	RecordSync(ctx context.Context, accessToken, updatedToken string, syncedAt time.Time) error
}

// StatusStore reports database health and table sizes.
type StatusStore interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*db.Stats, error)
}

// HistoryStore reads back stored listening history.
// Every method returns db.ErrNotFound for an unknown key.
type HistoryStore interface {
	AlbumHistory(ctx context.Context, title string) (*db.AlbumHistory, error)
	TrackHistory(ctx context.Context, title string) (*db.TrackHistory, error)
	Profile(ctx context.Context, accessToken string) (*db.Profile, error)
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	auth     *spotifyauth.Authenticator
	syncer   Syncer
	accounts AccountStore
	status   StatusStore
	history  HistoryStore
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(auth *spotifyauth.Authenticator, syncer Syncer, accounts AccountStore, status StatusStore, history HistoryStore) *Handlers {
	return &Handlers{
		auth:     auth,
		syncer:   syncer,
		accounts: accounts,
		status:   status,
		history:  history,
	}
}

type collectResponse struct {
	UpdatedToken *string `json:"updated_token"`
	RunID        string  `json:"run_id"`
	Plays        int     `json:"plays"`
	Artists      int     `json:"artists"`
	Albums       int     `json:"albums"`
	Tracks       int     `json:"tracks"`
	NewPlayLogs  int64   `json:"new_play_logs"`
}

// Collect runs a sync with the caller's tokens (GET /collect).
func (h *Handlers) Collect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accessToken := q.Get("access_token")
	if accessToken == "" {
		respondError(w, http.StatusBadRequest, "", "access_token is required")
		return
	}

	// A run is never abandoned midway; a client that hangs up only loses the response.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.syncer.Run(ctx, sync.Request{
		AccessToken:  accessToken,
		RefreshToken: q.Get("refresh_token"),
	})
	if err != nil {
		kind := sync.KindOf(err)
		respondError(w, statusForKind(kind), string(kind), err.Error())
		return
	}

	resp := collectResponse{
		RunID:       result.RunID,
		Plays:       result.Plays,
		Artists:     result.Artists,
		Albums:      result.Albums,
		Tracks:      result.Tracks,
		NewPlayLogs: result.PlayLogs,
	}
	var updated string
	if result.UpdatedToken != nil {
		updated = result.UpdatedToken.AccessToken
		resp.UpdatedToken = &updated
	}

	// Tokens that never went through /callback have no account row.
	err = h.accounts.RecordSync(ctx, accessToken, updated, result.SyncedAt)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		logging.Warn().Err(err).Str("run_id", result.RunID).Msg("failed to record sync on account")
	}

	respondJSON(w, http.StatusOK, resp)
}

// statusForKind maps a sync failure to the HTTP status reported to the caller.
func statusForKind(kind sync.Kind) int {
	switch kind {
	case sync.KindAuth:
		return http.StatusUnauthorized
	case sync.KindRefresh:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "", "failed to generate state")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

type loginResponse struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Callback completes the OAuth flow, stores the user and account, and returns
// the token pair (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		respondError(w, http.StatusBadRequest, "", "missing state cookie")
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		respondError(w, http.StatusBadRequest, "", "state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		respondError(w, http.StatusBadRequest, "", fmt.Sprintf("spotify auth error: %s", errMsg))
		return
	}

	ctx := r.Context()
	token, err := h.auth.Token(ctx, state, r)
	if err != nil {
		logging.Warn().Err(err).Msg("token exchange failed")
		respondError(w, http.StatusBadGateway, "", "failed to get token")
		return
	}

	client := spotify.New(h.auth.Client(ctx, token))
	profile, err := client.CurrentUser(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("fetching current user failed")
		respondError(w, http.StatusBadGateway, "", "failed to get user info")
		return
	}

	user := &db.User{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
	}
	account := &db.Account{
		Provider:     db.ProviderSpotify,
		ProviderID:   profile.ID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if err := h.accounts.SaveLogin(ctx, user, account); err != nil {
		respondError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	logging.Info().Str("user_id", user.ID).Msg("user logged in")
	respondJSON(w, http.StatusOK, loginResponse{
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
}

// Healthz reports whether the database is reachable (GET /healthz).
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.status.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the row count of every listening-history table (GET /stats).
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.status.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Album returns an album with its artists, tracks and plays (GET /albums?title=).
func (h *Handlers) Album(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "", "title is required")
		return
	}
	album, err := h.history.AlbumHistory(r.Context(), title)
	if err != nil {
		respondLookupError(w, "album", err)
		return
	}
	respondJSON(w, http.StatusOK, album)
}

// Track returns a track with its plays (GET /tracks?title=).
func (h *Handlers) Track(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		respondError(w, http.StatusBadRequest, "", "title is required")
		return
	}
	track, err := h.history.TrackHistory(r.Context(), title)
	if err != nil {
		respondLookupError(w, "track", err)
		return
	}
	respondJSON(w, http.StatusOK, track)
}

// Me returns the profile and last sync time behind a stored access token
// (GET /me?access_token=).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	accessToken := r.URL.Query().Get("access_token")
	if accessToken == "" {
		respondError(w, http.StatusBadRequest, "", "access_token is required")
		return
	}
	profile, err := h.history.Profile(r.Context(), accessToken)
	if err != nil {
		respondLookupError(w, "account", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func respondLookupError(w http.ResponseWriter, entity string, err error) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "", entity+" not found")
		return
	}
	respondError(w, http.StatusInternalServerError, "", err.Error())
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
