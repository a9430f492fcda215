// Package spotify is the client for the parts of the Spotify Web API the
// listening-history sync consumes: recently played tracks and token refresh.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIBaseURL is the Spotify Web API root.
	DefaultAPIBaseURL = "https://api.spotify.com/v1/"

	// DefaultRecentLimit is the largest page Spotify returns for recently played.
	DefaultRecentLimit = 50

	recentlyPlayedPath = "me/player/recently-played"
	userAgent          = "go-spotify-listening-log/1.0"
)

// ErrNoRefreshToken is returned by RefreshAccessToken when no refresh token is held.
var ErrNoRefreshToken = errors.New("no refresh token provided")

// AuthError is a credential or API failure reported by Spotify, either as a
// non-2xx response or as an error object inside a 2xx body.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("spotify error %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is an AuthError with status 401.
func IsUnauthorized(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Status == http.StatusUnauthorized
}

// Config holds the client's credentials and endpoints. Zero values fall back to
// the public Spotify endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	TokenURL     string
	RecentLimit  int
	HTTPClient   *http.Client
}

// Client talks to the Spotify Web API on behalf of one caller-supplied token.
// It holds no credentials of its own beyond the application client id/secret.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	recentLimit int
	oauth       *oauth2.Config
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Spotify client from cfg.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	limit := cfg.RecentLimit
	if limit <= 0 || limit > DefaultRecentLimit {
		limit = DefaultRecentLimit
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		recentLimit: limit,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		breaker: newBreaker("spotify-api"),
	}
}

// FetchRecentPlays returns the caller's most recently played tracks. Any
// non-2xx response or embedded error object is returned as *AuthError.
func (c *Client) FetchRecentPlays(ctx context.Context, accessToken string) (*RecentPlays, error) {
	if accessToken == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "no access token provided"}
	}

	params := url.Values{"limit": {strconv.Itoa(c.recentLimit)}}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, recentlyPlayedPath+"?"+params.Encode(), accessToken)
	})
	if err != nil {
		return nil, err
	}

	var plays RecentPlays
	if err := json.Unmarshal(body, &plays); err != nil {
		return nil, fmt.Errorf("parsing recently played response: %w", err)
	}
	if plays.Error != nil {
		return nil, embeddedError(plays.Error, http.StatusOK)
	}
	if plays.Items == nil {
		plays.Items = []RecentPlay{}
	}
	return &plays, nil
}

// RefreshAccessToken exchanges refreshToken for a new access token using HTTP
// Basic client authentication and a form-encoded refresh_token grant.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			msg := retrieveErr.ErrorDescription
			if msg == "" {
				msg = retrieveErr.ErrorCode
			}
			if msg == "" {
				msg = http.StatusText(retrieveErr.Response.StatusCode)
			}
			return nil, &AuthError{Status: retrieveErr.Response.StatusCode, Message: msg}
		}
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	return token, nil
}

// get performs one authenticated GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env errorEnvelope
		if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
			return nil, embeddedError(env.Error, resp.StatusCode)
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &AuthError{Status: resp.StatusCode, Message: msg}
	}

	return body, nil
}

// embeddedError normalizes an error object, using httpStatus when the object carries none.
func embeddedError(apiErr *APIError, httpStatus int) *AuthError {
	status := apiErr.Status
	if status == 0 {
		status = httpStatus
	}
	return &AuthError{Status: status, Message: apiErr.Message}
}
