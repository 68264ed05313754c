// Package spotify implements a minimal Spotify Web API client for the
// currently-playing endpoint. Authentication uses the OAuth2 refresh-token
// flow: the agent is headless, so the one-time authorization code dance is
// done elsewhere and only the refresh token is configured.
package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultAPIBase   = "https://api.spotify.com"
	defaultTokenURL  = "https://accounts.spotify.com/api/token"
	requestTimeout   = 10 * time.Second
	tokenExpiryGrace = 30 * time.Second
)

// Track describes the currently playing item.
type Track struct {
	ID          string
	Name        string
	Artist      string
	Album       string
	AlbumArtURL string
	IsPlaying   bool
	ProgressMS  int
	DurationMS  int
}

// RemainingMS returns how much of the track is left.
func (t *Track) RemainingMS() int {
	if t.DurationMS <= t.ProgressMS {
		return 0
	}
	return t.DurationMS - t.ProgressMS
}

// RateLimitError indicates the API returned HTTP 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Client talks to the Spotify Web API.
type Client struct {
	http     *http.Client
	cfg      config.SpotifyConfig
	logger   *zap.Logger
	apiBase  string
	tokenURL string

	accessToken string
	tokenExpiry time.Time
}

// New creates a Client with the given credentials.
func New(cfg config.SpotifyConfig, logger *zap.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: requestTimeout},
		cfg:      cfg,
		logger:   logger,
		apiBase:  defaultAPIBase,
		tokenURL: defaultTokenURL,
	}
}

// tokenResponse is the accounts service token grant payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// refreshToken exchanges the refresh token for a fresh access token.
func (c *Client) refreshToken(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.cfg.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("Refreshed access token",
		zap.Duration("valid_for", time.Until(c.tokenExpiry)))
	return nil
}

// ensureToken refreshes the access token when missing or about to expire.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.accessToken != "" && time.Until(c.tokenExpiry) > tokenExpiryGrace {
		return nil
	}
	return c.refreshToken(ctx)
}

// playingResponse mirrors the fields of the currently-playing payload the
// agent cares about.
type playingResponse struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMS int  `json:"progress_ms"`
	Item       *struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		DurationMS int    `json:"duration_ms"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// CurrentlyPlaying returns the playing track, or nil when nothing is
// playing (the API answers 204 in that case).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*Track, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBase+"/v1/me/player/currently-playing", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currently-playing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Token revoked or expired early. Force a refresh on the next call.
		c.accessToken = ""
		return nil, fmt.Errorf("unauthorized (token expired)")
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := 5 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retry = time.Duration(secs) * time.Second
			}
		}
		return nil, &RateLimitError{RetryAfter: retry}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var pr playingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if pr.Item == nil {
		return nil, nil
	}

	names := make([]string, 0, len(pr.Item.Artists))
	for _, a := range pr.Item.Artists {
		names = append(names, a.Name)
	}

	track := &Track{
		ID:         pr.Item.ID,
		Name:       pr.Item.Name,
		Artist:     strings.Join(names, ", "),
		Album:      pr.Item.Album.Name,
		IsPlaying:  pr.IsPlaying,
		ProgressMS: pr.ProgressMS,
		DurationMS: pr.Item.DurationMS,
	}
	if len(pr.Item.Album.Images) > 0 {
		track.AlbumArtURL = pr.Item.Album.Images[0].URL
	}
	return track, nil
}

// NextPollIn picks the wait before the next poll: short near a track
// boundary so the change is caught quickly, relaxed while idle.
func (c *Client) NextPollIn(track *Track) time.Duration {
	if track == nil || !track.IsPlaying {
		return c.cfg.PollIdle.Duration
	}
	remaining := time.Duration(track.RemainingMS()) * time.Millisecond
	if remaining > 0 && remaining < c.cfg.EndingWindow.Duration {
		return c.cfg.PollEnding.Duration
	}
	return c.cfg.PollInterval.Duration
}
