package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
)

const playingPayload = `{
	"is_playing": true,
	"progress_ms": 61000,
	"item": {
		"id": "track123",
		"name": "Weightless",
		"duration_ms": 480000,
		"artists": [{"name": "Marconi Union"}, {"name": "Airstream"}],
		"album": {
			"name": "Ambient Transmissions",
			"images": [{"url": "https://img.example/cover.jpg"}]
		}
	}
}`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Spotify
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	cfg.RefreshToken = "refresh"

	c := New(cfg, zap.NewNop())
	c.apiBase = srv.URL
	c.tokenURL = srv.URL + "/api/token"
	return c
}

func TestCurrentlyPlaying_ParsesTrack(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "id" || pass != "secret" {
			t.Errorf("missing or wrong basic auth: %q %q", user, pass)
		}
		w.Write([]byte(`{"access_token":"at","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(playingPayload))
	})

	c := testClient(t, mux)
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if track == nil {
		t.Fatal("track is nil")
	}
	if track.ID != "track123" {
		t.Errorf("ID = %q", track.ID)
	}
	if track.Artist != "Marconi Union, Airstream" {
		t.Errorf("Artist = %q", track.Artist)
	}
	if track.AlbumArtURL != "https://img.example/cover.jpg" {
		t.Errorf("AlbumArtURL = %q", track.AlbumArtURL)
	}
	if !track.IsPlaying {
		t.Error("IsPlaying = false")
	}
	if track.RemainingMS() != 419000 {
		t.Errorf("RemainingMS = %d", track.RemainingMS())
	}
}

func TestCurrentlyPlaying_NothingPlaying(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c := testClient(t, mux)
	track, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if track != nil {
		t.Errorf("track = %+v, want nil", track)
	}
}

func TestCurrentlyPlaying_RateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := testClient(t, mux)
	_, err := c.CurrentlyPlaying(context.Background())
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rle.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v", rle.RetryAfter)
	}
}

func TestCurrentlyPlaying_TokenReusedUntilExpiry(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Write([]byte(`{"access_token":"at","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c := testClient(t, mux)
	for i := 0; i < 3; i++ {
		if _, err := c.CurrentlyPlaying(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestNextPollIn(t *testing.T) {
	cfg := config.DefaultConfig().Spotify
	c := New(cfg, zap.NewNop())

	tests := []struct {
		name  string
		track *Track
		want  time.Duration
	}{
		{"nothing playing", nil, cfg.PollIdle.Duration},
		{"paused", &Track{IsPlaying: false}, cfg.PollIdle.Duration},
		{"mid track", &Track{IsPlaying: true, ProgressMS: 1000, DurationMS: 300000}, cfg.PollInterval.Duration},
		{"track ending", &Track{IsPlaying: true, ProgressMS: 295000, DurationMS: 300000}, cfg.PollEnding.Duration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.NextPollIn(tt.track); got != tt.want {
				t.Errorf("NextPollIn = %v, want %v", got, tt.want)
			}
		})
	}
}
