// Package catalog proxies track search to Spotify and YouTube so that
// clients never hold third-party credentials. Results are forwarded as
// opaque JSON.
package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"anon_messenger/internal/utils/log"
)

var (
	ErrUnknownSource  = errors.New("catalog: unknown search source")
	ErrNotConfigured  = errors.New("catalog: source credentials not configured")
	ErrUpstreamFailed = errors.New("catalog: upstream request failed")
)

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifySearchURL = "https://api.spotify.com/v1/search"
	youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

	// refresh the cached token a minute before Spotify expires it
	tokenSlack = time.Minute
)

type (
	Service struct {
		client *http.Client

		spotifyClientID     string
		spotifyClientSecret string
		youtubeAPIKey       string

		mu          sync.Mutex
		token       string
		tokenExpiry time.Time

		now func() time.Time
	}
)

func NewService(spotifyClientID, spotifyClientSecret, youtubeAPIKey string) *Service {
	return &Service{
		client:              &http.Client{Timeout: 10 * time.Second},
		spotifyClientID:     spotifyClientID,
		spotifyClientSecret: spotifyClientSecret,
		youtubeAPIKey:       youtubeAPIKey,
		now:                 time.Now,
	}
}

// Search proxies query to the named source ("spotify" or "youtube") and
// returns the upstream response body verbatim.
func (s *Service) Search(ctx context.Context, query, source string) ([]byte, error) {
	switch strings.ToLower(source) {
	case "spotify":
		return s.searchSpotify(ctx, query)
	case "youtube":
		return s.searchYouTube(ctx, query)
	default:
		return nil, ErrUnknownSource
	}
}

func (s *Service) searchSpotify(ctx context.Context, query string) ([]byte, error) {
	token, err := s.spotifyToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":     []string{query},
		"type":  []string{"track"},
		"limit": []string{"20"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifySearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return s.do(req)
}

func (s *Service) searchYouTube(ctx context.Context, query string) ([]byte, error) {
	if s.youtubeAPIKey == "" {
		return nil, ErrNotConfigured
	}

	params := url.Values{
		"part":       []string{"snippet"},
		"q":          []string{query},
		"type":       []string{"video"},
		"maxResults": []string{"20"},
		"key":        []string{s.youtubeAPIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	return s.do(req)
}

// spotifyToken returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (s *Service) spotifyToken(ctx context.Context) (string, error) {
	if s.spotifyClientID == "" || s.spotifyClientSecret == "" {
		return "", ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.tokenExpiry.Add(-tokenSlack)) {
		return s.token, nil
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyTokenURL, body)
	if err != nil {
		return "", err
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(s.spotifyClientID + ":" + s.spotifyClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	data, err := s.do(req)
	if err != nil {
		return "", err
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty token", ErrUpstreamFailed)
	}

	s.token = tr.AccessToken
	s.tokenExpiry = s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	log.Info("spotify token refreshed")
	return s.token, nil
}

func (s *Service) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamFailed, resp.StatusCode)
	}
	return data, nil
}
