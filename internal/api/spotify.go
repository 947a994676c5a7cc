package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/spotivault/spotivault/internal/errors"
)

const (
	spotifyAuthURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL  = "https://api.spotify.com/v1"
)

// PlaylistMetadata is the display metadata for a playlist
type PlaylistMetadata struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TracksTotal int
	URL         string
	Images      []string
}

// TrackInfo is a single track as reported by the metadata API
type TrackInfo struct {
	Name    string
	Artists []string
}

// SpotifyClient fetches playlist metadata using the client credentials flow
type SpotifyClient struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	accessToken  string
	tokenExpiry  time.Time
	rateLimiter  *rate.Limiter
	authURL      string
	apiURL       string
	mu           sync.RWMutex
}

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type spotifyTrack struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

type spotifyPlaylistItem struct {
	Track *spotifyTrack `json:"track"`
}

type spotifyPlaylistTracks struct {
	Total int                   `json:"total"`
	Items []spotifyPlaylistItem `json:"items"`
	Next  string                `json:"next"`
}

type spotifyPlaylist struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
	Owner        spotifyUser           `json:"owner"`
	Tracks       spotifyPlaylistTracks `json:"tracks"`
	Images       []spotifyImage        `json:"images"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// NewSpotifyClient creates a new Spotify API client
func NewSpotifyClient(clientID, clientSecret string, timeout time.Duration) *SpotifyClient {
	return &SpotifyClient{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		clientID:     clientID,
		clientSecret: clientSecret,
		rateLimiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 10), // 10 requests per second
		authURL:      spotifyAuthURL,
		apiURL:       spotifyAPIURL,
	}
}

// ExtractPlaylistID extracts the playlist identifier from a Spotify URL.
// Supported formats:
//
//	https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M
//	spotify:playlist:37i9dQZF1DXcBWIGoYBM5M
func ExtractPlaylistID(playlistURL string) (string, error) {
	if strings.HasPrefix(playlistURL, "spotify:playlist:") {
		id := strings.TrimPrefix(playlistURL, "spotify:playlist:")
		if id == "" {
			return "", apperrors.NewValidationError("empty playlist id in URI")
		}
		return id, nil
	}

	if strings.Contains(playlistURL, "open.spotify.com/playlist/") {
		parts := strings.Split(playlistURL, "/playlist/")
		if len(parts) != 2 || parts[1] == "" {
			return "", apperrors.NewValidationError("invalid Spotify playlist URL format")
		}
		id := strings.Split(parts[1], "?")[0]
		id = strings.TrimSuffix(id, "/")
		if id == "" {
			return "", apperrors.NewValidationError("invalid Spotify playlist URL format")
		}
		return id, nil
	}

	return "", apperrors.NewValidationError("unsupported Spotify URL format")
}

// GetPlaylistMetadata retrieves the display metadata for a playlist
func (c *SpotifyClient) GetPlaylistMetadata(ctx context.Context, playlistID string) (*PlaylistMetadata, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	params := url.Values{}
	params.Set("fields", "id,name,description,owner(id,display_name),tracks(total),images,external_urls")

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var playlist spotifyPlaylist
	if err := json.NewDecoder(resp.Body).Decode(&playlist); err != nil {
		return nil, apperrors.NewAPIError("failed to decode playlist metadata", err)
	}

	meta := &PlaylistMetadata{
		ID:          playlist.ID,
		Name:        playlist.Name,
		Description: playlist.Description,
		Owner:       playlist.Owner.DisplayName,
		TracksTotal: playlist.Tracks.Total,
		URL:         playlist.ExternalURLs.Spotify,
	}
	if meta.Owner == "" {
		meta.Owner = playlist.Owner.ID
	}
	for _, img := range playlist.Images {
		meta.Images = append(meta.Images, img.URL)
	}

	return meta, nil
}

// GetPlaylistTracks retrieves the full ordered track list, following pagination
func (c *SpotifyClient) GetPlaylistTracks(ctx context.Context, playlistID string) ([]TrackInfo, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	params := url.Values{}
	params.Set("fields", "total,items(track(name,artists(name))),next")
	params.Set("limit", "100")

	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}

	var page spotifyPlaylistTracks
	decodeErr := json.NewDecoder(resp.Body).Decode(&page)
	resp.Body.Close()
	if decodeErr != nil {
		return nil, apperrors.NewAPIError("failed to decode playlist tracks", decodeErr)
	}

	tracks := collectTracks(nil, page.Items)

	for page.Next != "" {
		next, err := c.getTracksPage(ctx, page.Next)
		if err != nil {
			return nil, err
		}
		tracks = collectTracks(tracks, next.Items)
		page.Next = next.Next
	}

	return tracks, nil
}

// collectTracks appends page items, skipping removed tracks (null track objects)
func collectTracks(dst []TrackInfo, items []spotifyPlaylistItem) []TrackInfo {
	for _, item := range items {
		if item.Track == nil {
			continue
		}
		info := TrackInfo{Name: item.Track.Name}
		for _, a := range item.Track.Artists {
			info.Artists = append(info.Artists, a.Name)
		}
		dst = append(dst, info)
	}
	return dst
}

// getTracksPage fetches a page of playlist tracks from a pagination URL
func (c *SpotifyClient) getTracksPage(ctx context.Context, pageURL string) (*spotifyPlaylistTracks, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewAPIError("rate limiter wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.NewAPIError("failed to build tracks page request", err)
	}

	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewAPIError("tracks page request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewAPIError(
			fmt.Sprintf("tracks page request failed with status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var page spotifyPlaylistTracks
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, apperrors.NewAPIError("failed to decode tracks page", err)
	}

	return &page, nil
}

// Authenticate authenticates with Spotify using the Client Credentials flow
func (c *SpotifyClient) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clientID == "" || c.clientSecret == "" {
		return apperrors.NewValidationError("Spotify client ID and secret are required")
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return apperrors.NewAPIError("failed to build auth request", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewAPIError("authentication request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.NewAPIError(
			fmt.Sprintf("authentication failed with status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apperrors.NewAPIError("failed to decode auth response", err)
	}

	c.accessToken = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)

	return nil
}

// ensureAuthenticated refreshes the token when it is near expiry
func (c *SpotifyClient) ensureAuthenticated(ctx context.Context) error {
	c.mu.RLock()
	needsRefresh := time.Now().After(c.tokenExpiry.Add(-5 * time.Minute))
	c.mu.RUnlock()

	if needsRefresh {
		return c.Authenticate(ctx)
	}
	return nil
}

// doRequest performs a rate-limited, authenticated API request
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Response, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, apperrors.NewAPIError("rate limiter wait failed", err)
	}

	apiURL := c.apiURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return nil, apperrors.NewAPIError("failed to build API request", err)
	}

	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewAPIError("API request failed", err)
	}

	// Expired token: refresh once and retry
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		return c.doRequest(ctx, method, endpoint, params)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, apperrors.NewAPIError(fmt.Sprintf("playlist not found: %s", endpoint), nil)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apperrors.NewAPIError(
			fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, string(body)), nil)
	}

	return resp, nil
}
