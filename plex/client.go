package plex

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/matching"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Constants for Plex API
const (
	// Plex API constants
	PlexMusicTrackType = "10"

	// HTTP timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// Search parameters
	SearchLimit = 100

	// Requests per second sent to the server, with a small burst
	DefaultRequestRate  = 10
	DefaultRequestBurst = 5

	// Delay before the single retry of a playlist mutation
	DefaultRetryDelay = 2 * time.Second
)

// Client talks to one Plex server and music library section. It implements
// search.Backend.
type Client struct {
	baseURL    string
	token      string
	sectionID  int
	serverID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	debug      bool
}

// PlexTrack represents a track from Plex
type PlexTrack struct {
	ID          string      `xml:"ratingKey,attr"`
	Title       string      `xml:"title,attr"`
	Artist      string      `xml:"grandparentTitle,attr"`
	TrackArtist string      `xml:"originalTitle,attr"`
	Album       string      `xml:"parentTitle,attr"`
	Duration    int         `xml:"duration,attr"`
	AddedAt     string      `xml:"addedAt,attr"`
	UpdatedAt   string      `xml:"updatedAt,attr"`
	Media       []PlexMedia `xml:"Media"`
}

// PlexMedia is one media version of a track
type PlexMedia struct {
	Parts []struct {
		File string `xml:"file,attr"`
	} `xml:"Part"`
}

// File returns the path of the first media part, if any
func (t PlexTrack) File() string {
	for _, m := range t.Media {
		for _, p := range m.Parts {
			if p.File != "" {
				return p.File
			}
		}
	}
	return ""
}

// PlexPlaylist represents a Plex playlist
type PlexPlaylist struct {
	ID          string `xml:"ratingKey,attr" json:"ratingKey"`
	Title       string `xml:"title,attr" json:"title"`
	Description string `xml:"summary,attr" json:"summary"`
	TrackCount  int    `xml:"leafCount,attr" json:"leafCount"`
	CreatedAt   string `xml:"createdAt,attr" json:"createdAt"`
	UpdatedAt   string `xml:"updatedAt,attr" json:"updatedAt"`
}

// PlexPlaylistJSON is used for JSON responses where timestamps are numbers
type PlexPlaylistJSON struct {
	ID          string      `json:"ratingKey"`
	Title       string      `json:"title"`
	Description string      `json:"summary"`
	TrackCount  int         `json:"leafCount"`
	CreatedAt   interface{} `json:"createdAt"` // Can be string or number
	UpdatedAt   interface{} `json:"updatedAt"` // Can be string or number
}

// PlexResponse represents the XML response from Plex API
type PlexResponse struct {
	XMLName   xml.Name       `xml:"MediaContainer"`
	Tracks    []PlexTrack    `xml:"Track"`
	Playlists []PlexPlaylist `xml:"Playlist"`
}

// PlexServerInfo represents server information from Plex API
type PlexServerInfo struct {
	XMLName           xml.Name `xml:"MediaContainer"`
	FriendlyName      string   `xml:"friendlyName,attr"`
	MachineIdentifier string   `xml:"machineIdentifier,attr"`
	Version           string   `xml:"version,attr"`
	Platform          string   `xml:"platform,attr"`
	PlatformVersion   string   `xml:"platformVersion,attr"`
}

// StatusError is a non-success HTTP status from the server
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("plex %s API returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("plex %s API returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// NewClient creates a new Plex client
func NewClient(cfg *config.Config) *Client {
	return NewClientWithTLSConfig(cfg, false)
}

// NewClientWithTLSConfig creates a new Plex client with custom TLS configuration
func NewClientWithTLSConfig(cfg *config.Config, skipTLSVerify bool) *Client {
	httpClient := &http.Client{Timeout: DefaultHTTPTimeout}

	if skipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL:    cfg.Plex.URL,
		token:      cfg.Plex.Token,
		sectionID:  cfg.Plex.LibrarySectionID,
		serverID:   cfg.Plex.ServerID,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestRate), DefaultRequestBurst),
		retryDelay: DefaultRetryDelay,
	}
}

// Name identifies the backend in the link cache
func (c *Client) Name() string {
	return string(linkcache.BackendPlex)
}

// SetServerID updates the server ID in the client
func (c *Client) SetServerID(serverID string) {
	c.serverID = serverID
}

// SetDebug enables or disables debug mode
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// SetRateLimit changes how many requests per second are sent
func (c *Client) SetRateLimit(perSecond float64, burst int) {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// SetRetryDelay changes the pause before a playlist mutation is retried
func (c *Client) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

// do sends one request and returns the body of a successful response.
// okStatuses lists the accepted status codes; 200 is used when none are given.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, accept string, okStatuses ...int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for %s request slot: %w", op, err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("X-Plex-Token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Plex-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if len(okStatuses) == 0 {
		okStatuses = []int{http.StatusOK}
	}
	for _, status := range okStatuses {
		if resp.StatusCode == status {
			return body, nil
		}
	}
	statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusNotFound {
		statusErr.Body = string(body)
	}
	return nil, statusErr
}

// GetServerInfo retrieves server information from the Plex API
func (c *Client) GetServerInfo(ctx context.Context) (*PlexServerInfo, error) {
	body, err := c.do(ctx, "server info", http.MethodGet, "/", nil, "application/xml")
	if err != nil {
		return nil, err
	}

	var serverInfo PlexServerInfo
	if err := xml.Unmarshal(body, &serverInfo); err != nil {
		return nil, fmt.Errorf("failed to decode server info response: %w", err)
	}

	return &serverInfo, nil
}

// GetServerID retrieves the server ID (machine identifier) from the Plex API
func (c *Client) GetServerID(ctx context.Context) (string, error) {
	serverInfo, err := c.GetServerInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get server info: %w", err)
	}

	if serverInfo.MachineIdentifier == "" {
		return "", fmt.Errorf("server info response does not contain machine identifier")
	}

	return serverInfo.MachineIdentifier, nil
}

// EnsureServerID discovers the server ID when none was configured. Playlist
// item URIs need it.
func (c *Client) EnsureServerID(ctx context.Context) (string, error) {
	if c.serverID != "" {
		return c.serverID, nil
	}
	serverID, err := c.GetServerID(ctx)
	if err != nil {
		return "", err
	}
	c.serverID = serverID
	log.Printf("🔍 Discovered Plex server ID: %s", serverID)
	return serverID, nil
}

// Search queries the music library by title. Artist and album are left to
// the scorer because Plex's track search only matches on the title.
func (c *Client) Search(ctx context.Context, q matching.Query) ([]matching.Candidate, error) {
	query := q.Title
	if query == "" {
		query = q.Artist
	}
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("type", PlexMusicTrackType) // Type 10 = music tracks
	params.Add("X-Plex-Container-Start", "0")
	params.Add("X-Plex-Container-Size", strconv.Itoa(SearchLimit))

	path := fmt.Sprintf("/library/sections/%d/search", c.sectionID)
	body, err := c.do(ctx, "search", http.MethodGet, path, params, "application/xml")
	if err != nil {
		return nil, err
	}

	var searchResp PlexResponse
	if err := xml.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	c.debugLog("🔍 Search: '%s' returned %d tracks", query, len(searchResp.Tracks))
	candidates := make([]matching.Candidate, 0, len(searchResp.Tracks))
	for i, track := range searchResp.Tracks {
		c.debugLog("  Result %d: '%s' by '%s' (ID: %s)", i+1, track.Title, track.Artist, track.ID)
		candidates = append(candidates, track.Candidate())
	}
	return candidates, nil
}

// GetByID fetches one track. An unknown id is not an error.
func (c *Client) GetByID(ctx context.Context, id string) (*matching.Candidate, error) {
	body, err := c.do(ctx, "metadata", http.MethodGet, "/library/metadata/"+url.PathEscape(id), nil, "application/xml")
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var metaResp PlexResponse
	if err := xml.Unmarshal(body, &metaResp); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if len(metaResp.Tracks) == 0 {
		return nil, nil
	}

	candidate := metaResp.Tracks[0].Candidate()
	return &candidate, nil
}

// Candidate converts the track for scoring. The per-track artist wins over
// the album artist when Plex has one, which matters for compilations.
func (t PlexTrack) Candidate() matching.Candidate {
	artist := t.Artist
	if t.TrackArtist != "" {
		artist = t.TrackArtist
	}

	extra := map[string]any{}
	if file := t.File(); file != "" {
		extra["file"] = file
	}
	if t.Duration > 0 {
		extra["duration"] = t.Duration
	}
	if t.TrackArtist != "" && t.TrackArtist != t.Artist {
		extra["albumArtist"] = t.Artist
	}
	if len(extra) == 0 {
		extra = nil
	}

	return matching.Candidate{
		ID:     t.ID,
		Title:  t.Title,
		Artist: artist,
		Album:  t.Album,
		Extra:  extra,
	}
}

// debugLog logs a message only if debug mode is enabled
func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf(format, args...)
	}
}
