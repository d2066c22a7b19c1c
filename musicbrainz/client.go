package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/matching"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultHTTPTimeout bounds a single web service call
	DefaultHTTPTimeout = 10 * time.Second

	// SearchLimit is the number of recordings asked for per search
	SearchLimit = 25
)

// ErrNotFound is returned by the id lookups when MusicBrainz has no recording.
var ErrNotFound = errors.New("no musicbrainz recording found")

// Client wraps the MusicBrainz web service. It implements search.Backend.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ArtistCredit is one credited artist of a recording
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
}

// Release represents a MusicBrainz release
type Release struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Recording represents a MusicBrainz recording
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Score        int            `json:"score"`
	Length       int            `json:"length"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Releases     []Release      `json:"releases"`
	ISRCs        []string       `json:"isrcs"`
}

// SearchResponse represents the response from the recording search
type SearchResponse struct {
	Count      int         `json:"count"`
	Recordings []Recording `json:"recordings"`
}

// ISRCResponse represents the response from the ISRC lookup
type ISRCResponse struct {
	ISRC       string      `json:"isrc"`
	Recordings []Recording `json:"recordings"`
}

// StatusError is a non-success HTTP status from the web service
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("MusicBrainz %s API returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// NewClient creates a new MusicBrainz client. Requests are limited to one
// per second as the web service asks of anonymous clients.
func NewClient(cfg config.MusicBrainzConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = config.DefaultMusicBrainzURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Name identifies the backend in the link cache
func (c *Client) Name() string {
	return string(linkcache.BackendMusicBrainz)
}

// SetRateLimit changes how many requests per second are sent
func (c *Client) SetRateLimit(perSecond float64, burst int) {
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for %s request slot: %w", op, err)
	}

	params.Set("fmt", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}

	// Set required headers for MusicBrainz API
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// Search runs a recording search. Album text is left to the scorer since
// release titles vary too much between editions to narrow the query.
func (c *Client) Search(ctx context.Context, q matching.Query) ([]matching.Candidate, error) {
	query := recordingQuery(q.Artist, q.Title)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Add("query", query)
	params.Add("limit", fmt.Sprint(SearchLimit))

	var searchResp SearchResponse
	if err := c.get(ctx, "recording search", "/ws/2/recording", params, &searchResp); err != nil {
		return nil, err
	}

	candidates := make([]matching.Candidate, 0, len(searchResp.Recordings))
	for _, recording := range searchResp.Recordings {
		candidates = append(candidates, recording.Candidate())
	}
	return candidates, nil
}

// GetByID fetches one recording by MBID. An unknown or malformed id is not
// an error.
func (c *Client) GetByID(ctx context.Context, id string) (*matching.Candidate, error) {
	params := url.Values{}
	params.Set("inc", "artists releases")

	var recording Recording
	err := c.get(ctx, "recording lookup", "/ws/2/recording/"+url.PathEscape(id), params, &recording)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusBadRequest) {
			return nil, nil
		}
		return nil, err
	}

	candidate := recording.Candidate()
	return &candidate, nil
}

// GetMusicBrainzIDByISRC searches for a track by ISRC and returns the MusicBrainz recording ID
func (c *Client) GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error) {
	if isrc == "" {
		return "", fmt.Errorf("ISRC cannot be empty")
	}

	var isrcResp ISRCResponse
	err := c.get(ctx, "isrc lookup", "/ws/2/isrc/"+url.PathEscape(isrc), url.Values{}, &isrcResp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w for ISRC: %s", ErrNotFound, isrc)
		}
		return "", err
	}

	if len(isrcResp.Recordings) == 0 {
		return "", fmt.Errorf("%w for ISRC: %s", ErrNotFound, isrc)
	}

	return isrcResp.Recordings[0].ID, nil
}

// GetMusicBrainzIDByArtistAndTitle searches for a track by artist and title
func (c *Client) GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error) {
	if artist == "" || title == "" {
		return "", fmt.Errorf("artist and title cannot be empty")
	}

	candidates, err := c.Search(ctx, matching.Query{Artist: artist, Title: title})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for artist: %s, title: %s", ErrNotFound, artist, title)
	}

	return candidates[0].ID, nil
}

// Artist joins the credited artists the way MusicBrainz displays them
func (r Recording) Artist() string {
	var b strings.Builder
	for _, credit := range r.ArtistCredit {
		b.WriteString(credit.Name)
		b.WriteString(credit.JoinPhrase)
	}
	return b.String()
}

// Candidate converts the recording for scoring. The first release stands in
// for the album.
func (r Recording) Candidate() matching.Candidate {
	candidate := matching.Candidate{
		ID:     r.ID,
		Title:  r.Title,
		Artist: r.Artist(),
	}
	if len(r.Releases) > 0 {
		candidate.Album = r.Releases[0].Title
	}

	extra := map[string]any{}
	if r.Score > 0 {
		extra["score"] = r.Score
	}
	if r.Length > 0 {
		extra["length"] = r.Length
	}
	if len(r.ISRCs) > 0 {
		extra["isrcs"] = r.ISRCs
	}
	if len(extra) > 0 {
		candidate.Extra = extra
	}
	return candidate
}

// recordingQuery builds the Lucene query for a recording search
func recordingQuery(artist, title string) string {
	var terms []string
	if artist != "" {
		terms = append(terms, fmt.Sprintf("artist:\"%s\"", escapePhrase(artist)))
	}
	if title != "" {
		terms = append(terms, fmt.Sprintf("recording:\"%s\"", escapePhrase(title)))
	}
	return strings.Join(terms, " AND ")
}

func escapePhrase(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
