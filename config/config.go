package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Cache backends accepted in TRACKLINK_CACHE_BACKEND.
const (
	CacheBackendJSON   = "json"
	CacheBackendSQLite = "sqlite"
)

// DefaultMusicBrainzURL is the public MusicBrainz web service.
const DefaultMusicBrainzURL = "https://musicbrainz.org"

// Config holds all configuration values
type Config struct {
	Spotify     SpotifyConfig
	Plex        PlexConfig
	MusicBrainz MusicBrainzConfig
	Cache       CacheConfig

	// MatchingPath is the JSON matching configuration. A missing file means
	// the built-in defaults.
	MatchingPath string
}

// SpotifyConfig holds Spotify API configuration
type SpotifyConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	Username            string   // Spotify username to get all public playlists
	PlaylistIDs         []string // Spotify playlist IDs from comma-separated list
	ExcludedPlaylistIDs []string // Playlist IDs to exclude from processing
}

// PlexConfig holds Plex server configuration
type PlexConfig struct {
	URL              string
	Token            string
	LibrarySectionID int
	ServerID         string
}

// MusicBrainzConfig holds MusicBrainz web service configuration
type MusicBrainzConfig struct {
	URL       string
	UserAgent string
}

// CacheConfig selects where track links are stored
type CacheConfig struct {
	Path    string
	Backend string
}

// Load loads configuration in this order:
// 1. Defaults (redirect URI, MusicBrainz URL, XDG cache and config paths)
// 2. OS environment variables (only if they exist)
// 3. .env file (only if it exists and values exist)
// Credentials are not checked here; commands call the Require* methods for
// what they actually use.
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides loads configuration and applies CLI flag overrides last
func LoadWithOverrides(overrides map[string]string) (*Config, error) {
	config := &Config{}

	config.initializeDefaults()
	config.loadFromOSEnv()
	config.loadFromEnvFile()
	config.applyOverrides(overrides)
	config.resolveCachePath()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// initializeDefaults sets up the initial configuration with default values
func (c *Config) initializeDefaults() {
	c.Spotify = SpotifyConfig{
		RedirectURI: "http://localhost:8080/callback",
	}

	// ServerID stays empty and is auto-discovered.
	c.Plex = PlexConfig{}

	c.MusicBrainz = MusicBrainzConfig{
		URL:       DefaultMusicBrainzURL,
		UserAgent: "tracklink/dev ( https://github.com/garry/tracklink )",
	}

	c.Cache = CacheConfig{
		Backend: CacheBackendJSON,
	}

	c.MatchingPath = filepath.Join(xdg.ConfigHome, "tracklink", "matching.json")
}

// envKeys lists every key read from the environment, the .env file and overrides.
var envKeys = []string{
	"SPOTIFY_CLIENT_ID",
	"SPOTIFY_CLIENT_SECRET",
	"SPOTIFY_REDIRECT_URI",
	"SPOTIFY_USERNAME",
	"SPOTIFY_PLAYLIST_ID",
	"SPOTIFY_PLAYLIST_EXCLUDED_ID",
	"PLEX_URL",
	"PLEX_TOKEN",
	"PLEX_LIBRARY_SECTION_ID",
	"PLEX_SERVER_ID",
	"MUSICBRAINZ_URL",
	"MUSICBRAINZ_USER_AGENT",
	"TRACKLINK_CACHE_PATH",
	"TRACKLINK_CACHE_BACKEND",
	"TRACKLINK_MATCHING_CONFIG",
}

// loadFromOSEnv loads configuration from OS environment variables (only if they exist)
func (c *Config) loadFromOSEnv() {
	for _, key := range envKeys {
		if value := os.Getenv(key); value != "" {
			c.set(key, value)
		}
	}
}

// loadFromEnvFile loads configuration from .env file (only if it exists and values exist)
func (c *Config) loadFromEnvFile() {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil {
		return
	}
	c.loadFromOSEnv()
}

// applyOverrides applies CLI flag overrides to the configuration (only if they exist)
func (c *Config) applyOverrides(overrides map[string]string) {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		c.set(key, value)
	}
}

// set assigns one configuration key. Unknown keys are ignored.
func (c *Config) set(key, value string) {
	switch key {
	case "SPOTIFY_CLIENT_ID":
		c.Spotify.ClientID = value
	case "SPOTIFY_CLIENT_SECRET":
		c.Spotify.ClientSecret = value
	case "SPOTIFY_REDIRECT_URI":
		c.Spotify.RedirectURI = value
	case "SPOTIFY_USERNAME":
		c.Spotify.Username = value
	case "SPOTIFY_PLAYLIST_ID":
		c.Spotify.PlaylistIDs = parseCommaSeparatedList(value)
	case "SPOTIFY_PLAYLIST_EXCLUDED_ID":
		c.Spotify.ExcludedPlaylistIDs = parseCommaSeparatedList(value)
	case "PLEX_URL":
		c.Plex.URL = strings.TrimRight(value, "/")
	case "PLEX_TOKEN":
		c.Plex.Token = value
	case "PLEX_LIBRARY_SECTION_ID":
		if sectionID, err := parseLibrarySectionID(value); err == nil {
			c.Plex.LibrarySectionID = sectionID
		}
	case "PLEX_SERVER_ID":
		c.Plex.ServerID = value
	case "MUSICBRAINZ_URL":
		c.MusicBrainz.URL = strings.TrimRight(value, "/")
	case "MUSICBRAINZ_USER_AGENT":
		c.MusicBrainz.UserAgent = value
	case "TRACKLINK_CACHE_PATH":
		c.Cache.Path = value
	case "TRACKLINK_CACHE_BACKEND":
		c.Cache.Backend = strings.ToLower(value)
	case "TRACKLINK_MATCHING_CONFIG":
		c.MatchingPath = value
	}
}

// resolveCachePath picks the default cache file for the backend when none was given
func (c *Config) resolveCachePath() {
	if c.Cache.Path != "" {
		return
	}
	name := "links.json"
	if c.Cache.Backend == CacheBackendSQLite {
		name = "links.db"
	}
	c.Cache.Path = filepath.Join(xdg.CacheHome, "tracklink", name)
}

// parseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings
func parseCommaSeparatedList(input string) []string {
	if input == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(input, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

// parseLibrarySectionID parses the library section ID from string
func parseLibrarySectionID(value string) (int, error) {
	if value == "0" || value == "your_music_library_section_id" {
		return 0, nil
	}

	sectionID, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid section ID '%s': %w", value, err)
	}

	return sectionID, nil
}

// validate checks the values every command depends on
func (c *Config) validate() error {
	switch c.Cache.Backend {
	case CacheBackendJSON, CacheBackendSQLite:
	default:
		return fmt.Errorf("invalid TRACKLINK_CACHE_BACKEND '%s': expected %s or %s", c.Cache.Backend, CacheBackendJSON, CacheBackendSQLite)
	}
	return nil
}

// RequireSpotify checks the Spotify credentials are present
func (c *Config) RequireSpotify() error {
	var missingFields []string
	if c.Spotify.ClientID == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_SECRET")
	}
	return missing(missingFields)
}

// RequirePlex checks the Plex server settings are present
func (c *Config) RequirePlex() error {
	var missingFields []string
	if c.Plex.URL == "" {
		missingFields = append(missingFields, "PLEX_URL")
	}
	if c.Plex.Token == "" {
		missingFields = append(missingFields, "PLEX_TOKEN")
	}
	if c.Plex.LibrarySectionID == 0 {
		missingFields = append(missingFields, "PLEX_LIBRARY_SECTION_ID")
	}
	return missing(missingFields)
}

// RequireSync checks everything a playlist sync needs
func (c *Config) RequireSync() error {
	var missingFields []string
	if err := c.RequireSpotify(); err != nil {
		missingFields = append(missingFields, err.(*MissingError).Fields...)
	}
	if err := c.RequirePlex(); err != nil {
		missingFields = append(missingFields, err.(*MissingError).Fields...)
	}
	if c.Spotify.Username == "" && len(c.Spotify.PlaylistIDs) == 0 {
		missingFields = append(missingFields, "SPOTIFY_USERNAME or SPOTIFY_PLAYLIST_ID")
	}
	return missing(missingFields)
}

// MissingError lists required configuration values that were not set
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration values:\n%s\n\nSet these values via environment variables, .env file, or CLI flags", strings.Join(e.Fields, "\n"))
}

func missing(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return &MissingError{Fields: fields}
}
