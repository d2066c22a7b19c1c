package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/musicbrainz"
	"github.com/garry/tracklink/plex"
	"github.com/garry/tracklink/search"
)

// app holds what every matching command shares: configuration, the
// reloadable matching rules and the link cache.
type app struct {
	config   *config.Config
	matching *config.MatchingSource
	cache    *linkcache.Cache

	debug     bool
	useCache  bool
	verifyTLS bool
	closers   []func() error
}

func flagString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func flagBool(cmd *cobra.Command, name string) bool {
	value, _ := cmd.Flags().GetBool(name)
	return value
}

// loadConfig applies the persistent flags, then extra, over the environment
func loadConfig(cmd *cobra.Command, extra map[string]string) (*config.Config, error) {
	overrides := map[string]string{
		"TRACKLINK_MATCHING_CONFIG": flagString(cmd, "matching-config"),
		"TRACKLINK_CACHE_PATH":      flagString(cmd, "cache"),
		"TRACKLINK_CACHE_BACKEND":   flagString(cmd, "cache-backend"),
	}
	for key, value := range extra {
		overrides[key] = value
	}

	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration, the matching rules and the link cache
func newApp(cmd *cobra.Command, overrides map[string]string) (*app, error) {
	cfg, err := loadConfig(cmd, overrides)
	if err != nil {
		return nil, err
	}

	source, err := config.NewMatchingSource(cfg.MatchingPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load matching configuration: %w", err)
	}

	a := &app{
		config:    cfg,
		matching:  source,
		debug:     flagBool(cmd, "debug"),
		useCache:  !flagBool(cmd, "no-cache"),
		verifyTLS: flagBool(cmd, "verify-tls"),
	}
	if err := a.openCache(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openCache() error {
	switch a.config.Cache.Backend {
	case config.CacheBackendSQLite:
		store, err := linkcache.NewSQLiteStore(a.config.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open link cache: %w", err)
		}
		a.cache = linkcache.New(store)
		a.closers = append(a.closers, store.Close)
	default:
		a.cache = linkcache.New(linkcache.NewFileStore(a.config.Cache.Path))
	}
	if a.debug {
		log.Printf("Using %s link cache at %s", a.config.Cache.Backend, a.config.Cache.Path)
	}
	return nil
}

// Close releases the cache store
func (a *app) Close() error {
	var errs []error
	for _, closer := range a.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}

// plexClient creates the Plex client with the configured credentials
func (a *app) plexClient() (*plex.Client, error) {
	if err := a.config.RequirePlex(); err != nil {
		return nil, err
	}
	client := plex.NewClientWithTLSConfig(a.config, !a.verifyTLS)
	client.SetDebug(a.debug)
	return client, nil
}

// backend creates the adapter for a catalog name
func (a *app) backend(name string) (search.Backend, error) {
	tag, err := linkcache.ParseBackend(name)
	if err != nil {
		return nil, err
	}
	switch tag {
	case linkcache.BackendPlex:
		client, err := a.plexClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case linkcache.BackendMusicBrainz:
		return musicbrainz.NewClient(a.config.MusicBrainz), nil
	default:
		return nil, fmt.Errorf("no adapter for backend %q: expected %s or %s", name, linkcache.BackendPlex, linkcache.BackendMusicBrainz)
	}
}

// orchestrator wires a backend to the cache with the current matching rules
func (a *app) orchestrator(backend search.Backend) (*search.Orchestrator, error) {
	return search.New(backend, a.cache, a.matching.Current().SearchOptions(a.useCache, a.debug))
}

// reload picks up matching configuration edits. A broken file keeps the
// previous rules active.
func (a *app) reload(orch *search.Orchestrator) {
	changed, err := a.matching.Reload()
	if err != nil || !changed {
		return
	}
	if err := orch.SetOptions(a.matching.Current().SearchOptions(a.useCache, a.debug)); err != nil {
		log.Printf("⚠️  Warning: keeping previous matching options: %v", err)
	}
}

// cacheMusicBrainzIDs stores looked up MusicBrainz ids as track links
func (a *app) cacheMusicBrainzIDs(ctx context.Context, ids map[string]string) {
	if len(ids) == 0 {
		return
	}
	spotifyIDs := make([]string, 0, len(ids))
	for spotifyID := range ids {
		spotifyIDs = append(spotifyIDs, spotifyID)
	}
	sort.Strings(spotifyIDs)

	entries := make([]linkcache.Entry, 0, len(ids))
	for _, spotifyID := range spotifyIDs {
		entries = append(entries, linkcache.Entry{SpotifyID: spotifyID, IDs: []string{ids[spotifyID]}})
	}
	if err := a.cache.Add(ctx, linkcache.BackendMusicBrainz, entries, ""); err != nil {
		log.Printf("⚠️  Warning: failed to cache MusicBrainz ids: %v", err)
	}
}
