package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/textproc"
)

const (
	// DefaultAdapterTimeout bounds every backend call.
	DefaultAdapterTimeout = 30 * time.Second

	// ScoreNormalized scores candidates against the query that was sent.
	ScoreNormalized = "normalized"
	// ScoreRaw scores candidates against the track's original fields.
	ScoreRaw = "raw"

	// ReasonCached is the reason reported for results resolved from the cache.
	ReasonCached = "cached"
)

// Options drive one orchestrator. Scorer and Filter are required.
type Options struct {
	Approaches []textproc.Approach
	Vocabulary textproc.Config
	Scorer     *matching.Scorer
	Filter     *matching.Filter

	// MinMatches stops the attempt loop once this many candidates were
	// accepted. Zero means one.
	MinMatches int
	// ScoreAgainst is ScoreNormalized (default) or ScoreRaw.
	ScoreAgainst string
	// UseCache enables the cache fast path. Results are written to the cache
	// regardless.
	UseCache       bool
	AdapterTimeout time.Duration
	Debug          bool
}

func (o Options) validate() error {
	if o.Scorer == nil {
		return errors.New("search options: scorer is required")
	}
	if o.Filter == nil {
		return errors.New("search options: filter is required")
	}
	switch o.ScoreAgainst {
	case "", ScoreNormalized, ScoreRaw:
	default:
		return fmt.Errorf("search options: unknown scoreAgainst %q", o.ScoreAgainst)
	}
	if o.MinMatches < 0 {
		return fmt.Errorf("search options: minMatches must not be negative")
	}
	return nil
}

// Matched is an accepted candidate with the scores that got it accepted.
type Matched struct {
	matching.Candidate
	Scores matching.Scores `json:"matches"`
	Reason string          `json:"reason"`
}

// Response is the outcome for one source track. An empty Result with
// populated Queries means the track was searched and nothing matched.
type Response struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Artist  string           `json:"artist"`
	Album   string           `json:"album"`
	Queries []matching.Query `json:"queries"`
	Result  []Matched        `json:"result"`
	Cached  bool             `json:"cached"`
}

// Found reports whether anything was accepted.
func (r *Response) Found() bool {
	return r != nil && len(r.Result) > 0
}

// Orchestrator matches source tracks against one backend.
type Orchestrator struct {
	backend Backend
	tag     linkcache.Backend
	cache   *linkcache.Cache

	mu   sync.RWMutex
	opts Options
}

// New returns an orchestrator for backend. cache may be nil, which disables
// both the fast path and the cache update.
func New(backend Backend, cache *linkcache.Cache, opts Options) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	tag, err := linkcache.ParseBackend(backend.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return &Orchestrator{backend: backend, tag: tag, cache: cache, opts: opts}, nil
}

// SetOptions swaps the options used by subsequent searches. Searches already
// running keep the options they started with.
func (o *Orchestrator) SetOptions(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	o.mu.Lock()
	o.opts = opts
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) options() Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.opts
}

func (o *Orchestrator) debugLog(opts Options, format string, args ...interface{}) {
	if opts.Debug {
		log.Printf(format, args...)
	}
}

func newResponse(track matching.SourceTrack) *Response {
	return &Response{
		ID:      track.ID,
		Title:   track.Title,
		Artist:  track.PrimaryArtist(),
		Album:   track.Album,
		Queries: []matching.Query{},
		Result:  []Matched{},
	}
}

// Search runs the full state machine for one track. An AdapterError aborts
// the track and leaves the cache untouched.
func (o *Orchestrator) Search(ctx context.Context, track matching.SourceTrack) (*Response, error) {
	opts := o.options()
	resp := newResponse(track)

	if opts.UseCache && o.cache != nil {
		cached, err := o.fromCache(ctx, opts, track)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			resp.Result = cached
			resp.Cached = true
			return resp, nil
		}
	}

	minMatches := opts.MinMatches
	if minMatches == 0 {
		minMatches = 1
	}

	accepted := make(map[string]bool)
	for _, q := range matching.Plan(track, opts.Approaches, opts.Vocabulary) {
		if attempted(resp.Queries, q) {
			o.debugLog(opts, "🔍 Search: skipping approach %s, same query as an earlier approach", q.Approach)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp.Queries = append(resp.Queries, q)

		candidates, err := o.searchBackend(ctx, opts, q)
		if err != nil {
			return nil, err
		}
		o.debugLog(opts, "🔍 Search: approach %s for '%s' by '%s' returned %d candidates", q.Approach, q.Title, q.Artist, len(candidates))

		against := q
		if opts.ScoreAgainst == ScoreRaw {
			against = matching.RawQuery(track)
		}
		for _, c := range candidates {
			scores := opts.Scorer.Score(against, c)
			reason, ok := opts.Filter.Evaluate(scores)
			if !ok {
				o.debugLog(opts, "🚫 Search: rejected '%s' by '%s' (ID: %s)", c.Title, c.Artist, c.ID)
				continue
			}
			// Candidates without an id cannot be told apart, so each one is kept.
			if c.ID != "" {
				if accepted[c.ID] {
					continue
				}
				accepted[c.ID] = true
			}
			resp.Result = append(resp.Result, Matched{Candidate: c, Scores: scores, Reason: reason})
			o.debugLog(opts, "✅ Search: accepted '%s' by '%s' (ID: %s): %s", c.Title, c.Artist, c.ID, reason)
		}

		if len(resp.Result) >= minMatches {
			break
		}
	}

	if len(resp.Result) > 0 && o.cache != nil {
		entry := entryFor(o.tag, track.ID, resp.Result)
		if err := o.cache.Add(ctx, o.tag, []linkcache.Entry{entry}, ""); err != nil {
			log.Printf("⚠️  Warning: failed to cache result for %s: %v", track.ID, err)
		}
	}
	return resp, nil
}

// Lookup resolves tracks from the cache only, never searching. Tracks with no
// usable cached ids come back with an empty Result and Cached false.
func (o *Orchestrator) Lookup(ctx context.Context, tracks []matching.SourceTrack) ([]*Response, error) {
	opts := o.options()
	out := make([]*Response, 0, len(tracks))
	for _, track := range tracks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		resp := newResponse(track)
		if o.cache != nil {
			cached, err := o.fromCache(ctx, opts, track)
			if err != nil {
				return out, err
			}
			resp.Result = append(resp.Result, cached...)
			resp.Cached = len(cached) > 0
		}
		out = append(out, resp)
	}
	return out, nil
}

// fromCache resolves the track's cached ids. Ids that fail or are gone are
// dropped; an empty return means the track must be searched again.
func (o *Orchestrator) fromCache(ctx context.Context, opts Options, track matching.SourceTrack) ([]Matched, error) {
	hits, err := o.cache.Lookup(ctx, []string{track.ID}, o.tag)
	if err != nil {
		log.Printf("⚠️  Warning: link cache unavailable for %s: %v", track.ID, err)
		return nil, nil
	}
	if len(hits) == 0 {
		return nil, nil
	}

	raw := matching.RawQuery(track)
	var out []Matched
	for _, id := range hits[0].IDs(o.tag) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := o.getBackend(ctx, opts, id)
		if err != nil {
			log.Printf("⚠️  Warning: dropping cached id %s for %s: %v", id, track.ID, err)
			continue
		}
		if c == nil {
			o.debugLog(opts, "🔍 Lookup: cached id %s for %s no longer exists", id, track.ID)
			continue
		}
		out = append(out, Matched{Candidate: *c, Scores: opts.Scorer.Score(raw, *c), Reason: ReasonCached})
	}
	if len(out) == 0 {
		o.debugLog(opts, "🔄 Lookup: no cached id for %s resolved, searching again", track.ID)
	}
	return out, nil
}

func (o *Orchestrator) searchBackend(ctx context.Context, opts Options, q matching.Query) ([]matching.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, adapterTimeout(opts))
	defer cancel()

	candidates, err := o.backend.Search(ctx, q)
	if err != nil {
		return nil, &AdapterError{Backend: o.backend.Name(), Op: OpSearch, Err: err}
	}
	return candidates, nil
}

func (o *Orchestrator) getBackend(ctx context.Context, opts Options, id string) (*matching.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, adapterTimeout(opts))
	defer cancel()

	c, err := o.backend.GetByID(ctx, id)
	if err != nil {
		return nil, &AdapterError{Backend: o.backend.Name(), Op: OpGetByID, Err: err}
	}
	return c, nil
}

func adapterTimeout(opts Options) time.Duration {
	if opts.AdapterTimeout > 0 {
		return opts.AdapterTimeout
	}
	return DefaultAdapterTimeout
}

func attempted(done []matching.Query, q matching.Query) bool {
	for _, d := range done {
		if d.SameText(q) {
			return true
		}
	}
	return false
}

// entryFor converts accepted results into a cache entry. slskd results carry
// their file details in Extra.
func entryFor(tag linkcache.Backend, sourceID string, results []Matched) linkcache.Entry {
	e := linkcache.Entry{SpotifyID: sourceID}
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		e.IDs = append(e.IDs, r.ID)
		if tag == linkcache.BackendSlskd {
			e.Files = append(e.Files, slskdFile(r.Candidate))
		}
	}
	return e
}

func slskdFile(c matching.Candidate) linkcache.SlskdFile {
	f := linkcache.SlskdFile{Filename: c.ID}
	if v, ok := c.Extra["username"].(string); ok {
		f.Username = v
	}
	if v, ok := c.Extra["filename"].(string); ok && v != "" {
		f.Filename = v
	}
	switch v := c.Extra["size"].(type) {
	case int64:
		f.Size = v
	case int:
		f.Size = int64(v)
	case float64:
		f.Size = int64(v)
	}
	return f
}
