package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/garry/tracklink/matching"
	"github.com/garry/tracklink/search"
	"github.com/garry/tracklink/textproc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidMatching is wrapped by every matching configuration error.
var ErrInvalidMatching = errors.New("invalid matching configuration")

// Matching is the matching engine configuration.
type Matching struct {
	SearchApproaches []textproc.Approach `json:"searchApproaches"`
	TextProcessing   textproc.Config     `json:"textProcessing"`
	MatchFilters     []matching.Rule     `json:"matchFilters"`
	SimilarityMetric string              `json:"similarityMetric"`
	ContainsMode     string              `json:"containsMode"`
	ScoreAgainst     string              `json:"scoreAgainst"`
	MinMatches       int                 `json:"minMatches"`
	AdapterTimeout   Duration            `json:"adapterTimeout"`

	scorer *matching.Scorer
	filter *matching.Filter
}

// Duration reads either a Go duration string ("30s") or a number of seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// DefaultMatching returns the built-in configuration. Every call returns a
// fresh copy.
func DefaultMatching() *Matching {
	return &Matching{
		SearchApproaches: []textproc.Approach{
			{ID: "exact"},
			{ID: "noQuotes", RemoveQuotes: true},
			{ID: "trimmed", RemoveQuotes: true, Trim: true},
			{ID: "filtered", RemoveQuotes: true, Trim: true, Filtered: true},
			{ID: "folded", RemoveQuotes: true, Trim: true, Filtered: true, FoldDiacritics: true},
		},
		TextProcessing: textproc.Config{
			FilterOutWords: []string{
				"remastered", "remaster", "remix", "radio edit", "single edit",
				"edit", "extended", "bonus track", "live", "acoustic", "explicit",
				"deluxe", "mono", "stereo", "version",
			},
			FilterOutQuotes: []string{
				"'", "\"", "`", "´", "‘", "’", "‚", "“", "”", "„", "«", "»", "‹", "›",
			},
			CutOffSeparators: []string{
				" - ", " (", " [", " feat", " ft.", " featuring", " / ",
			},
		},
		MatchFilters: []matching.Rule{
			{Filter: "title:match AND artist:match", Reason: "exact title and artist"},
			{Filter: "title:match AND artist:contains", Reason: "exact title, artist contained"},
			{Filter: "artistWithTitle:match", Reason: "artist and title combined"},
			{Filter: "title:contains AND artist:match", Reason: "title contained, exact artist"},
			{Filter: "artistInTitle:match AND title:contains", Reason: "artist embedded in title"},
			{Filter: "title:similarity>=0.85 AND artist:similarity>=0.8", Reason: "similar title and artist"},
			{Filter: "artistWithTitle:similarity>=0.9", Reason: "similar artist and title"},
		},
		SimilarityMetric: matching.MetricLevenshtein,
		ContainsMode:     matching.ContainsBidirectional,
		ScoreAgainst:     search.ScoreNormalized,
		MinMatches:       1,
		AdapterTimeout:   Duration(search.DefaultAdapterTimeout),
	}
}

// ParseMatching decodes a possibly partial document over the defaults and
// validates the result. Missing keys keep their default, present keys
// replace it, and textProcessing is merged key by key.
func ParseMatching(data []byte) (*Matching, error) {
	m := DefaultMatching()
	if err := m.merge(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMatching, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMatching reads the matching configuration at path. A missing file
// yields the defaults.
func LoadMatching(path string) (*Matching, error) {
	if path == "" {
		return validDefaults()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return validDefaults()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read matching configuration %s: %w", path, err)
	}
	m, err := ParseMatching(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func validDefaults() (*Matching, error) {
	m := DefaultMatching()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matching) merge(data []byte) error {
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse matching configuration: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		raw := doc[key]
		var err error
		switch key {
		case "searchApproaches":
			err = replace(raw, &m.SearchApproaches)
		case "textProcessing":
			err = m.mergeTextProcessing(raw)
		case "matchFilters":
			err = replace(raw, &m.MatchFilters)
		case "similarityMetric":
			err = replace(raw, &m.SimilarityMetric)
		case "containsMode":
			err = replace(raw, &m.ContainsMode)
		case "scoreAgainst":
			err = replace(raw, &m.ScoreAgainst)
		case "minMatches":
			err = replace(raw, &m.MinMatches)
		case "adapterTimeout":
			err = replace(raw, &m.AdapterTimeout)
		default:
			log.Printf("⚠️  Warning: ignoring unknown matching configuration key %q", key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Matching) mergeTextProcessing(raw jsoniter.RawMessage) error {
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	for key, value := range doc {
		var err error
		switch key {
		case "filterOutWords":
			err = replace(value, &m.TextProcessing.FilterOutWords)
		case "filterOutQuotes":
			err = replace(value, &m.TextProcessing.FilterOutQuotes)
		case "cutOffSeparators":
			err = replace(value, &m.TextProcessing.CutOffSeparators)
		default:
			log.Printf("⚠️  Warning: ignoring unknown textProcessing key %q", key)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// replace decodes raw into a zero value of *dst and assigns it, so nothing
// from the previous value survives.
func replace[T any](raw jsoniter.RawMessage, dst *T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// Validate checks the configuration and compiles the scorer and the filter
// rules. Every problem is reported.
func (m *Matching) Validate() error {
	var errs []error

	if len(m.SearchApproaches) == 0 {
		errs = append(errs, errors.New("searchApproaches must not be empty"))
	}
	seen := make(map[string]bool, len(m.SearchApproaches))
	for i, a := range m.SearchApproaches {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Errorf("searchApproaches[%d] has no id", i))
		case seen[a.ID]:
			errs = append(errs, fmt.Errorf("duplicate search approach id %q", a.ID))
		}
		seen[a.ID] = true
	}

	scorer, err := matching.NewScorer(m.SimilarityMetric, m.ContainsMode)
	if err != nil {
		errs = append(errs, err)
	}

	if len(m.MatchFilters) == 0 {
		errs = append(errs, errors.New("matchFilters must not be empty"))
	}
	filter, err := matching.NewFilter(m.MatchFilters)
	if err != nil {
		errs = append(errs, err)
	}

	switch m.ScoreAgainst {
	case "", search.ScoreNormalized, search.ScoreRaw:
	default:
		errs = append(errs, fmt.Errorf("unknown scoreAgainst %q", m.ScoreAgainst))
	}
	if m.MinMatches < 1 {
		errs = append(errs, fmt.Errorf("minMatches must be at least 1, got %d", m.MinMatches))
	}
	if m.AdapterTimeout < 0 {
		errs = append(errs, fmt.Errorf("adapterTimeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMatching, errors.Join(errs...))
	}
	m.scorer, m.filter = scorer, filter
	return nil
}

// Filter returns the compiled rule list. Validate must have succeeded.
func (m *Matching) Filter() *matching.Filter {
	return m.filter
}

// SearchOptions builds orchestrator options from a validated configuration.
func (m *Matching) SearchOptions(useCache, debug bool) search.Options {
	return search.Options{
		Approaches:     m.SearchApproaches,
		Vocabulary:     m.TextProcessing,
		Scorer:         m.scorer,
		Filter:         m.filter,
		MinMatches:     m.MinMatches,
		ScoreAgainst:   m.ScoreAgainst,
		UseCache:       useCache,
		AdapterTimeout: time.Duration(m.AdapterTimeout),
		Debug:          debug,
	}
}

// MatchingSource reloads the matching configuration when its file changes.
// A reload that fails keeps the last good configuration.
type MatchingSource struct {
	path string

	mu      sync.Mutex
	current *Matching
	modTime time.Time
	size    int64
}

// NewMatchingSource loads path once. A bad initial configuration is fatal.
func NewMatchingSource(path string) (*MatchingSource, error) {
	s := &MatchingSource{path: path}
	m, err := LoadMatching(path)
	if err != nil {
		return nil, err
	}
	s.current = m
	s.modTime, s.size = s.stat()
	return s, nil
}

// Current returns the active configuration.
func (s *MatchingSource) Current() *Matching {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reload re-reads the file if it changed since the last load. It reports
// whether a new configuration became active.
func (s *MatchingSource) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	modTime, size := s.stat()
	if modTime.Equal(s.modTime) && size == s.size {
		return false, nil
	}

	m, err := LoadMatching(s.path)
	if err != nil {
		log.Printf("⚠️  Warning: keeping previous matching configuration: %v", err)
		return false, err
	}
	s.current = m
	s.modTime, s.size = modTime, size
	log.Printf("🔄 Reloaded matching configuration from %s", s.path)
	return true, nil
}

func (s *MatchingSource) stat() (time.Time, int64) {
	if s.path == "" {
		return time.Time{}, 0
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, -1
	}
	return info.ModTime(), info.Size()
}
