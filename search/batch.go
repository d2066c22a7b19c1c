package search

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/garry/tracklink/linkcache"
	"github.com/garry/tracklink/matching"
)

// BatchOptions configure SearchBatch.
type BatchOptions struct {
	// Concurrency above one searches that many tracks at once.
	Concurrency int
	// AlbumID, when set, gets its own cache link holding every matched id.
	AlbumID string
	// Progress is called after each track. It may be called concurrently.
	Progress func(index int, outcome Outcome)
}

// Outcome is the result for one track of a batch. Exactly one of Response
// and Err is set.
type Outcome struct {
	Track    matching.SourceTrack
	Response *Response
	Err      error
}

// SearchBatch searches every track. A failing track is recorded in its
// Outcome and does not stop the others. Cancellation is checked between
// tracks; tracks not started get the context's error. The returned error is
// the context's error, if any.
func (o *Orchestrator) SearchBatch(ctx context.Context, tracks []matching.SourceTrack, opts BatchOptions) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tracks))

	run := func(i int) {
		track := tracks[i]
		outcomes[i].Track = track
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			return
		}

		log.Printf("Processing track %d/%d: %s - %s", i+1, len(tracks), track.PrimaryArtist(), track.Title)
		resp, err := o.Search(ctx, track)
		if err != nil {
			log.Printf("❌ Error searching for %s - %s: %v", track.PrimaryArtist(), track.Title, err)
			outcomes[i].Err = err
		} else {
			outcomes[i].Response = resp
		}
		if opts.Progress != nil {
			opts.Progress(i, outcomes[i])
		}
	}

	if opts.Concurrency > 1 {
		var g errgroup.Group
		g.SetLimit(opts.Concurrency)
		for i := range tracks {
			i := i
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range tracks {
			run(i)
		}
	}

	if opts.AlbumID != "" && o.cache != nil && ctx.Err() == nil {
		var entries []linkcache.Entry
		for _, out := range outcomes {
			if out.Response.Found() {
				entries = append(entries, entryFor(o.tag, out.Track.ID, out.Response.Result))
			}
		}
		if len(entries) > 0 {
			if err := o.cache.Add(ctx, o.tag, entries, opts.AlbumID); err != nil {
				log.Printf("⚠️  Warning: failed to cache album %s: %v", opts.AlbumID, err)
			}
		}
	}

	return outcomes, ctx.Err()
}
