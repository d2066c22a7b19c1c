package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/garry/tracklink/config"
	"github.com/garry/tracklink/matching"
)

func TestToSourceTrack(t *testing.T) {
	track := spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:   "test_id",
			Name: "Under Pressure",
			Artists: []spotify.SimpleArtist{
				{Name: "Queen"},
				{Name: "David Bowie"},
			},
		},
		Album: spotify.SimpleAlbum{
			ID:   "album_id",
			Name: "Hot Space",
		},
		ExternalIDs: map[string]string{"isrc": "GBUM71029604"},
	}

	source := ToSourceTrack(track)

	if source.ID != "test_id" {
		t.Errorf("Expected ID to be 'test_id', got %s", source.ID)
	}
	if source.Title != "Under Pressure" {
		t.Errorf("Expected Title to be 'Under Pressure', got %s", source.Title)
	}
	if strings.Join(source.Artists, ",") != "Queen,David Bowie" {
		t.Errorf("Expected every artist to be kept, got %v", source.Artists)
	}
	if source.PrimaryArtist() != "Queen" {
		t.Errorf("Expected primary artist 'Queen', got %s", source.PrimaryArtist())
	}
	if source.Album != "Hot Space" || source.AlbumID != "album_id" {
		t.Errorf("Unexpected album %s (%s)", source.Album, source.AlbumID)
	}
	if source.ISRC != "GBUM71029604" {
		t.Errorf("Expected ISRC 'GBUM71029604', got %s", source.ISRC)
	}
}

func TestToSourceTrackWithoutArtists(t *testing.T) {
	source := ToSourceTrack(spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{ID: "x", Name: "Intro"}})
	if len(source.Artists) != 0 || source.PrimaryArtist() != "" {
		t.Errorf("Expected no artists, got %v", source.Artists)
	}
	if source.ISRC != "" {
		t.Errorf("Expected empty ISRC, got %s", source.ISRC)
	}
}

func TestGetPlaylistTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/pl1/tracks" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [
				{"track": {"id": "t1", "name": "Bohemian Rhapsody", "artists": [{"name": "Queen"}],
				           "album": {"id": "a1", "name": "A Night at the Opera"}, "external_ids": {"isrc": "GBUM71029601"}}},
				{"is_local": true, "track": {"id": "", "name": "My Demo", "artists": [{"name": "Me"}]}}
			],
			"limit": 100, "offset": 0, "total": 2
		}`)
	}))
	defer server.Close()

	client := NewClientWithHTTP(&config.Config{}, server.Client(), spotify.WithBaseURL(server.URL+"/"))

	tracks, err := client.GetPlaylistTracks(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("GetPlaylistTracks failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Expected the local file to be skipped, got %d tracks", len(tracks))
	}
	if tracks[0].ID != "t1" || tracks[0].ISRC != "GBUM71029601" || tracks[0].Album != "A Night at the Opera" {
		t.Errorf("Unexpected track: %+v", tracks[0])
	}
}

type fakeResolver struct {
	byISRC   map[string]string
	bySearch map[string]string
	searches []string
}

func (f *fakeResolver) GetMusicBrainzIDByISRC(ctx context.Context, isrc string) (string, error) {
	if id, ok := f.byISRC[isrc]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func (f *fakeResolver) GetMusicBrainzIDByArtistAndTitle(ctx context.Context, artist, title string) (string, error) {
	f.searches = append(f.searches, artist+" - "+title)
	if id, ok := f.bySearch[artist+" - "+title]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func TestLookupMusicBrainzIDs(t *testing.T) {
	resolver := &fakeResolver{
		byISRC:   map[string]string{"ISRC1": "mb-1"},
		bySearch: map[string]string{"Queen - Bicycle Race": "mb-2", "Queen - Jealousy": "mb-3"},
	}
	tracks := []matching.SourceTrack{
		{ID: "s1", Title: "Bohemian Rhapsody", Artists: []string{"Queen"}, ISRC: "ISRC1"},
		{ID: "s2", Title: "Bicycle Race", Artists: []string{"Queen"}, ISRC: "UNKNOWN"},
		{ID: "s3", Title: "Jealousy", Artists: []string{"Queen", "Someone"}},
		{ID: "s4", Title: "Nowhere", Artists: []string{"Nobody"}},
	}

	ids := LookupMusicBrainzIDs(context.Background(), tracks, resolver)

	expected := map[string]string{"s1": "mb-1", "s2": "mb-2", "s3": "mb-3"}
	if len(ids) != len(expected) {
		t.Errorf("Expected %d ids, got %v", len(expected), ids)
	}
	for id, mbid := range expected {
		if ids[id] != mbid {
			t.Errorf("Expected %s for %s, got %s", mbid, id, ids[id])
		}
	}

	// The ISRC hit must not fall through to a search
	for _, search := range resolver.searches {
		if search == "Queen - Bohemian Rhapsody" {
			t.Error("Expected the ISRC match to skip the artist/title search")
		}
	}
}

func TestLookupMusicBrainzIDsStopsOnCancel(t *testing.T) {
	resolver := &fakeResolver{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids := LookupMusicBrainzIDs(ctx, []matching.SourceTrack{{ID: "s1", Title: "A", Artists: []string{"B"}}}, resolver)
	if len(ids) != 0 || len(resolver.searches) != 0 {
		t.Errorf("Expected nothing to be looked up, got %v and %v", ids, resolver.searches)
	}
}
