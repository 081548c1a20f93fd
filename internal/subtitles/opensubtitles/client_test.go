package opensubtitles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:     "test-key",
		UserAgent:  "mediaindex/test",
		UserToken:  "user-token",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestSearchBuildsMovieQueryAndParsesCandidates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subtitles" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Error("missing api key header")
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Error("missing bearer token")
		}
		q := r.URL.Query()
		if q.Get("tmdb_id") != "603" || q.Get("type") != "movie" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("order_by") != "download_count" || q.Get("order_direction") != "desc" {
			t.Errorf("unexpected ordering: %v", q)
		}
		_, _ = w.Write([]byte(`{
            "data": [
                {"id": "sub-1", "attributes": {
                    "language": "en", "release": "The.Matrix.1999.BluRay",
                    "download_count": 5000, "ratings": 8.5, "votes": 40,
                    "from_trusted": true, "hd": true,
                    "feature_details": {"title": "The Matrix", "year": 1999},
                    "files": [{"file_id": 111}]
                }},
                {"id": "sub-2", "attributes": {"language": "en", "files": []}},
                {"id": "sub-3", "attributes": {"language": "", "files": [{"file_id": 333}]}}
            ],
            "meta": {"total_count": 3}
        }`))
	})

	client := newTestClient(t, handler)
	resp, err := client.Search(context.Background(), SearchRequest{TMDBID: 603, Languages: []string{"en"}})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("unexpected total: %d", resp.Total)
	}
	// Entries without a file or a language are dropped.
	if len(resp.Subtitles) != 1 {
		t.Fatalf("expected 1 usable candidate, got %d", len(resp.Subtitles))
	}
	sub := resp.Subtitles[0]
	if sub.FileID != 111 || sub.Downloads != 5000 || !sub.FromTrusted || !sub.HD {
		t.Fatalf("unexpected candidate: %+v", sub)
	}
	if sub.FeatureTitle != "The Matrix" || sub.FeatureYear != 1999 {
		t.Fatalf("feature details not parsed: %+v", sub)
	}
}

func TestDownloadFollowsLink(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["file_id"] != float64(111) {
			t.Errorf("unexpected file id: %v", body["file_id"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"link":      "/payload/111.srt",
			"file_name": "The.Matrix.srt",
			"language":  "en",
		})
	})
	mux.HandleFunc("/payload/111.srt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nWake up, Neo.\n"))
	})

	client := newTestClient(t, &mux)
	result, err := client.Download(context.Background(), 111)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if result.FileName != "The.Matrix.srt" || result.Language != "en" {
		t.Fatalf("unexpected metadata: %+v", result)
	}
	if len(result.Data) == 0 {
		t.Fatal("empty subtitle payload")
	}
}

func TestDownloadRejectsMissingLink(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_name": "x.srt"}`))
	})
	client := newTestClient(t, handler)
	if _, err := client.Download(context.Background(), 111); err == nil {
		t.Fatal("expected error for missing link")
	}
}

func TestSearchSurfacesAPIErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid key"}`, http.StatusUnauthorized)
	})
	client := newTestClient(t, handler)
	if _, err := client.Search(context.Background(), SearchRequest{TMDBID: 603}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestSearchRetriesAfterRateLimit(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"message":"throttled"}`, http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{
            "data": [{"id": "sub-1", "attributes": {"language": "en", "files": [{"file_id": 111}]}}],
            "meta": {"total_count": 1}
        }`))
	})

	client := newTestClient(t, handler)
	client.retryBase = time.Millisecond
	resp, err := client.Search(context.Background(), SearchRequest{TMDBID: 603})
	if err != nil {
		t.Fatalf("Search did not recover from 429: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if len(resp.Subtitles) != 1 {
		t.Fatalf("unexpected candidates: %+v", resp.Subtitles)
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var negotiations int
	var mux http.ServeMux
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		negotiations++
		if negotiations < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "/payload/111.srt", "file_name": "x.srt"})
	})
	mux.HandleFunc("/payload/111.srt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	})

	client := newTestClient(t, &mux)
	client.retryBase = time.Millisecond
	result, err := client.Download(context.Background(), 111)
	if err != nil {
		t.Fatalf("Download did not recover from 502: %v", err)
	}
	if negotiations != 3 {
		t.Fatalf("expected two retries, got %d negotiations", negotiations)
	}
	if string(result.Data) != "payload" {
		t.Fatalf("unexpected payload: %q", result.Data)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message":"throttled"}`, http.StatusTooManyRequests)
	})
	client := newTestClient(t, handler)
	client.retryBase = time.Millisecond
	if _, err := client.Search(context.Background(), SearchRequest{TMDBID: 603}); err == nil {
		t.Fatal("expected error when every attempt is rate limited")
	}
	if calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls)
	}
}
