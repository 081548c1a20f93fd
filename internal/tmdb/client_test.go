package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New("test-key", server.URL, "en",
		WithHTTPClient(server.Client()),
		WithRateLimit(1000, time.Millisecond, 10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestForEachMovieInYearWalksQuartersAndPages(t *testing.T) {
	var requests []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/discover/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Error("missing api key")
		}
		if r.URL.Query().Get("include_adult") != "false" {
			t.Error("adult content not excluded")
		}
		from := r.URL.Query().Get("release_date.gte")
		page := r.URL.Query().Get("page")
		requests = append(requests, from+"#"+page)

		// The first quarter has two pages, the rest one each.
		totalPages := 1
		if from == "1999-01-01" {
			totalPages = 2
		}
		_ = json.NewEncoder(w).Encode(Page{
			Page:       1,
			TotalPages: totalPages,
			Results: []DiscoverMovie{
				{ID: int64(len(requests)), Title: fmt.Sprintf("Movie %d", len(requests)), ReleaseDate: "1999-05-01"},
			},
		})
	})

	client := newTestClient(t, handler)
	var seen []int64
	err := client.ForEachMovieInYear(context.Background(), 1999, 0, func(m DiscoverMovie) error {
		seen = append(seen, m.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachMovieInYear returned error: %v", err)
	}
	if len(requests) != 5 {
		t.Fatalf("expected 5 discover requests (2+1+1+1), got %d: %v", len(requests), requests)
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 movies, got %d", len(seen))
	}
}

func TestForEachMovieInYearHonorsMaxResults(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Page{
			Page:       1,
			TotalPages: 1,
			Results:    []DiscoverMovie{{ID: 1}, {ID: 2}, {ID: 3}},
		})
	})

	client := newTestClient(t, handler)
	count := 0
	err := client.ForEachMovieInYear(context.Background(), 2000, 2, func(DiscoverMovie) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachMovieInYear returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 movies, got %d", count)
	}
}

func TestForEachMovieInYearRejectsBadYear(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())
	err := client.ForEachMovieInYear(context.Background(), 1850, 0, func(DiscoverMovie) error { return nil })
	if err == nil {
		t.Fatal("expected error for out-of-range year")
	}
	if err := client.ForEachMovieInYear(context.Background(), time.Now().Year()+1, 0, func(DiscoverMovie) error { return nil }); err == nil {
		t.Fatal("expected error for future year")
	}
}

func TestRetryAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(MovieDetails{ID: 603, Title: "The Matrix"})
	})

	client := newTestClient(t, handler)
	details, err := client.MovieDetails(context.Background(), 603)
	if err != nil {
		t.Fatalf("MovieDetails returned error: %v", err)
	}
	if details.Title != "The Matrix" {
		t.Fatalf("unexpected title: %q", details.Title)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRateLimitGivesUpAfterMaxRetries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newTestClient(t, handler)
	client.maxRetries = 2
	if _, err := client.MovieDetails(context.Background(), 603); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestMovieDetailsParsesCreditsAndGenres(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("append_to_response") != "credits" {
			t.Error("credits not appended")
		}
		_ = json.NewEncoder(w).Encode(MovieDetails{
			ID:      603,
			Title:   "The Matrix",
			Runtime: 136,
			Genres:  []Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}},
			Credits: Credits{Crew: []CrewMember{
				{Name: "Lana Wachowski", Job: "Director"},
				{Name: "Bill Pope", Job: "Director of Photography"},
				{Name: "Lilly Wachowski", Job: "Director"},
			}},
		})
	})

	client := newTestClient(t, handler)
	details, err := client.MovieDetails(context.Background(), 603)
	if err != nil {
		t.Fatalf("MovieDetails returned error: %v", err)
	}
	if got := details.Directors(); got != "Lana Wachowski, Lilly Wachowski" {
		t.Fatalf("unexpected directors: %q", got)
	}
	genres := details.GenreNames()
	if len(genres) != 2 || genres[0] != "Action" {
		t.Fatalf("unexpected genres: %v", genres)
	}
}

func TestImageURL(t *testing.T) {
	if got := ImageURL("/poster.jpg"); got != "https://image.tmdb.org/t/p/original/poster.jpg" {
		t.Fatalf("unexpected url: %q", got)
	}
	if got := ImageURL(""); got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
	if got := ImageURL("poster.jpg"); got != "https://image.tmdb.org/t/p/original/poster.jpg" {
		t.Fatalf("unexpected url for bare path: %q", got)
	}
}

func TestLimiterBackoffDoublesAndResets(t *testing.T) {
	l := newLimiter(10, time.Second, 3*time.Second)
	if d := l.rateLimited(); d != time.Second {
		t.Fatalf("first backoff: %v", d)
	}
	if d := l.rateLimited(); d != 2*time.Second {
		t.Fatalf("second backoff: %v", d)
	}
	if d := l.rateLimited(); d != 3*time.Second {
		t.Fatalf("capped backoff: %v", d)
	}
	l.succeeded()
	if d := l.rateLimited(); d != time.Second {
		t.Fatalf("backoff after reset: %v", d)
	}
}
