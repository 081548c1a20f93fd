package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCommand(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", server.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSyncYearCommand(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"job_id":"year_sync_1999_en","year":1999,"language":"en","status":"PENDING"}`))
	}))
	defer server.Close()

	output, err := runCommand(t, server, "sync", "--year", "1999", "--max-results", "50")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotPath != "/api/v1/media/movie-cache/update/year" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["year"] != float64(1999) || gotBody["max_results"] != float64(50) {
		t.Fatalf("unexpected body: %v", gotBody)
	}
	if !strings.Contains(output, "year_sync_1999_en") {
		t.Fatalf("job id missing from output: %s", output)
	}
}

func TestSyncRangeCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/media/movie-cache/update/year-range" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"jobs":[{"job_id":"year_sync_2001_en","year":2001,"priority":4},{"job_id":"year_sync_2000_en","year":2000,"priority":5}]}`))
	}))
	defer server.Close()

	output, err := runCommand(t, server, "sync", "--start-year", "2000", "--end-year", "2001")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(output, "year_sync_2001_en") || !strings.Contains(output, "year_sync_2000_en") {
		t.Fatalf("jobs missing from output: %s", output)
	}
}

func TestSyncRequiresYearFlags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	if _, err := runCommand(t, server, "sync"); err == nil {
		t.Fatal("expected flag error")
	}
}

func TestSyncStatusCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/media/movie-cache/update/year_sync_1999_en" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"record":{"job_id":"year_sync_1999_en","year":1999,"language":"en","status":"IN_PROGRESS","attempts":1,"movies_processed":120,"movies_failed":3}}`))
	}))
	defer server.Close()

	output, err := runCommand(t, server, "sync", "status", "year_sync_1999_en")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(output, "IN_PROGRESS") || !strings.Contains(output, "120 processed, 3 failed") {
		t.Fatalf("unexpected output: %s", output)
	}
}

func TestErrorEnvelopeSurfacesInCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"year 1850 below minimum"}}`))
	}))
	defer server.Close()

	_, err := runCommand(t, server, "sync", "--year", "1850")
	if err == nil || !strings.Contains(err.Error(), "year 1850 below minimum") {
		t.Fatalf("unexpected error: %v", err)
	}
}
