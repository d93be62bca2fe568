package archive_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/goload/internal/archive"
)

func TestFetcher_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "goload-test/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		io.WriteString(w, "archive bytes")
	}))
	defer srv.Close()

	f := archive.NewFetcher(5*time.Second, "goload-test/1.0")

	body, err := f.Fetch(context.Background(), srv.URL+"/hd2023.zip")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("body = %q, want %q", data, "archive bytes")
	}
}

func TestFetcher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := archive.NewFetcher(5*time.Second, "goload-test/1.0")

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.zip")
	if err == nil {
		t.Fatal("Fetch() of 404 succeeded, want error")
	}

	var statusErr *archive.HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %T, want *archive.HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusNotFound)
	}
}

func TestFetcher_ConnectionRefused(t *testing.T) {
	f := archive.NewFetcher(time.Second, "goload-test/1.0")

	// Closed server: the transport-level error must surface, not a status error.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := f.Fetch(context.Background(), url+"/gone.zip")
	if err == nil {
		t.Fatal("Fetch() against closed server succeeded")
	}

	var statusErr *archive.HTTPStatusError
	if errors.As(err, &statusErr) {
		t.Errorf("Fetch() error = %v, want transport error, got status error", err)
	}
}
