package tmdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelshelf/internal/services"
	"reelshelf/internal/tmdb"
)

func TestNewRequiresCredential(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "en-US"); err == nil {
		t.Fatal("expected error when no credential supplied")
	}
	if _, err := tmdb.New("", "https://example.com", "en-US", tmdb.WithBearerToken("token")); err != nil {
		t.Fatalf("bearer token should be enough: %v", err)
	}
}

func TestFindByExternalIDSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/find/tt0133093" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key" {
			t.Fatalf("expected api_key query parameter, got %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("external_source") != "imdb_id" {
			t.Fatalf("expected external_source=imdb_id, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"movie_results":[{"id":603,"title":"The Matrix"}],"person_results":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "en-US", tmdb.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	resp, err := client.FindByExternalID(context.Background(), "tt0133093")
	if err != nil {
		t.Fatalf("FindByExternalID returned error: %v", err)
	}
	if len(resp.MovieResults) != 1 || resp.MovieResults[0].ID != 603 {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestBearerTokenReplacesAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected bearer header, got %q", got)
		}
		if r.URL.Query().Has("api_key") {
			t.Fatalf("api_key must not be sent with a bearer token")
		}
		_, _ = w.Write([]byte(`{"id":6384,"name":"Keanu Reeves","popularity":42.5}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("", server.URL, "", tmdb.WithBearerToken("token"))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	person, err := client.PersonDetails(context.Background(), 6384)
	if err != nil {
		t.Fatalf("PersonDetails returned error: %v", err)
	}
	if person.Popularity != 42.5 {
		t.Fatalf("unexpected person: %#v", person)
	}
}

func TestErrorsCarryMarkers(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		marker error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, marker: services.ErrTransient},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, marker: services.ErrTransient},
		{name: "missing", status: http.StatusNotFound, body: `{}`, marker: services.ErrNotFound},
		{name: "bad key", status: http.StatusUnauthorized, body: `{}`, marker: services.ErrConfiguration},
		{name: "garbage", status: http.StatusOK, body: `{"id":`, marker: services.ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			client, err := tmdb.New("key", server.URL, "")
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			_, err = client.MovieDetails(context.Background(), 603)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestDecodeErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.MovieDetails(context.Background(), 603)
	if services.IsRetryable(err) {
		t.Fatalf("decode failure must not be retryable: %v", err)
	}
}

func TestDetailsRejectInvalidIDs(t *testing.T) {
	client, err := tmdb.New("key", "https://example.com", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.MovieDetails(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero movie id")
	}
	if _, err := client.FindByExternalID(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty external id")
	}
}
