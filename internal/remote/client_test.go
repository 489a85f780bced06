package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clubroster/roster/internal/schema"
)

func newTestClient() *HTTPClient {
	return NewHTTPClient(&Config{
		Timeout: 2 * time.Second,
		Logger:  log.New(io.Discard, "", 0),
	})
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "valid dataset", status: http.StatusOK, body: `{"students":[{"id":"s1","name":"Ayu"}],"lastUpdated":500}`},
		{name: "html error page", status: http.StatusOK, body: `<html>Script error</html>`, wantErr: ErrMalformed},
		{name: "unrelated json", status: http.StatusOK, body: `{"result":"ok"}`, wantErr: ErrMalformed},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: ErrStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ds, err := newTestClient().Fetch(context.Background(), srv.URL)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if ds.LastUpdated != 500 || len(ds.Students) != 1 {
				t.Errorf("unexpected dataset: %+v", ds.Stats())
			}
		})
	}
}

func TestFetch_FollowsRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/exec" {
			http.Redirect(w, r, "/echo", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(`{"lastUpdated":7}`))
	}))
	defer srv.Close()

	ds, err := newTestClient().Fetch(context.Background(), srv.URL+"/exec")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ds.LastUpdated != 7 {
		t.Errorf("expected version 7, got %d", ds.LastUpdated)
	}
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient().Fetch(context.Background(), url)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("transport failure must not be reported as malformed")
	}
}

func TestNoEndpoint(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	if _, err := c.Fetch(ctx, ""); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Fetch: expected ErrNoEndpoint, got %v", err)
	}
	if err := c.Send(ctx, "", schema.Empty()); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Send: expected ErrNoEndpoint, got %v", err)
	}
	if err := c.Probe(ctx, ""); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Probe: expected ErrNoEndpoint, got %v", err)
	}
}

func TestSend(t *testing.T) {
	type request struct {
		method      string
		contentType string
		body        []byte
	}
	received := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- request{method: r.Method, contentType: r.Header.Get("Content-Type"), body: body}
		// Opaque answers still count as a completed push.
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ds := schema.Empty()
	ds.Students = []schema.Student{{ID: "s1", Name: "Ayu"}}
	ds.LastUpdated = 99

	if err := newTestClient().Send(context.Background(), srv.URL, ds); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	got := <-received
	if got.method != http.MethodPost {
		t.Errorf("expected POST, got %s", got.method)
	}
	if !strings.HasPrefix(got.contentType, "text/plain") {
		t.Errorf("expected text/plain content type, got %q", got.contentType)
	}

	sent, err := schema.Parse(got.body)
	if err != nil {
		t.Fatalf("pushed body is not a dataset: %v", err)
	}
	if sent.LastUpdated != 99 || len(sent.Students) != 1 {
		t.Errorf("unexpected pushed dataset: %+v", sent.Stats())
	}
}

func TestProbe(t *testing.T) {
	received := make(chan probePayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload probePayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		received <- payload
	}))
	defer srv.Close()

	c := newTestClient()
	if err := c.Probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	payload := <-received
	if payload.Action != "ping" || payload.Timestamp == 0 {
		t.Errorf("unexpected probe payload: %+v", payload)
	}

	url := srv.URL
	srv.Close()
	if err := c.Probe(context.Background(), url); err == nil {
		t.Error("expected probe against closed server to fail")
	}
}
