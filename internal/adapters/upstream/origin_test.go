package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/skycanvas/internal/adapters/upstream"
	"github.com/samirrijal/skycanvas/internal/core/domain"
)

func TestOrigin_FetchTile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/s0/tiles/572/747.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := upstream.New(srv.URL+"/", time.Second)

	got, err := o.FetchTile(context.Background(), domain.TileIndex{X: 572, Y: 747, Zoom: 11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != http.StatusOK || string(got.Body) != "png-bytes" || got.ContentType != "image/png" {
		t.Errorf("unexpected tile %+v", got)
	}

	got, err = o.FetchTile(context.Background(), domain.TileIndex{X: 1, Y: 1, Zoom: 11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != http.StatusNotFound {
		t.Errorf("expected 404 to be passed through, got %d", got.Status)
	}
}

func TestOrigin_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	o := upstream.New(url, 200*time.Millisecond)
	if _, err := o.FetchTile(context.Background(), domain.TileIndex{X: 1, Y: 1, Zoom: 11}); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestOrigin_URL(t *testing.T) {
	o := upstream.New("https://backend.wplace.live/", 0)
	want := "https://backend.wplace.live/files/s0/tiles/3/4.png"
	if got := o.URL(domain.TileIndex{X: 3, Y: 4, Zoom: 11}); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
