package configvault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetConfigByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/cfg-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"_id":"cfg-1","active":true,"service":"videos","source":"youtube","provider":"acme"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100, time.Minute, 10*time.Second, 5)
	cfg, err := c.GetConfigByID(context.Background(), "cfg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConfigID != "cfg-1" || !cfg.Active {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestListConfigsByServiceSourceAndProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/provider/acme/service/videos/source/youtube" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[{"_id":"cfg-1"},{"_id":"cfg-2"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100, time.Minute, 10*time.Second, 5)
	configs, err := c.ListConfigsByServiceSourceAndProvider(context.Background(), "acme", "videos", "youtube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d configs, want 2", len(configs))
	}
}

func TestDeleteConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("got method %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, 100, time.Minute, 10*time.Second, 5)
	if err := c.DeleteConfig(context.Background(), "cfg-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
