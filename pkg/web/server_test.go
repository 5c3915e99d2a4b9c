package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/echotype/echotype/pkg/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}
	return NewServer(cfg, testAPI(t), testLogger())
}

func TestServer_New(t *testing.T) {
	srv := testServer(t)

	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.hub == nil {
		t.Error("hub not created")
	}
	if srv.api.hub != srv.hub {
		t.Error("API not wired to the hub")
	}
}

func TestServer_StartStop(t *testing.T) {
	srv := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	err := <-errChan
	if err != nil && err != context.Canceled && err != http.ErrServerClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := testServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil && err != context.Canceled && err != http.ErrServerClosed {
			t.Logf("srv.Start error: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	addr := srv.GetAddr()
	if addr == "" {
		t.Fatal("Server address is empty")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("Failed to request health endpoint: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("resp.Body.Close error: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestServer_Disabled(t *testing.T) {
	cfg := config.WebConfig{Enabled: false}
	srv := NewServer(cfg, testAPI(t), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Errorf("disabled server must return nil, got %v", err)
	}
}
