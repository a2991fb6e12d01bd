package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"
)

func testHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func TestNewServer(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewServer("status", ":8090", testHandler(), logger)

	if server.name != "status" {
		t.Errorf("expected name 'status', got '%s'", server.name)
	}

	if server.addr != ":8090" {
		t.Errorf("expected addr ':8090', got '%s'", server.addr)
	}

	if server.logger == nil {
		t.Error("expected logger to be set")
	}

	if server.handler == nil {
		t.Error("expected handler to be set")
	}
}

func TestServer_ServesHandler(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewServer("status", "localhost:19180", testHandler(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start server in background
	go func() {
		if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
			t.Errorf("unexpected server error: %v", err)
		}
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19180/ping")
	if err != nil {
		t.Fatalf("failed to call /ping: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Errorf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}

	// Stop server
	cancel()
	time.Sleep(100 * time.Millisecond)
}

func TestServer_GracefulShutdown(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	server := NewServer("metrics", "localhost:19181", testHandler(), logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for server to start
	time.Sleep(100 * time.Millisecond)

	// Verify server is running
	resp, err := http.Get("http://localhost:19181/ping")
	if err != nil {
		t.Fatalf("server not running: %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Errorf("failed to close response body: %v", err)
	}

	// Trigger graceful shutdown
	cancel()

	// Wait for shutdown to complete
	select {
	case err := <-errChan:
		if err != http.ErrServerClosed {
			t.Errorf("expected http.ErrServerClosed, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timeout")
	}

	// Verify server is stopped
	_, err = http.Get("http://localhost:19181/ping")
	if err == nil {
		t.Error("expected connection error after shutdown, but got success")
	}
}

func TestServer_ListenError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Occupy the port with a first server
	first := NewServer("status", "localhost:19182", testHandler(), logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := first.Start(ctx); err != nil && err != http.ErrServerClosed {
			t.Errorf("unexpected server error: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	// A second server on the same port must fail fast
	second := NewServer("metrics", "localhost:19182", testHandler(), logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- second.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err == nil || err == http.ErrServerClosed {
			t.Errorf("expected listen error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected listen error, server did not fail")
	}
}
