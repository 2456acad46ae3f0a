package fetch

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(retries int) *Client {
	return New(&Config{
		Timeout:           5 * time.Second,
		RetryAttempts:     retries,
		MaxInFlight:       4,
		RequestsPerSecond: 1000,
		AllowPrivate:      true,
	})
}

func TestIsForbiddenIP(t *testing.T) {
	tests := []struct {
		ip        string
		forbidden bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"100.64.0.1", true},
		{"0.0.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"fc00::1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2606:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsForbiddenIP(net.ParseIP(tt.ip)); got != tt.forbidden {
				t.Errorf("IsForbiddenIP(%s) = %v, want %v", tt.ip, got, tt.forbidden)
			}
		})
	}

	if !IsForbiddenIP(nil) {
		t.Error("nil IP should be forbidden")
	}
}

func TestFetchPageSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request missing User-Agent")
		}
		w.Write([]byte("<html>page</html>"))
	}))
	defer srv.Close()

	body, err := testClient(3).FetchPage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "<html>page</html>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchPageRetriesOnThrottle(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testClient(3).FetchPage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestFetchPagePersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient(1).FetchPage(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestFetchPageContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := testClient(3).FetchPage(ctx, srv.URL); err == nil {
		t.Fatal("expected error on canceled context")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("cancellation not observed promptly")
	}
}

func TestGetStreamsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	resp, err := testClient(1).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	// Get passes status handling to the caller.
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestForbiddenDialBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should not be reachable"))
	}))
	defer srv.Close()

	// Guard enabled: the loopback test server must be rejected at dial time.
	c := New(&Config{
		Timeout:           2 * time.Second,
		RetryAttempts:     1,
		MaxInFlight:       1,
		RequestsPerSecond: 1000,
	})

	if _, err := c.FetchPage(context.Background(), srv.URL); err == nil {
		t.Fatal("expected loopback fetch to be blocked")
	}
}
