package health

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPeerReachable(t *testing.T) {
	peer := httptest.NewServer(http.NotFoundHandler())
	defer peer.Close()

	c, err := New(peer.URL, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	waitFor(t, c.h.IsHealthy)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestPeerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := New("http://"+addr, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	waitFor(t, func() bool {
		rec := httptest.NewRecorder()
		c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code == http.StatusServiceUnavailable
	})
	if c.h.IsHealthy() {
		t.Error("checker should report unhealthy")
	}
}

func TestDisabledCheckIsHealthy(t *testing.T) {
	c, err := New("http://microservice-b:80", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if !c.h.IsHealthy() {
		t.Error("checker without checks should be healthy")
	}
}

func TestDialAddr(t *testing.T) {
	for in, want := range map[string]string{
		"http://microservice-b:80":  "microservice-b:80",
		"http://microservice-b":     "microservice-b:80",
		"https://microservice-b":    "microservice-b:443",
		"http://127.0.0.1:9091/x?y": "127.0.0.1:9091",
	} {
		got, err := dialAddr(in)
		if err != nil || got != want {
			t.Errorf("dialAddr(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := dialAddr("/relative"); err == nil {
		t.Error("expected error for url without host")
	}
}
