package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/0xReLogic/Tandem/internal/config"
)

func TestBuildRelaysThroughServer(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer peer.Close()

	for _, tc := range []struct {
		cfg  config.Config
		want string
	}{
		{
			config.Config{Port: 80, ServiceID: "Microservice A v2", PeerURL: peer.URL, RelayFormat: "arrow"},
			"Microservice A v2 -> hello",
		},
		{
			config.Config{Port: 80, ServiceID: "Microservice-a v2", PeerURL: peer.URL, RelayFormat: "labeled"},
			"Microservice-a v2. Response from Microservice B: hello",
		},
	} {
		srv, closeFn, err := Build(&tc.cfg)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if srv.ListenAddr != ":80" {
			t.Errorf("ListenAddr = %q, want :80", srv.ListenAddr)
		}

		front := httptest.NewServer(srv.Handler())
		resp, err := http.Get(front.URL + "/")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		front.Close()
		closeFn()

		if resp.StatusCode != http.StatusOK || string(body) != tc.want {
			t.Errorf("%s: got %d %q, want 200 %q", tc.cfg.RelayFormat, resp.StatusCode, body, tc.want)
		}
	}
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	cfg := config.Config{Port: 80, ServiceID: "x", PeerURL: "http://microservice-b:80", RelayFormat: "json"}
	if _, _, err := Build(&cfg); err == nil {
		t.Fatal("expected error for unknown relay format")
	}
}

func TestRunFailsOnBadConfig(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	t.Setenv("RELAY_FORMAT", "")
	os.Unsetenv("RELAY_FORMAT")
	t.Setenv("PEER_URL", "not a url")

	err := Run(context.Background(), config.Defaults{ServiceID: "Microservice A v2", RelayFormat: "arrow"})
	if err == nil {
		t.Fatal("expected Run to fail on an invalid peer url")
	}
}

func TestRunBackendServesGreeting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	t.Setenv(config.FileEnv, "")
	t.Setenv("PORT", strconv.Itoa(port))
	t.Setenv("GREETING", "hi from b")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunBackend(ctx, config.Defaults{ServiceID: "Microservice B", RelayFormat: "arrow"})
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/"
	var body []byte
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if string(body) != "hi from b" {
		t.Errorf("body = %q, want greeting", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunBackend returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunBackend did not stop")
	}
}

func TestHealthzNotReadyWhileRelayKeepsServing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	down := "http://" + ln.Addr().String()
	ln.Close()

	cfg := config.Config{
		Port:        80,
		ServiceID:   "Microservice A v2",
		PeerURL:     down,
		RelayFormat: "arrow",
		Health:      config.HealthConfig{PeerCheckInterval: 50 * time.Millisecond},
	}
	srv, closeFn, err := Build(&cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer closeFn()
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(front.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if code, _ := get("/healthz"); code == http.StatusServiceUnavailable {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("/healthz never reported the peer as down")
		}
		time.Sleep(20 * time.Millisecond)
	}

	code, body := get("/")
	if code != http.StatusInternalServerError || body != "Microservice A v2. Failed to fetch data from Microservice B" {
		t.Errorf("relay got %d %q, want the failure response", code, body)
	}
}
