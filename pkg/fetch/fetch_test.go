// Copyright 2023 Paolo Fabio Zaino
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfg "github.com/pzaino/reviewler/pkg/config"
)

func testConfig() cfg.HTTP {
	return cfg.HTTP{Timeout: 5, RateLimit: "100,100"}
}

func TestFetchOK(t *testing.T) {
	var gotReferer, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.SetUserAgent("test-agent/1.0")

	body, finalURL, err := f.Fetch(context.Background(), srv.URL+"/page", srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "<html>ok</html>" {
		t.Errorf("unexpected body: %q", body)
	}
	if finalURL != srv.URL+"/page" {
		t.Errorf("unexpected final URL: %q", finalURL)
	}
	if gotReferer != srv.URL {
		t.Errorf("referer not sent, got %q", gotReferer)
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("user agent not pinned, got %q", gotUA)
	}
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// No user agent configured: a browser one is picked instead of the
	// resty default.
	f, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, _, err := f.Fetch(context.Background(), srv.URL, ""); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA == "" || strings.HasPrefix(gotUA, "go-resty") {
		t.Errorf("expected a browser user agent, got %q", gotUA)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, _, err := f.Fetch(context.Background(), srv.URL, ""); err == nil {
		t.Errorf("expected an error on 403 response")
	}
}

func TestFetchFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})

	f, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	body, finalURL, err := f.Fetch(context.Background(), srv.URL+"/start", "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body != "landed" {
		t.Errorf("unexpected body: %q", body)
	}
	if finalURL != srv.URL+"/final" {
		t.Errorf("final URL = %q, expected %q", finalURL, srv.URL+"/final")
	}
}

func TestFetchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := f.Fetch(ctx, srv.URL, ""); err == nil {
		t.Errorf("expected an error with a canceled context")
	}
}

func TestParseRateLimit(t *testing.T) {
	tests := []struct {
		in    string
		rps   float64
		burst int
	}{
		{"10,20", 10, 20},
		{"0.5,1", 0.5, 1},
		{"garbage", 1, 2},
		{"", 1, 2},
		{"-1,-5", 1, 2},
	}
	for _, tt := range tests {
		l := parseRateLimit(tt.in)
		if float64(l.Limit()) != tt.rps || l.Burst() != tt.burst {
			t.Errorf("parseRateLimit(%q) = (%v, %d), expected (%v, %d)",
				tt.in, float64(l.Limit()), l.Burst(), tt.rps, tt.burst)
		}
	}
}
