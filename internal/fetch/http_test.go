package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Fetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>hello</body></html>`))
	}))
	defer server.Close()

	c := NewClient(Config{Profile: ProfileBrowser})

	body, err := c.Fetch(t.Context(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(string(body), "hello") {
		t.Errorf("body = %q, want it to contain %q", body, "hello")
	}
}

func TestClient_Fetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		errName string
	}{
		{
			name:    "403 is blocked",
			status:  http.StatusForbidden,
			check:   IsBlocked,
			errName: "BlockedError",
		},
		{
			name:   "429 is throttle but not blocked",
			status: http.StatusTooManyRequests,
			check: func(err error) bool {
				return IsThrottle(err) && !IsBlocked(err)
			},
			errName: "HTTPStatusError(429)",
		},
		{
			name:   "500 is a plain status error",
			status: http.StatusInternalServerError,
			check: func(err error) bool {
				var se *HTTPStatusError
				return errors.As(err, &se) && se.Code == http.StatusInternalServerError
			},
			errName: "HTTPStatusError(500)",
		},
		{
			name:    "200 with challenge body is blocked",
			status:  http.StatusOK,
			body:    `<html><body>Checking your browser before accessing example.com</body></html>`,
			check:   IsBlocked,
			errName: "BlockedError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(Config{Profile: ProfileAPI})

			_, err := c.Fetch(t.Context(), server.URL)
			if err == nil {
				t.Fatal("Fetch() expected error, got nil")
			}
			if !tt.check(err) {
				t.Errorf("Fetch() error = %v, want %s", err, tt.errName)
			}
		})
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(Config{Timeout: 20 * time.Millisecond})

	_, err := c.Fetch(t.Context(), server.URL)
	if err == nil {
		t.Fatal("Fetch() expected timeout error, got nil")
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Errorf("Fetch() error = %v, want TimeoutError", err)
	}
	if !IsTransient(err) {
		t.Error("timeout should be transient")
	}
}

func TestClient_Fetch_ConnectionRefused(t *testing.T) {
	// Reserve a port and close it so the connection is refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{})

	_, err := c.Fetch(t.Context(), url)
	if err == nil {
		t.Fatal("Fetch() expected error, got nil")
	}
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("Fetch() error = %v, want NetworkError", err)
	}
}

func TestProfiles_SetUserAgent(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer server.Close()

	c := NewClient(Config{Profile: ProfileAPI})
	if _, err := c.Fetch(t.Context(), server.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotUA != "wanderdesk/1.0" {
		t.Errorf("User-Agent = %q, want wanderdesk/1.0", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}

	c = NewClient(Config{Profile: ProfileBrowser, UserAgent: "custom/2.0"})
	if _, err := c.Fetch(t.Context(), server.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotUA != "custom/2.0" {
		t.Errorf("User-Agent override = %q, want custom/2.0", gotUA)
	}
}
