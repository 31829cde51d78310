package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trafficgate/postback-gateway/internal/request"
)

func TestDoSuccess(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	r := request.Rendered{
		Method:  http.MethodGet,
		URL:     srv.URL + "/pb?clickid=abc123",
		Headers: http.Header{"Authorization": []string{"Bearer tok"}},
	}

	res := New(0).Do(context.Background(), r, time.Second)
	if !res.Succeeded() {
		t.Fatalf("expected success, got status=%v err=%v", res.StatusCode, res.Err)
	}
	if *res.StatusCode != http.StatusOK {
		t.Errorf("status = %d", *res.StatusCode)
	}
	if res.Excerpt != "OK" {
		t.Errorf("excerpt = %q", res.Excerpt)
	}
	if gotPath != "/pb?clickid=abc123" {
		t.Errorf("server saw %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestDoPostBody(t *testing.T) {
	var gotBody, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		gotCT = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	r := request.Rendered{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    `{"clickid":"abc123"}`,
	}

	res := New(0).Do(context.Background(), r, time.Second)
	if !res.Succeeded() {
		t.Fatalf("expected success, got %v", res)
	}
	if gotBody != `{"clickid":"abc123"}` {
		t.Errorf("server saw body %q", gotBody)
	}
	if gotCT != "application/json" {
		t.Errorf("content type = %q", gotCT)
	}
}

func TestDoNon2xxIsFailure(t *testing.T) {
	for _, code := range []int{301, 400, 404, 500, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		res := New(0).Do(context.Background(), request.Rendered{Method: http.MethodGet, URL: srv.URL}, time.Second)
		srv.Close()

		if res.Succeeded() {
			t.Errorf("status %d classified as success", code)
		}
		if res.StatusCode == nil || *res.StatusCode != code {
			t.Errorf("status code = %v, want %d", res.StatusCode, code)
		}
	}
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	res := New(0).Do(context.Background(), request.Rendered{Method: http.MethodGet, URL: srv.URL}, 30*time.Millisecond)
	if res.Err == nil {
		t.Fatal("expected timeout error")
	}
	if res.StatusCode != nil {
		t.Errorf("status code = %v, want nil on network failure", *res.StatusCode)
	}
}

func TestDoConnectionRefused(t *testing.T) {
	// reserved port with nothing listening
	res := New(0).Do(context.Background(), request.Rendered{Method: http.MethodGet, URL: "http://127.0.0.1:1"}, time.Second)
	if res.Err == nil || res.StatusCode != nil {
		t.Fatalf("expected network error, got %+v", res)
	}
}

func TestDoExcerptBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 10_000)))
	}))
	defer srv.Close()

	res := New(64).Do(context.Background(), request.Rendered{Method: http.MethodGet, URL: srv.URL}, time.Second)
	if len(res.Excerpt) != 64 {
		t.Errorf("excerpt length = %d, want 64", len(res.Excerpt))
	}
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{0, 2 * time.Second}, // clamped
	}
	for _, tt := range tests {
		if got := Backoff(base, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}

	// monotonically non-decreasing across a delivery
	prev := time.Duration(0)
	for n := 1; n <= 8; n++ {
		d := Backoff(time.Second, n)
		if d < prev {
			t.Fatalf("backoff shrank at attempt %d: %v < %v", n, d, prev)
		}
		prev = d
	}
}
