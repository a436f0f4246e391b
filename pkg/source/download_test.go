package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastDownloader() *Downloader {
	d := NewDownloader(5 * time.Second)
	d.backoff = func(int) time.Duration { return time.Millisecond }
	return d
}

func TestDownloaderRetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int32
		expectError   bool
		expectExpired bool
		errorContains string
	}{
		{name: "success on first attempt", responses: []int{200}, expectCalls: 1},
		{name: "success after 5xx", responses: []int{500, 200}, expectCalls: 2},
		{name: "404 is an expired link", responses: []int{404}, expectCalls: 1, expectError: true, expectExpired: true, errorContains: "status code 404"},
		{name: "403 is an expired link", responses: []int{500, 403}, expectCalls: 2, expectError: true, expectExpired: true},
		{name: "400 not retried", responses: []int{400}, expectCalls: 1, expectError: true, errorContains: "client error: status code 400"},
		{name: "all 5xx", responses: []int{500, 502, 503}, expectCalls: 3, expectError: true, errorContains: "server error: status code 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.responses[len(tt.responses)-1]
				if int(n) <= len(tt.responses) {
					status = tt.responses[n-1]
				}
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte("png-bytes"))
				}
			}))
			defer srv.Close()

			data, err := fastDownloader().Download(context.Background(), srv.URL+"/CountryState_Yan.png")
			if calls != tt.expectCalls {
				t.Errorf("expected %d calls, got %d", tt.expectCalls, calls)
			}
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err, tt.errorContains)
				}
				if errors.Is(err, ErrLinkExpired) != tt.expectExpired {
					t.Errorf("ErrLinkExpired = %v, want %v", errors.Is(err, ErrLinkExpired), tt.expectExpired)
				}
				return
			}
			if err != nil || string(data) != "png-bytes" {
				t.Fatalf("unexpected result %q err=%v", data, err)
			}
		})
	}
}

func TestDownloaderRejectsOversizedBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "image/png")
		// Chunked, so the size is only known after reading.
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte(strings.Repeat("x", 11)))
	}))
	defer srv.Close()

	d := fastDownloader()
	d.maxBytes = 10
	_, err := d.Download(context.Background(), srv.URL)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("oversized body should not be retried, calls=%d", n)
	}

	d.maxBytes = 11
	data, err := d.Download(context.Background(), srv.URL)
	if err != nil || len(data) != 11 {
		t.Fatalf("body at the limit should pass: len=%d err=%v", len(data), err)
	}
}

func TestDownloaderContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	d := NewDownloader(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Download(ctx, srv.URL); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}

func TestFilenameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://cdn.discordapp.com/attachments/1/2/CountryState_Yiguo.png?ex=680cf88b&is=680ba70b&hm=88e8": "CountryState_Yiguo.png",
		"https://cdn.example.com/a/b/CountryState_Yumin.png":                                                "CountryState_Yumin.png",
		"CountryState_Ying.png?x=1": "CountryState_Ying.png",
	}
	for in, want := range cases {
		if got := FilenameFromURL(in); got != want {
			t.Errorf("FilenameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
