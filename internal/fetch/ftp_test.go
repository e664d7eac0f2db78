package fetch

import (
	"context"
	"testing"
	"time"
)

func TestSplitFTPURL(t *testing.T) {
	tests := []struct {
		url      string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{"ftp://roboRIO-3794.local/tmp/frc_versions/FRC_Lib_Version.ini", "roboRIO-3794.local:21", "/tmp/frc_versions/FRC_Lib_Version.ini", false},
		{"ftp://10.37.94.2/tmp/frc_versions/PCM-0-versions.ini", "10.37.94.2:21", "/tmp/frc_versions/PCM-0-versions.ini", false},
		{"ftp://10.0.0.2:2121/file.ini", "10.0.0.2:2121", "/file.ini", false},
		{"FTP://HOST/file", "HOST:21", "/file", false},
		{"http://10.0.0.2/file.ini", "", "", true},
		{"ftp:///no-host", "", "", true},
	}
	for _, tt := range tests {
		addr, path, err := splitFTPURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitFTPURL(%q) accepted, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitFTPURL(%q) failed: %v", tt.url, err)
			continue
		}
		if addr != tt.wantAddr || path != tt.wantPath {
			t.Errorf("splitFTPURL(%q) = (%q, %q), want (%q, %q)", tt.url, addr, path, tt.wantAddr, tt.wantPath)
		}
	}
}

func TestFuncFetcher_PassesThrough(t *testing.T) {
	var gotURL string
	f := Func(func(_ context.Context, url string, done func(string, []byte)) {
		gotURL = url
		done(url, []byte("payload"))
	})

	var doneURL string
	var doneBody []byte
	f.Fetch(context.Background(), "ftp://host/file", func(url string, body []byte) {
		doneURL = url
		doneBody = body
	})

	if gotURL != "ftp://host/file" || doneURL != "ftp://host/file" || string(doneBody) != "payload" {
		t.Errorf("adapter mangled the call: url %q done %q body %q", gotURL, doneURL, doneBody)
	}
}

func TestFTPFetcher_BadURLDeliversNothing(t *testing.T) {
	f := NewFTPFetcher(nil)

	done := make(chan struct{})
	f.Fetch(context.Background(), "http://not-ftp/file", func(string, []byte) {
		close(done)
	})

	select {
	case <-done:
		t.Fatal("done callback fired for an invalid URL")
	case <-time.After(100 * time.Millisecond):
	}
}
