// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"errors"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestSafeJoinPath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		parts   []string
		wantErr bool
	}{
		{"simple", []string{"videos", "1-a.mp4"}, false},
		{"nested", []string{"videos", "2026/1-a.mp4"}, false},
		{"base itself", []string{"."}, false},
		{"escape", []string{"..", "etc", "passwd"}, true},
		{"escape via component", []string{"videos", "../../x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoinPath(base, tt.parts...)
			if tt.wantErr {
				if !errors.Is(err, ErrPathTraversal) {
					t.Errorf("SafeJoinPath(%v) error = %v, want ErrPathTraversal", tt.parts, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SafeJoinPath(%v): %v", tt.parts, err)
			}
			if want := filepath.Join(append([]string{base}, tt.parts...)...); got != want {
				t.Errorf("SafeJoinPath = %q, want %q", got, want)
			}
		})
	}
}

func TestContainsPathTraversal(t *testing.T) {
	tests := map[string]bool{
		"1-video.mp4":      false,
		"a/b/c.mp4":        false,
		"a/../b.mp4":       false,
		"..":               true,
		"../x.mp4":         true,
		"a/../../x.mp4":    true,
		"/etc/passwd":      true,
		"dots..in..name":   false,
		"..hidden-ish.mp4": false,
	}
	for in, want := range tests {
		if got := ContainsPathTraversal(in); got != want {
			t.Errorf("ContainsPathTraversal(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":   true,
		"10.1.2.3":    true,
		"172.16.0.1":  true,
		"192.168.1.1": true,
		"203.0.113.1": true,
		"::1":         true,
		"fd00::1":     true,
		"8.8.8.8":     false,
		"172.32.0.1":  false,
		"2606:4700::": false,
	}
	for in, want := range tests {
		if got := IsPrivateIP(net.ParseIP(in)); got != want {
			t.Errorf("IsPrivateIP(%s) = %v, want %v", in, got, want)
		}
	}
	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) should be true")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"direct public", "8.8.8.8:5000", nil, "8.8.8.8"},
		{"public peer ignores headers", "8.8.8.8:5000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "8.8.8.8"},
		{"proxy real ip", "127.0.0.1:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"proxy forwarded for", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"proxy garbage header", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "nope"}, "10.0.0.2"},
		{"no port", "8.8.4.4", nil, "8.8.4.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
