package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveFrontendRedirect(t *testing.T) {
	const frontend = "http://localhost:3000/"

	tests := []struct {
		name     string
		redirect string
		want     string
		ok       bool
	}{
		{"empty", "", "http://localhost:3000/", true},
		{"relative path", "/dashboard?tab=2", "http://localhost:3000/dashboard?tab=2", true},
		{"same origin", "http://localhost:3000/cockpits", "http://localhost:3000/cockpits", true},
		{"bare word", "evil", "", false},
		{"host without scheme", "evil.com/path", "", false},
		{"protocol relative", "//evil.com", "", false},
		{"backslash", "/\\evil.com", "", false},
		{"foreign host", "https://evil.com/cb", "", false},
		{"scheme mismatch", "https://localhost:3000/cockpits", "", false},
		{"userinfo", "http://me@localhost:3000/", "", false},
		{"javascript scheme", "javascript:alert(1)", "", false},
		{"header injection", "/ok\r\nSet-Cookie: x=1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveFrontendRedirect(tt.redirect, frontend)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFrontendRedirect_InvalidFrontend(t *testing.T) {
	_, ok := ResolveFrontendRedirect("/dashboard", "not a url")
	assert.False(t, ok)
}
