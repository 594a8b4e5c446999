package auth

import (
	"strconv"
	"strings"
)

const (
	maxUsernameBaseLength = 20
	fallbackUsername      = "user"
)

// UsernameBase derives a username stem from the local part of an email:
// only [A-Za-z0-9_] survive, truncated to 20 characters, "user" when empty.
func UsernameBase(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}

	var b strings.Builder
	for _, r := range local {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxUsernameBaseLength {
				break
			}
		}
	}

	if b.Len() == 0 {
		return fallbackUsername
	}
	return b.String()
}

// UsernameCandidate returns the n-th collision candidate for base:
// base itself for n == 0, then base_1, base_2, ...
func UsernameCandidate(base string, n int) string {
	if n <= 0 {
		return base
	}
	return base + "_" + strconv.Itoa(n)
}
