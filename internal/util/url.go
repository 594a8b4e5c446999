package util

import (
	"net/url"
	"strings"
)

// ResolveFrontendRedirect turns a post-login redirect parameter into an
// absolute URL on the frontend origin. Accepted forms are an empty value
// (frontend root), a root-relative path, or an absolute http(s) URL whose
// scheme and host equal the frontend's. Anything else reports false.
func ResolveFrontendRedirect(redirect, frontendURL string) (string, bool) {
	frontend, err := url.Parse(frontendURL)
	if err != nil || frontend.Host == "" {
		return "", false
	}
	root := strings.TrimRight(frontendURL, "/")

	if redirect == "" {
		return root + "/", true
	}
	// CR/LF would split the Location header; browsers read "\" as "/".
	if strings.ContainsAny(redirect, "\r\n\\") {
		return "", false
	}

	if strings.HasPrefix(redirect, "/") {
		if strings.HasPrefix(redirect, "//") {
			return "", false
		}
		return root + redirect, true
	}

	target, err := url.Parse(redirect)
	if err != nil || target.Host == "" || target.User != nil {
		return "", false
	}
	if !strings.EqualFold(target.Scheme, frontend.Scheme) ||
		!strings.EqualFold(target.Host, frontend.Host) {
		return "", false
	}
	return target.String(), true
}
