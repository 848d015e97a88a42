package fhir

import (
	"net/url"
	"strings"
)

/*
ResolveNext turns a bundle "next" link into a url on the active base.
Relative links are resolved against base. Absolute links that point at a
different host (servers behind a proxy often report their internal name)
are rewritten onto base, keeping only the query.
*/
func ResolveNext(base, next string) string {
	if next == "" {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return next
	}

	if !strings.HasPrefix(next, "http") {
		ref, err := url.Parse(next)
		if err != nil {
			return ""
		}
		return baseURL.ResolveReference(ref).String()
	}

	nextURL, err := url.Parse(next)
	if err != nil {
		return ""
	}
	if nextURL.Host != baseURL.Host {
		return strings.TrimRight(base, "/") + "/Observation?" + nextURL.RawQuery
	}
	return next
}
