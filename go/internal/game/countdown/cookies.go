package countdown

import (
	"net/http"
	"net/url"
)

// CookieSource is a read-only view of the client's cookies
type CookieSource interface {
	Cookie(name string) (string, bool)
}

// HeaderSource reads cookies from a raw Cookie header, the same string a
// browser exposes as document.cookie
type HeaderSource string

// Cookie returns the named cookie's value
func (h HeaderSource) Cookie(name string) (string, bool) {
	if h == "" {
		return "", false
	}
	req := &http.Request{Header: http.Header{"Cookie": []string{string(h)}}}
	c, err := req.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// JarSource reads cookies the jar would send to URL
type JarSource struct {
	Jar http.CookieJar
	URL *url.URL
}

// Cookie returns the named cookie's value
func (j JarSource) Cookie(name string) (string, bool) {
	if j.Jar == nil || j.URL == nil {
		return "", false
	}
	for _, c := range j.Jar.Cookies(j.URL) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
