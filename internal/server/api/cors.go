package api

import (
	"net/http"
	"strings"
)

// OriginValidator reports whether a request from origin may use the API.
type OriginValidator func(string) bool

type cors struct {
	h        http.Handler
	validate OriginValidator
}

var (
	allowedHeaders = []string{"Accept", "Accept-Language", "Content-Language", "Origin", "Content-Type"}
	allowedMethods = []string{"POST", "OPTIONS"}
)

const (
	corsOptionMethod         string = "OPTIONS"
	corsAllowOriginHeader    string = "Access-Control-Allow-Origin"
	corsRequestMethodHeader  string = "Access-Control-Request-Method"
	corsRequestHeadersHeader string = "Access-Control-Request-Headers"
	corsOriginHeader         string = "Origin"
)

// Unlike handlers.CORS, requests from origins that are not allowed are
// rejected instead of being served without CORS headers.
func (ch *cors) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get(corsOriginHeader)
	if !ch.validate(origin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if r.Method == corsOptionMethod {
		if _, ok := r.Header[corsRequestMethodHeader]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !contains(allowedMethods, r.Header.Get(corsRequestMethodHeader)) {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if requested := r.Header.Get(corsRequestHeadersHeader); requested != "" {
			for _, v := range strings.Split(requested, ",") {
				if !contains(allowedHeaders, http.CanonicalHeaderKey(strings.TrimSpace(v))) {
					w.WriteHeader(http.StatusForbidden)
					return
				}
			}
		}
	}

	if origin != "" {
		w.Header().Set(corsAllowOriginHeader, origin)
	}
	if r.Method == corsOptionMethod {
		return
	}
	ch.h.ServeHTTP(w, r)
}

func CORS(validator OriginValidator) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &cors{
			h:        h,
			validate: validator,
		}
	}
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
