package middleware

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/streamplace/vod-api/token"
)

// AllowCORS echoes the request origin back when it matches one of the
// configured patterns. An empty pattern list allows any origin.
func AllowCORS(allowedOrigins []string) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			origin := r.Header.Get("Origin")
			if origin != "" && token.MatchOrigin(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "*")
				w.Header().Set("Vary", "Origin")
			}

			next(w, r, ps)
		}
		return handler
	}
}
