package middleware

import (
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/askql/internal/metrics"
	"github.com/cortexai/askql/internal/models"
)

// Recovery turns a handler panic into a JSON 500. When the handler already
// started writing, the response is left as is; the client sees a truncated body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.PanicsRecovered.Inc()

			reqID := GetRequestID(r.Context())
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bool("headers_sent", ww.Status() != 0).
				Msg("panic recovered")

			if ww.Status() != 0 {
				return
			}
			if reqID != "" {
				models.WriteError(ww, http.StatusInternalServerError, "internal server error", "request_id: "+reqID)
				return
			}
			models.WriteError(ww, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(ww, r)
	})
}
