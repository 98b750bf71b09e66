package metrics

import (
	"net/http"
	"strconv"
	"time"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and durations, labelled by the matched
// route pattern so label cardinality stays bounded.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, req)

		path := req.Pattern
		if path == "" {
			path = req.URL.Path
		}
		code := strconv.Itoa(sw.status)
		r.httpDur.WithLabelValues(req.Method, path, code).Observe(time.Since(start).Seconds())
		r.httpReqs.WithLabelValues(req.Method, path, code).Inc()
	})
}
