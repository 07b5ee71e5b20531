package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
)

var compressibleTypes = []string{"application/json", "text/html"}

type compressWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	compress    bool
	wroteHeader bool
}

func (c *compressWriter) Header() http.Header {
	return c.w.Header()
}

func (c *compressWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	contentType := c.w.Header().Get("Content-Type")
	for _, t := range compressibleTypes {
		if strings.HasPrefix(contentType, t) {
			c.compress = true
			break
		}
	}

	if c.compress {
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")
	}

	c.w.WriteHeader(statusCode)
}

func (c *compressWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.compress {
		return c.zw.Write(p)
	}
	return c.w.Write(p)
}

func (c *compressWriter) close() error {
	if c.compress {
		return c.zw.Close()
	}
	return nil
}

// GzipMiddleware распаковывает сжатые тела запросов и сжимает ответы
// типов application/json и text/html, если клиент поддерживает gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = zr
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{w: w, zw: gzip.NewWriter(w)}
		defer cw.close()

		next.ServeHTTP(cw, r)
	})
}
