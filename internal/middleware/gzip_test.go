package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":` + string(body) + `}`))
}

func TestGzipMiddleware_CompressesJSONResponse(t *testing.T) {
	body := `{"category":"Hot Brew","style":"Latte","size":"Medium"}`

	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body))
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if enc := res.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("content-encoding = %q, want gzip", enc)
	}

	zr, err := gzip.NewReader(res.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	decoded, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if !strings.Contains(string(decoded), `"category":"Hot Brew"`) {
		t.Fatalf("unexpected body: %s", decoded)
	}
}

func TestGzipMiddleware_SkipsClientWithoutGzip(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if enc := res.Header.Get("Content-Encoding"); enc != "" {
		t.Fatalf("content-encoding = %q, want empty", enc)
	}

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), "received") {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestGzipMiddleware_DecompressesRequestBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`{"per_week":5}`)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/estimate", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(body), `"per_week":5`) {
		t.Fatalf("request body was not decompressed: %s", body)
	}
}

func TestGzipMiddleware_BadGzipBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader("not gzip at all"))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}
