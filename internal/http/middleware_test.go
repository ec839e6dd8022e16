package httpx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/repo-analyzer/internal/domain/model"
)

func jsonHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func gunzip(t *testing.T, b []byte) string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(out)
}

func TestCompression(t *testing.T) {
	large := `{"files":"` + strings.Repeat("a", 4096) + `"}`

	tests := []struct {
		name           string
		method         string
		acceptEncoding string
		handler        http.Handler
		minSize        int
		wantGzip       bool
		wantBody       string
	}{
		{
			name:           "json accepted",
			method:         http.MethodGet,
			acceptEncoding: "gzip, deflate",
			handler:        jsonHandler(http.StatusOK, large),
			wantGzip:       true,
			wantBody:       large,
		},
		{
			name:           "gzip refused with q=0",
			method:         http.MethodGet,
			acceptEncoding: "gzip;q=0, deflate",
			handler:        jsonHandler(http.StatusOK, large),
			wantBody:       large,
		},
		{
			name:           "no accept encoding",
			method:         http.MethodGet,
			handler:        jsonHandler(http.StatusOK, large),
			wantBody:       large,
		},
		{
			name:           "below min size",
			method:         http.MethodGet,
			acceptEncoding: "gzip",
			handler:        jsonHandler(http.StatusOK, `{"ok":true}`),
			minSize:        1024,
			wantBody:       `{"ok":true}`,
		},
		{
			name:           "error responses compress too",
			method:         http.MethodGet,
			acceptEncoding: "gzip",
			handler:        jsonHandler(http.StatusNotFound, large),
			wantGzip:       true,
			wantBody:       large,
		},
		{
			name:           "binary content type",
			method:         http.MethodGet,
			acceptEncoding: "gzip",
			handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = io.WriteString(w, large)
			}),
			wantBody: large,
		},
		{
			name:           "already encoded",
			method:         http.MethodGet,
			acceptEncoding: "gzip",
			handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Content-Encoding", "br")
				_, _ = io.WriteString(w, large)
			}),
			wantBody: large,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Compression(CompressionConfig{Level: 6, MinSize: tt.minSize})(tt.handler)
			req := httptest.NewRequest(tt.method, "/api/results/x.json", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.wantGzip {
				assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
				assert.Equal(t, tt.wantBody, gunzip(t, rec.Body.Bytes()))
				return
			}
			assert.NotEqual(t, "gzip", rec.Header().Get("Content-Encoding"))
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestCompression_HEADPassesThrough(t *testing.T) {
	h := Compression(CompressionConfig{})(http.HandlerFunc(healthHandler))
	req := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}

func TestAcceptsGzip(t *testing.T) {
	assert.True(t, acceptsGzip("gzip"))
	assert.True(t, acceptsGzip("deflate, GZIP;q=0.5"))
	assert.False(t, acceptsGzip("gzip;q=0"))
	assert.False(t, acceptsGzip("gzip; q=0.000"))
	assert.False(t, acceptsGzip("x-gzip, br"))
	assert.False(t, acceptsGzip(""))
}

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal_error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), `"error":"boom"`)
	assert.Contains(t, logs.String(), `"path":"/api/status"`)
}

func TestLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Logging(logger)(jsonHandler(http.StatusAccepted, `{}`))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	assert.Contains(t, logs.String(), `"method":"POST"`)
	assert.Contains(t, logs.String(), `"path":"/api/analyze"`)
	assert.Contains(t, logs.String(), `"status":202`)
}

func TestRequireBearer_StoresPrincipal(t *testing.T) {
	var got model.Principal
	h := RequireBearer(stubVerifier{token: "good"}, nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/get-keys", nil)
	req.Header.Set("Authorization", "Bearer   good ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "z001234", got.Subject)

	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "BEARER abc", want: "abc", ok: true},
		{header: "Basic dXNlcjpwdw==", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
