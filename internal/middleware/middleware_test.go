package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanmark/forensics/pkg/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when not present", func(t *testing.T) {
		var seen string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.RequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		reqID := rec.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(reqID)
		assert.NoError(t, err, reqID)
		assert.Equal(t, reqID, seen)
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		handler := RequestID()(ok)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(HeaderRequestID, "upstream-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-123", rec.Header().Get(HeaderRequestID))
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		handler := RequestID()(ok)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("x", 500))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
	})
}

func TestLogging(t *testing.T) {
	t.Run("logs request details", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewWithWriter("info", &buf)

		handler := Chain(RequestID(), Logging(log))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("hello"))
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/analyze", nil))

		out := buf.String()
		assert.Contains(t, out, "http request")
		assert.Contains(t, out, "method=POST")
		assert.Contains(t, out, "path=/v1/analyze")
		assert.Contains(t, out, "status=200")
		assert.Contains(t, out, "bytes=5")
		assert.Contains(t, out, rec.Header().Get(HeaderRequestID))
	})

	t.Run("captures correct status code", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Logging(logger.NewWithWriter("info", &buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		assert.Contains(t, buf.String(), "status=422")
	})
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Chain(RequestID(), Recovery(logger.NewWithWriter("error", &buf)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("detector exploded")
		}))

		rec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var env ErrorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.False(t, env.Success)
		assert.Equal(t, APIVersion, env.APIVersion)
		assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)

		assert.Contains(t, buf.String(), "panic recovered")
		assert.Contains(t, buf.String(), "detector exploded")
		assert.Contains(t, buf.String(), rec.Header().Get(HeaderRequestID))
	})

	t.Run("re-panics on abort", func(t *testing.T) {
		handler := Recovery(logger.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.Panics(t, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
		})
	})
}

func TestCORS(t *testing.T) {
	t.Run("allows all origins when configured", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		rec := httptest.NewRecorder()
		CORS([]string{"*"})(ok).ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allows specific origins", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		CORS([]string{"https://app.example"})(ok).ServeHTTP(rec, req)

		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("rejects disallowed origins", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		CORS([]string{"https://app.example"})(ok).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("handles preflight requests", func(t *testing.T) {
		called := false
		handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/v1/analyze", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, called)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})
}

func TestRateLimit(t *testing.T) {
	request := func(h http.Handler, path, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allows requests under limit", func(t *testing.T) {
		h := RateLimit(3, false)(ok)
		for i := 0; i < 3; i++ {
			rec := request(h, "/v1/signals", "10.0.0.1:1234")
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		h := RateLimit(2, false)(ok)
		request(h, "/", "10.0.0.1:1")
		last := request(h, "/", "10.0.0.1:2")
		assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))

		rec := request(h, "/", "10.0.0.1:3")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var env ErrorEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	})

	t.Run("skips rate limiting for health checks", func(t *testing.T) {
		h := RateLimit(1, false)(ok)
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, request(h, "/healthz", "10.0.0.1:1").Code)
		}
	})

	t.Run("rate limits per IP", func(t *testing.T) {
		h := RateLimit(1, false)(ok)
		assert.Equal(t, http.StatusOK, request(h, "/", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, request(h, "/", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusOK, request(h, "/", "10.0.0.2:1").Code)
	})

	t.Run("window resets", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Minute, false)
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }

		allowed, _, _ := rl.take("a")
		assert.True(t, allowed)
		allowed, _, resetIn := rl.take("a")
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, resetIn)

		now = now.Add(61 * time.Second)
		allowed, remaining, _ := rl.take("a")
		assert.True(t, allowed)
		assert.Zero(t, remaining)
	})

	t.Run("sweeps expired clients", func(t *testing.T) {
		rl := NewRateLimiter(5, time.Minute, false)
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		rl.now = func() time.Time { return now }
		for _, c := range []string{"a", "b", "c"} {
			rl.take(c)
		}
		now = now.Add(2 * time.Minute)
		rl.take("d")
		assert.Len(t, rl.requests, 1)
	})

	t.Run("zero disables", func(t *testing.T) {
		h := RateLimit(0, false)(ok)
		for i := 0; i < 10; i++ {
			assert.Equal(t, http.StatusOK, request(h, "/", "10.0.0.1:1").Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		expected   string
	}{
		{"remote addr", "192.168.1.1:8080", nil, false, "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", nil, false, "192.168.1.1"},
		{"xff ignored without trust", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5"}, false, "10.0.0.1"},
		{"xff first hop", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"}, true, "203.0.113.5"},
		{"x-real-ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, true, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(req, tt.trustProxy))
		})
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+">")
				next.ServeHTTP(w, r)
				order = append(order, "<"+name)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestMaxBodySize(t *testing.T) {
	read := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
				return
			}
			WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows small body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MaxBodySize(100)(read).ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader("small")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects declared oversize body up front", func(t *testing.T) {
		rec := httptest.NewRecorder()
		MaxBodySize(10)(read).ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 100))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("stops undeclared oversize body while reading", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 100))))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		MaxBodySize(10)(read).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	ContentType("application/json")(ok).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
