package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayment struct {
	MemberID string `json:"memberId"`
	Amount   int64  `json:"amount"`
	SlipRef  string `json:"slipRef"`
}

// echoPayment декодирует платёж из тела запроса и возвращает его как JSON.
func echoPayment(w http.ResponseWriter, r *http.Request) {
	var p testPayment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(p)
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gunzip(t *testing.T, b []byte) []byte {
	t.Helper()

	zr, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer zr.Close()

	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

func TestGzipMiddleware_Payment(t *testing.T) {
	payment := []byte(`{"memberId":"m1","amount":499,"slipRef":"slip-1"}`)

	tests := []struct {
		name           string
		acceptGzip     bool
		compressedBody bool
		wantEncoding   string
	}{
		{name: "plain request, plain response"},
		{name: "plain request, gzip response", acceptGzip: true, wantEncoding: "gzip"},
		{name: "gzip request, plain response", compressedBody: true},
		{name: "gzip request, gzip response", acceptGzip: true, compressedBody: true, wantEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := payment
			if tt.compressedBody {
				body = gzipBytes(t, payment)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/payment/create", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoPayment)).ServeHTTP(rec, req)

			require.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, tt.wantEncoding, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			got := rec.Body.Bytes()
			if tt.wantEncoding == "gzip" {
				got = gunzip(t, got)
			}
			assert.JSONEq(t, string(payment), string(got))
		})
	}
}

func TestGzipMiddleware_MalformedGzipRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/payment/create", bytes.NewBufferString(`{"amount":499}`))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoPayment)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGzipMiddleware_NoContentStaysEmpty(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}

func TestGzipMiddleware_AlreadyEncodedPassesThrough(t *testing.T) {
	exposition := []byte("# HELP memberclub_gift_claims_total Gift claim attempts by outcome.\n")
	encoded := gzipBytes(t, exposition)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(encoded)
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, exposition, gunzip(t, rec.Body.Bytes()))
}
