package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	tests := []struct {
		name   string
		status int
		body   string
		level  zapcore.Level
	}{
		{
			name:   "ok",
			status: http.StatusOK,
			body:   "hello",
			level:  zapcore.InfoLevel,
		},
		{
			name:  "implicit ok",
			body:  `{"id":"m1"}`,
			level: zapcore.InfoLevel,
		},
		{
			name:   "client error",
			status: http.StatusConflict,
			body:   "{}",
			level:  zapcore.InfoLevel,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			level:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			})

			r := httptest.NewRequest(http.MethodPost, "/api/member/gift-delivery", nil)
			Logger(logger)(next).ServeHTTP(httptest.NewRecorder(), r)

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, http.MethodPost, fields["method"])
			assert.Equal(t, "/api/member/gift-delivery", fields["uri"])
			wantStatus := tt.status
			if wantStatus == 0 {
				wantStatus = http.StatusOK
			}
			assert.EqualValues(t, wantStatus, fields["status"])
			assert.EqualValues(t, len(tt.body), fields["size"])
		})
	}
}
