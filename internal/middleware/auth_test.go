package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(t *testing.T, a *AuthMiddleware, subject string, role Role) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	require.NoError(t, a.SetSessionCookie(w, subject, role))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := MemberIDFromContext(r.Context())
		if !ok {
			t.Fatalf("member id not in context")
		}
		if id != "member-42" {
			t.Fatalf("member id from context = %q, want member-42", id)
		}
		if _, ok := AdminIDFromContext(r.Context()); ok {
			t.Fatalf("admin id must not be set for member session")
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(sessionCookie(t, m, "member-42", RoleMember))

	w := httptest.NewRecorder()
	m.RequireMember(next).ServeHTTP(w, r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)
	other := NewAuthMiddleware("other-secret", time.Hour)

	expired := NewAuthMiddleware("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	memberCookie := sessionCookie(t, m, "member-1", RoleMember)
	forgedAdmin := *memberCookie
	forgedAdmin.Name = adminCookieName

	tests := []struct {
		name   string
		cookie *http.Cookie
		guard  func(http.Handler) http.Handler
	}{
		{
			name:  "no cookie",
			guard: m.RequireMember,
		},
		{
			name:   "signed with another key",
			cookie: sessionCookie(t, other, "member-1", RoleMember),
			guard:  m.RequireMember,
		},
		{
			name:   "expired token",
			cookie: sessionCookie(t, expired, "member-1", RoleMember),
			guard:  m.RequireMember,
		},
		{
			name:   "member token in admin cookie",
			cookie: &forgedAdmin,
			guard:  m.RequireAdmin,
		},
		{
			name:   "garbage",
			cookie: &http.Cookie{Name: memberCookieName, Value: "not-a-token"},
			guard:  m.RequireMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}

			w := httptest.NewRecorder()
			tt.guard(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"kind":"unauthorized","message":"Unauthorized"}`, w.Body.String())
		})
	}
}

func TestAuthMiddleware_AdminSession(t *testing.T) {
	m := NewAuthMiddleware("test-secret", time.Hour)

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = AdminIDFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(sessionCookie(t, m, "admin-1", RoleAdmin))
	m.RequireAdmin(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "admin-1", got)
}

func TestClearSessionCookie(t *testing.T) {
	m := NewAuthMiddleware("", 0)

	w := httptest.NewRecorder()
	m.ClearSessionCookie(w, RoleAdmin)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, adminCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
