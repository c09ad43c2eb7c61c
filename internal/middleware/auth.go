// Package middleware содержит HTTP middleware клуба участников.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role определяет, от чьего имени действует сессия.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type contextKey string

const subjectKey contextKey = "subject"

const (
	memberCookieName = "member_session"
	adminCookieName  = "admin_session"
	defaultTTL       = 24 * time.Hour
	issuer           = "memberclub"
)

var errInvalidSession = errors.New("invalid session")

// SessionClaims описывает содержимое токена сессии.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// AuthMiddleware выдаёт и проверяет сессии, хранящиеся в подписанном JWT в cookie.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой секрет заменяется случайным ключом,
// тогда сессии не переживают перезапуск процесса.
func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		now:       time.Now,
	}
}

func cookieName(role Role) string {
	if role == RoleAdmin {
		return adminCookieName
	}
	return memberCookieName
}

// IssueToken подписывает токен сессии для subject с ролью role.
func (a *AuthMiddleware) IssueToken(subject string, role Role) (string, error) {
	now := a.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Role: role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ParseToken проверяет подпись и срок действия токена и возвращает его содержимое.
func (a *AuthMiddleware) ParseToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errInvalidSession
	}
	return claims, nil
}

// SetSessionCookie выдаёт токен и устанавливает cookie сессии для роли.
func (a *AuthMiddleware) SetSessionCookie(w http.ResponseWriter, subject string, role Role) error {
	token, err := a.IssueToken(subject, role)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(role),
		Value:    token,
		Path:     "/",
		Expires:  a.now().Add(a.ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie удаляет cookie сессии для роли.
func (a *AuthMiddleware) ClearSessionCookie(w http.ResponseWriter, role Role) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(role),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Require возвращает middleware, пропускающее только запросы с действующей сессией роли role.
// Идентификатор субъекта сессии кладётся в контекст запроса.
func (a *AuthMiddleware) Require(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName(role))
			if err != nil {
				writeUnauthorized(w)
				return
			}

			claims, err := a.ParseToken(cookie.Value)
			if err != nil || claims.Role != role {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, session{id: claims.Subject, role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireMember пропускает только запросы участников.
func (a *AuthMiddleware) RequireMember(next http.Handler) http.Handler {
	return a.Require(RoleMember)(next)
}

// RequireAdmin пропускает только запросы администраторов.
func (a *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return a.Require(RoleAdmin)(next)
}

type session struct {
	id   string
	role Role
}

func subjectFromContext(ctx context.Context, role Role) (string, bool) {
	s, ok := ctx.Value(subjectKey).(session)
	if !ok || s.role != role {
		return "", false
	}
	return s.id, true
}

// MemberIDFromContext извлекает идентификатор участника из контекста запроса.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	return subjectFromContext(ctx, RoleMember)
}

// AdminIDFromContext извлекает идентификатор администратора из контекста запроса.
func AdminIDFromContext(ctx context.Context) (string, bool) {
	return subjectFromContext(ctx, RoleAdmin)
}

// WithMemberID возвращает контекст с идентификатором участника.
func WithMemberID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subjectKey, session{id: id, role: RoleMember})
}

// WithAdminID возвращает контекст с идентификатором администратора.
func WithAdminID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subjectKey, session{id: id, role: RoleAdmin})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":    "unauthorized",
		"message": http.StatusText(http.StatusUnauthorized),
	})
}
