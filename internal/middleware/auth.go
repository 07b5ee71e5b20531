// Package middleware содержит HTTP middleware сервиса sipsaver.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const userIDKey contextKey = "userID"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// AuthMiddleware выполняет проверку аутентификации пользователя
// по подписанному HMAC-SHA256 cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый AuthMiddleware с указанным секретным ключом.
// При пустом секрете генерируется случайный ключ: сессии не переживут рестарт.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware требует валидный cookie авторизации и добавляет идентификатор
// пользователя в контекст запроса. Без cookie запрос завершается 401.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		userID, ok := a.parseCookie(cookie.Value)
		if !ok {
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional добавляет идентификатор пользователя в контекст, если валидный
// cookie присутствует, и в любом случае пропускает запрос дальше.
// Используется на маршрутах, доступных гостям.
func (a *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err == nil {
			if userID, ok := a.parseCookie(cookie.Value); ok {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного пользователя.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, userID int64) {
	value := a.signUserID(strconv.FormatInt(userID, 10))

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

// ClearAuthCookie сбрасывает cookie авторизации.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) signUserID(idStr string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(idStr))
	signature := mac.Sum(nil)
	return idStr + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (int64, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return 0, false
	}

	idStr := parts[0]
	signature := parts[1]

	expected := strings.TrimPrefix(a.signUserID(idStr), idStr+".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return 0, false
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": "Login required.",
	})
}
