package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userNameKey contextKey = "user_name"
)

// AuthMiddleware проверяет JWT токен и кладет user_id из claims в контекст запроса
func AuthMiddleware(jwtKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Получаем токен из заголовка
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				unauthorized(w, "Authorization header is required")
				return
			}

			// Убираем префикс "Bearer " если он есть
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			// Парсим и проверяем токен
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return jwtKey, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				unauthorized(w, "Invalid token claims")
				return
			}
			userID, ok := claimUserID(claims["user_id"])
			if !ok {
				unauthorized(w, "Invalid user_id in token")
				return
			}
			name, _ := claims["name"].(string)

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, name)))
		})
	}
}

// claimUserID принимает строковый или числовой user_id
func claimUserID(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), v > 0
	default:
		return "", false
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WithUser кладет пользователя в контекст
func WithUser(ctx context.Context, userID, name string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, userNameKey, name)
}

// UserIDFromContext получает user_id из контекста
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in context")
	}
	return userID, nil
}

// UserNameFromContext отображаемое имя пользователя из токена, может быть пустым
func UserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(userNameKey).(string)
	return name
}

// IssueToken подписывает токен для пользователя (используется ledgerctl и в тестах)
func IssueToken(jwtKey []byte, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
}
