package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"wanderplan/globals"
	"wanderplan/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Claims of a Supabase access token. The user id is the subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" && websocket.IsWebSocketUpgrade(r) {
			// browsers cannot set headers on a websocket handshake
			if t := r.URL.Query().Get("token"); t != "" {
				tokenString = "Bearer " + t
			}
		}
		if tokenString == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "请先登录")
			return
		}

		claims, err := ValidateJWT(tokenString)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "登录已失效，请重新登录")
			return
		}

		ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.Subject)
		next(w, r.WithContext(ctx), ps)
	}
}

// ValidateJWT checks a "Bearer <token>" header value.
func ValidateJWT(tokenString string) (*Claims, error) {
	if len(tokenString) < 8 || tokenString[:7] != "Bearer " {
		return nil, errors.New("invalid token format")
	}
	if len(globals.JwtSecret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString[7:], claims, func(token *jwt.Token) (any, error) {
		return globals.JwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("unauthorized: missing subject")
	}
	return claims, nil
}
