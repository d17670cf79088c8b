package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-jwt/jwt/v5/request"
	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/srvcerror"
)

type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleStudent   Role = "Student"
	RoleAssistant Role = "Assistant"
	RoleLecturer  Role = "Lecturer"
)

// CanViewClass reports whether the role may list every student's submissions
func (r Role) CanViewClass() bool {
	return r == RoleAdmin || r == RoleLecturer || r == RoleAssistant
}

type JwtClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type ClaimsKeyType string

var CtxJwtClaimsKey ClaimsKeyType = "jwtClaims"

var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 24 * time.Hour

func GenerateJWT(userID, username, name string, role Role, jwtKey []byte, now time.Time) (string, error) {
	claims := &JwtClaims{
		UserID:   userID,
		Username: username,
		Name:     name,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

func ValidateJWT(tokenStr string, jwtKey []byte) (*JwtClaims, error) {
	claims := &JwtClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, fmt.Errorf("%w: signature", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Inspect decodes the claims of a token without verifying its signature.
// Clients use it to show who is logged in and to notice expiry early.
func Inspect(tokenStr string) (*JwtClaims, error) {
	claims := &JwtClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Expired reports whether the token is expired at t. Tokens without
// an expiry never expire.
func (c *JwtClaims) Expired(t time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !t.Before(c.ExpiresAt.Time)
}

// tokens are read from the Authorization header, or from the token query
// argument on live channel upgrades
var extractor = request.MultiExtractor{
	request.BearerExtractor{},
	request.ArgumentExtractor{"token"},
}

// GetJwtAuthMiddleware validates JWT token and adds the claims to the request context
func GetJwtAuthMiddleware(jwtKey []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, err := extractor.ExtractToken(r)
			if err != nil {
				if errors.Is(err, request.ErrNoTokenInRequest) {
					ctx := context.WithValue(r.Context(), CtxJwtClaimsKey, (*JwtClaims)(nil))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				httpjson.WriteErrorJson(w, err.Error(), http.StatusUnauthorized, srvcerror.ErrCodeUnauthorized)
				return
			}

			claims, err := ValidateJWT(token, jwtKey)
			if err != nil {
				httpjson.WriteErrorJson(w, "invalid token", http.StatusUnauthorized, srvcerror.ErrCodeUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxJwtClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

// ClaimsFromContext returns the claims set by the middleware, nil when anonymous
func ClaimsFromContext(ctx context.Context) *JwtClaims {
	claims, _ := ctx.Value(CtxJwtClaimsKey).(*JwtClaims)
	return claims
}
