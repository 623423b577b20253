package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Context keys for authenticated request data
const (
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
)

// JWTAuth validates HS256 bearer tokens and stores the caller's
// identity on the echo context.
type JWTAuth struct {
	secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{secret: []byte(secret)}
}

// Middleware authenticates the request or responds with 401.
func (a *JWTAuth) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return unauthorizedError(c, "Missing Authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return unauthorizedError(c, "Authorization header must be a Bearer token")
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return a.secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				return unauthorizedError(c, "Invalid or expired token")
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				return unauthorizedError(c, "Invalid token claims")
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return unauthorizedError(c, "Token missing subject")
			}
			userID, err := primitive.ObjectIDFromHex(sub)
			if err != nil {
				return unauthorizedError(c, "Token subject is not a valid user id")
			}

			role, _ := claims["role"].(string)

			c.Set(UserIDKey, userID)
			c.Set(UserRoleKey, role)
			return next(c)
		}
	}
}

// RequireRole restricts a route to callers holding one of the given
// roles. Must run after the auth middleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := GetUserRole(c)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return forbiddenError(c, "Insufficient role for this operation")
		}
	}
}

// GetUserID extracts the authenticated user's id from the context.
// Returns the zero ObjectID if the request was not authenticated.
func GetUserID(c echo.Context) primitive.ObjectID {
	if id, ok := c.Get(UserIDKey).(primitive.ObjectID); ok {
		return id
	}
	return primitive.NilObjectID
}

// GetUserRole extracts the authenticated user's role from the context.
func GetUserRole(c echo.Context) string {
	if role, ok := c.Get(UserRoleKey).(string); ok {
		return role
	}
	return ""
}

// GenerateToken signs an HS256 token for a user. Used by the auth
// handler and by tests.
func GenerateToken(secret string, userID primitive.ObjectID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.Hex(),
		"role": role,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
