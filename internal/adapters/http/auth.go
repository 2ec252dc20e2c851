package http

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey ctxKey = "subject"

// JWTMiddleware requires an HS256 bearer token on mutating requests.
// Reads pass through, and an empty secret disables the check.
func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		// Filtering is a read even though it is a POST.
		if c.Method() == fiber.MethodPost && strings.HasSuffix(c.Path(), "/points/filter") {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return errUnauthorized(c, "missing bearer token")
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return errUnauthorized(c, "invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return errUnauthorized(c, "token has no subject")
		}

		c.SetUserContext(context.WithValue(c.UserContext(), subjectKey, sub))
		LoggerFromCtx(c.UserContext()).Debug("authenticated", "subject", sub)
		return c.Next()
	}
}

// SubjectFromCtx returns the authenticated token subject, if any.
func SubjectFromCtx(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// SignToken issues an HS256 token for subject. Used by operators and tests.
func SignToken(secret, subject string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).SignedString([]byte(secret))
}
