package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/handler"
)

const uidKey = "uid"

var ErrNoVerifier = errors.New("no identity verifier configured")

// TokenVerifier turns a bearer token into a stable user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type FirebaseVerifier struct {
	authClient *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{authClient: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	t, err := v.authClient.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}
	return t.UID, nil
}

// Client exposes the Firebase auth client for public profile lookups.
func (v *FirebaseVerifier) Client() *auth.Client {
	return v.authClient
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware with a nil verifier rejects every authenticated route.
func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr, ok := bearer(c.Request())
		if !ok {
			return c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized", "missing bearer token"))
		}
		uid, err := m.verify(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid_token", "token could not be verified"))
		}
		c.Set(uidKey, uid)
		return next(c)
	}
}

// OptionalAuth sets the uid when a valid token is present and otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if tokenStr, ok := bearer(c.Request()); ok {
			if uid, err := m.verify(c.Request().Context(), tokenStr); err == nil {
				c.Set(uidKey, uid)
			}
		}
		return next(c)
	}
}

func (m *AuthMiddleware) verify(ctx context.Context, token string) (string, error) {
	if m.verifier == nil {
		return "", ErrNoVerifier
	}
	uid, err := m.verifier.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	if uid == "" {
		return "", errors.New("token has no subject")
	}
	return uid, nil
}

func bearer(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return tok, tok != ""
}
