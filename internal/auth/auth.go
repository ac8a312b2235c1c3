package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"flowport/backend/internal/config"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Claims is the subset of token claims the service cares about: who the
// caller is and which bundle scopes they hold.
type Claims struct {
	Email  string   `json:"email"`
	Scopes []string `json:"scp"`
}

// HasScope reports whether the token carries the given scope.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Auth performs OpenID Connect authentication against the configured
// provider: an authorization-code flow for browsers and bearer-token
// verification for API and automation clients.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	logger       Logger
	authBypass   bool
}

// New creates a new Auth object from the application configuration. When the
// environment is DEV with dev_mode_bypass set, authentication is skipped and
// every request acts as a local developer with all scopes.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	isDev := strings.ToUpper(cfg.Environment) == "DEV"
	if isDev && cfg.DevModeBypass {
		return &Auth{logger: logger, authBypass: true}, nil
	}

	if cfg.Auth.Issuer == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	return &Auth{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.Auth.RedirectURL,
			Scopes:       AllScopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID}),
		// Access tokens carry a different audience than ID tokens, so the
		// bearer-token verifier skips the client id check.
		apiVerifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		logger:      logger,
	}, nil
}

// RequireScope is echo middleware that authenticates the request and
// enforces one bundle scope. The caller's email is stored on the context
// under "actor" for downstream handlers.
func (a *Auth) RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a.authBypass {
				c.Set("actor", "dev@localhost")
				return next(c)
			}

			claims, err := a.authenticate(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			if !claims.HasScope(scope) {
				return echo.NewHTTPError(http.StatusForbidden,
					"token is missing required scope "+scope)
			}
			c.Set("actor", claims.Email)
			return next(c)
		}
	}
}

// authenticate verifies either a Bearer access token or the id_token
// session cookie set by the login flow.
func (a *Auth) authenticate(r *http.Request) (Claims, error) {
	var token *oidc.IDToken
	var err error

	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token, err = a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
	} else {
		cookie, cookieErr := r.Cookie("id_token")
		if cookieErr != nil {
			return Claims{}, errors.New("missing credentials")
		}
		token, err = a.verifier.Verify(r.Context(), cookie.Value)
	}
	if err != nil {
		return Claims{}, errors.New("invalid token: " + err.Error())
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return Claims{}, errors.New("failed to parse token claims")
	}
	return claims, nil
}

// LoginHandler initiates the OAuth2 authorization code flow. A random state
// value is stored in a cookie to mitigate CSRF.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
	})
	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from the provider: it verifies
// the state, exchanges the code for tokens, validates the ID token, and sets
// the session cookie.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}
	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler clears the session cookie.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
