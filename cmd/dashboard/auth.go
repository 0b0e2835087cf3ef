// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MylesMCook/bloomberg-daily/internal/web"
)

const (
	sessionCookie = "session"
	stateCookie   = "oauth_state"
	sessionTTL    = 24 * time.Hour
)

var errNoSession = errors.New("no valid session")

// issueSession sets a signed session cookie for the given GitHub login.
func (e *engine) issueSession(w http.ResponseWriter, login string) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   login,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	})
	signed, err := token.SignedString(e.sessionSecret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   e.prod,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// sessionLogin returns the GitHub login of the signed-in user, or
// errNoSession.
func (e *engine) sessionLogin(r *http.Request) (string, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", errNoSession
	}
	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (any, error) {
		return []byte(e.sessionSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return "", errNoSession
	}
	if !slices.Contains(e.allowedLogins, claims.Subject) {
		// The allow-list may have changed since the cookie was issued.
		return "", errNoSession
	}
	return claims.Subject, nil
}

// authed guards a handler: browser requests are redirected to /login,
// API requests get a JSON 401.
func (e *engine) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := e.sessionLogin(r); err != nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				web.RespondJSONError(e.logf, w, web.ErrUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (e *engine) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := e.sessionLogin(r); err == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state := randomHex(16)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/callback",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   e.prod,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, e.ghc.AuthorizeURL(e.clientID, e.redirectURL(), state), http.StatusFound)
}

func (e *engine) handleCallback(w http.ResponseWriter, r *http.Request) {
	stateC, err := r.Cookie(stateCookie)
	if err != nil || stateC.Value == "" || r.FormValue("state") != stateC.Value {
		web.RespondError(e.logf, w, fmt.Errorf("%w: OAuth state mismatch", web.ErrBadRequest))
		return
	}
	code := r.FormValue("code")
	if code == "" {
		web.RespondError(e.logf, w, fmt.Errorf("%w: missing code", web.ErrBadRequest))
		return
	}

	userToken, err := e.ghc.ExchangeCode(r.Context(), e.clientID, e.clientSecret, code)
	if err != nil {
		web.RespondError(e.logf, w, err)
		return
	}
	user, err := e.ghc.WithToken(userToken).Me(r.Context())
	if err != nil {
		web.RespondError(e.logf, w, err)
		return
	}

	if !slices.Contains(e.allowedLogins, user.Login) {
		e.logf("Denied sign-in for %q.", user.Login)
		web.RespondError(e.logf, w, web.ErrForbidden)
		return
	}

	if err := e.issueSession(w, user.Login); err != nil {
		web.RespondError(e.logf, w, err)
		return
	}
	e.logf("Signed in %q.", user.Login)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (e *engine) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
