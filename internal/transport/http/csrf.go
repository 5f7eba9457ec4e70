// Copyright 2026 The Leadboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const csrfIssuer = "leadboard"

// ErrCSRFTokenInvalid is returned for missing, forged, expired or foreign tokens.
var ErrCSRFTokenInvalid = errors.New("invalid csrf token")

type csrfClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CSRF issues and verifies HS256 tokens bound to a session ID.
type CSRF struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCSRF creates a CSRF token issuer.
func NewCSRF(secret string, ttl time.Duration) *CSRF {
	return &CSRF{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a token for sessionID.
func (c *CSRF) Issue(sessionID string) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, csrfClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    csrfIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign csrf token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, expiry and the session binding.
func (c *CSRF) Verify(raw, sessionID string) error {
	if raw == "" || sessionID == "" {
		return ErrCSRFTokenInvalid
	}
	var claims csrfClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(csrfIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCSRFTokenInvalid, err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.SessionID), []byte(sessionID)) != 1 {
		return ErrCSRFTokenInvalid
	}
	return nil
}
