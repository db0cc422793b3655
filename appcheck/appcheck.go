// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package appcheck provides functionality for verifying App Check tokens.
package appcheck

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/firekit/firekit-admin-go/internal"
)

// JWKSUrl is the URL of the JWKS used to verify App Check token signatures.
var JWKSUrl = "https://firebaseappcheck.googleapis.com/v1/jwks"

const appCheckIssuer = "https://firebaseappcheck.googleapis.com/"

var (
	// ErrIncorrectAlgorithm is returned when the token is signed with a
	// non-RSA256 algorithm.
	ErrIncorrectAlgorithm = errors.New("token has incorrect algorithm")
	// ErrTokenType is returned when the token is not an App Check token.
	ErrTokenType = errors.New("token has incorrect type")
	// ErrTokenClaims is returned when the token claims cannot be decoded.
	ErrTokenClaims = errors.New("token has incorrect claims")
	// ErrTokenAudience is returned when the token audience does not match the
	// current project.
	ErrTokenAudience = errors.New("token has incorrect audience")
	// ErrTokenIssuer is returned when the token issuer does not match the App
	// Check service.
	ErrTokenIssuer = errors.New("token has incorrect issuer")
	// ErrTokenSubject is returned when the token subject is missing or empty.
	ErrTokenSubject = errors.New("token has empty or missing subject")
)

// DecodedAppCheckToken represents a verified App Check token.
//
// DecodedAppCheckToken provides typed accessors to the common JWT fields such
// as Audience (aud) and ExpiresAt (exp). Additionally it provides an AppID
// field, which indicates the application ID to which this token belongs. Any
// additional JWT claims can be accessed via the Claims map.
type DecodedAppCheckToken struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt int64
	IssuedAt  int64
	AppID     string
	Claims    map[string]interface{}
}

// Client is the interface for the Firebase App Check service.
type Client struct {
	projectID string
	jwks      *keyfunc.JWKS
}

// NewClient creates a new instance of the App Check client.
//
// This function can only be invoked from within the SDK. Client applications
// should access the App Check service through the top-level App handle.
func NewClient(ctx context.Context, conf *internal.AppCheckConfig) (*Client, error) {
	jwks, err := keyfunc.Get(JWKSUrl, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: 6 * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		projectID: conf.ProjectID,
		jwks:      jwks,
	}, nil
}

// VerifyToken verifies the given App Check token.
//
// VerifyToken considers a token valid when it carries a valid RS256
// signature, names the current project in its audience list, and was issued
// by the App Check service.
func (c *Client) VerifyToken(token string) (*DecodedAppCheckToken, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Header["alg"] != "RS256" {
			return nil, ErrIncorrectAlgorithm
		}
		return c.jwks.Keyfunc(t)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenClaims
	}

	rawAud, ok := claims["aud"].([]interface{})
	if !ok {
		return nil, ErrTokenAudience
	}
	var audience []string
	for _, v := range rawAud {
		aud, ok := v.(string)
		if !ok {
			return nil, ErrTokenAudience
		}
		audience = append(audience, aud)
	}
	if !contains(audience, "projects/"+c.projectID) {
		return nil, ErrTokenAudience
	}

	issuer, ok := claims["iss"].(string)
	if !ok || !strings.HasPrefix(issuer, appCheckIssuer) {
		return nil, ErrTokenIssuer
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return nil, ErrTokenSubject
	}

	decoded := &DecodedAppCheckToken{
		Issuer:   issuer,
		Subject:  subject,
		Audience: audience,
		AppID:    subject,
		Claims:   map[string]interface{}{},
	}
	if exp, ok := claims["exp"].(float64); ok {
		decoded.ExpiresAt = int64(exp)
	}
	if iat, ok := claims["iat"].(float64); ok {
		decoded.IssuedAt = int64(iat)
	}
	for k, v := range claims {
		switch k {
		case "iss", "sub", "aud", "exp", "iat":
		default:
			decoded.Claims[k] = v
		}
	}
	return decoded, nil
}

func contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
