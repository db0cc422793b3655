// Copyright 2017 Google Inc. All Rights Reserved.
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

package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/firekit/firekit-admin-go/internal"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"
)

const (
	idTokenCertURL            = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"
	idTokenIssuerPrefix       = "https://securetoken.google.com/"
	sessionCookieCertURL      = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/publicKeys"
	sessionCookieIssuerPrefix = "https://session.firebase.google.com/"

	// Tolerated difference between the verifier's clock and the clock that
	// stamped the token, in seconds.
	clockSkewSeconds = 300
)

// Token represents a decoded Firebase ID token.
//
// Token provides typed accessors to the common JWT fields such as Audience
// (aud) and Expires (exp). Additionally it provides a UID field, which
// indicates the user ID of the account to which this token belongs. Any
// additional JWT claims can be accessed via the Claims map of Token.
type Token struct {
	AuthTime int64                  `json:"auth_time"`
	Issuer   string                 `json:"iss"`
	Audience string                 `json:"aud"`
	Expires  int64                  `json:"exp"`
	IssuedAt int64                  `json:"iat"`
	Subject  string                 `json:"sub,omitempty"`
	UID      string                 `json:"uid,omitempty"`
	Firebase FirebaseInfo           `json:"firebase"`
	Claims   map[string]interface{} `json:"-"`
}

// FirebaseInfo represents the information about the sign-in event, including
// which auth provider was used and provider-specific identity details.
type FirebaseInfo struct {
	SignInProvider string                 `json:"sign_in_provider"`
	Tenant         string                 `json:"tenant"`
	Identities     map[string]interface{} `json:"identities"`
}

// IsIDTokenExpired checks if the given error was due to an expired ID token.
func IsIDTokenExpired(err error) bool {
	return hasAuthErrorCode(err, expiredIDToken)
}

// IsIDTokenInvalid checks if the given error was due to an invalid ID token.
//
// An ID token is invalid when it is malformed (i.e. contains incorrect data),
// expired or the signature check fails.
func IsIDTokenInvalid(err error) bool {
	return hasAuthErrorCode(err, invalidIDToken) || IsIDTokenExpired(err) ||
		IsTenantIDMismatch(err) || IsCertificateFetchFailed(err)
}

// IsIDTokenRevoked checks if the given error was due to a revoked ID token.
func IsIDTokenRevoked(err error) bool {
	return hasAuthErrorCode(err, revokedIDToken)
}

// IsSessionCookieExpired checks if the given error was due to an expired
// session cookie.
func IsSessionCookieExpired(err error) bool {
	return hasAuthErrorCode(err, expiredSessionCookie)
}

// IsSessionCookieInvalid checks if the given error was due to an invalid
// session cookie.
func IsSessionCookieInvalid(err error) bool {
	return hasAuthErrorCode(err, invalidSessionCookie) || IsSessionCookieExpired(err) ||
		IsCertificateFetchFailed(err)
}

// IsSessionCookieRevoked checks if the given error was due to a revoked
// session cookie.
func IsSessionCookieRevoked(err error) bool {
	return hasAuthErrorCode(err, revokedSessionCookie)
}

// IsCertificateFetchFailed checks if the given error was caused by a failure
// to fetch the public key certificates required to verify a JWT.
func IsCertificateFetchFailed(err error) bool {
	return hasAuthErrorCode(err, certificateFetchFailed)
}

// IsTenantIDMismatch checks if the given error was due to a mismatched tenant
// ID in a JWT.
func IsTenantIDMismatch(err error) bool {
	return hasAuthErrorCode(err, tenantIDMismatch)
}

// IsUserDisabled checks if the given error was due to a disabled user
// account.
func IsUserDisabled(err error) bool {
	return hasAuthErrorCode(err, userDisabled)
}

// tokenVerifier verifies different types of Firebase token strings, including
// ID tokens and session cookies.
type tokenVerifier struct {
	shortName         string
	articledShortName string
	docURL            string
	projectID         string
	issuerPrefix      string
	invalidTokenCode  string
	expiredTokenCode  string
	keySource         keySource
	clock             internal.Clock
}

func newIDTokenVerifier(ctx context.Context, projectID string) (*tokenVerifier, error) {
	return &tokenVerifier{
		shortName:         "ID token",
		articledShortName: "an ID token",
		docURL:            "https://firebase.google.com/docs/auth/admin/verify-id-tokens",
		projectID:         projectID,
		issuerPrefix:      idTokenIssuerPrefix,
		invalidTokenCode:  invalidIDToken,
		expiredTokenCode:  expiredIDToken,
		keySource:         newHTTPKeySource(idTokenCertURL),
		clock:             internal.SystemClock{},
	}, nil
}

func newSessionCookieVerifier(ctx context.Context, projectID string) (*tokenVerifier, error) {
	return &tokenVerifier{
		shortName:         "session cookie",
		articledShortName: "a session cookie",
		docURL:            "https://firebase.google.com/docs/auth/admin/manage-cookies",
		projectID:         projectID,
		issuerPrefix:      sessionCookieIssuerPrefix,
		invalidTokenCode:  invalidSessionCookie,
		expiredTokenCode:  expiredSessionCookie,
		keySource:         newHTTPKeySource(sessionCookieCertURL),
		clock:             internal.SystemClock{},
	}, nil
}

// VerifyToken verifies that the given token string is a valid Firebase JWT.
//
// Checks are performed in a fixed order, and the first failure aborts the
// verification. Signature verification is skipped when running against the
// Auth emulator.
func (tv *tokenVerifier) VerifyToken(ctx context.Context, token string, isEmulator bool) (*Token, error) {
	if tv.projectID == "" {
		return nil, fmt.Errorf("project id not available; ensure the SDK is initialized with a project id " +
			"or set the GOOGLE_CLOUD_PROJECT environment variable")
	}
	if token == "" {
		return nil, tv.invalidTokenError(fmt.Sprintf("%s must be a non-empty string", tv.shortName))
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, tv.invalidTokenError(fmt.Sprintf(
			"incorrect number of segments in %s; expected 3 but got %d", tv.shortName, len(segments)))
	}

	var header jwtHeader
	if err := decodeSegment(segments[0], &header); err != nil {
		return nil, tv.invalidTokenError(fmt.Sprintf("failed to decode %s header: %v", tv.shortName, err))
	}
	payload, err := tv.decodePayload(segments[1])
	if err != nil {
		return nil, err
	}

	if !isEmulator {
		if err := tv.verifyHeader(&header, payload); err != nil {
			return nil, err
		}
	}
	if err := tv.verifyPayload(payload); err != nil {
		return nil, err
	}
	if err := tv.verifyTimestamps(payload); err != nil {
		return nil, err
	}
	if !isEmulator {
		if err := tv.verifySignature(ctx, segments, header.KeyID); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (tv *tokenVerifier) decodePayload(segment string) (*Token, error) {
	var payload Token
	if err := decodeSegment(segment, &payload); err != nil {
		return nil, tv.invalidTokenError(fmt.Sprintf("failed to decode %s payload: %v", tv.shortName, err))
	}
	var claims map[string]interface{}
	if err := decodeSegment(segment, &claims); err != nil {
		return nil, tv.invalidTokenError(fmt.Sprintf("failed to decode %s payload: %v", tv.shortName, err))
	}
	// The original claims are kept verbatim; typed fields extracted above are
	// not repeated in the map.
	for _, standard := range []string{"iss", "aud", "exp", "iat", "sub", "uid"} {
		delete(claims, standard)
	}
	payload.UID = payload.Subject
	payload.Claims = claims
	return &payload, nil
}

func (tv *tokenVerifier) verifyHeader(header *jwtHeader, payload *Token) error {
	if header.KeyID == "" {
		if payload.Audience == firebaseAudience {
			return tv.invalidTokenError(fmt.Sprintf(
				"expects %s, but was given a custom token", tv.articledShortName))
		}
		if header.Algorithm == "HS256" {
			var legacy struct {
				V int `json:"v"`
				D struct {
					UID string `json:"uid"`
				} `json:"d"`
			}
			b, _ := json.Marshal(payload.Claims)
			if json.Unmarshal(b, &legacy) == nil && legacy.V == 0 && legacy.D.UID != "" {
				return tv.invalidTokenError(fmt.Sprintf(
					"expects %s, but was given a legacy custom token", tv.articledShortName))
			}
		}
		return tv.invalidTokenError(fmt.Sprintf("%s has no 'kid' header", tv.shortName))
	}
	if header.Algorithm != "RS256" {
		return tv.invalidTokenError(fmt.Sprintf(
			"%s has invalid algorithm; expected 'RS256' but got %q", tv.shortName, header.Algorithm))
	}
	return nil
}

func (tv *tokenVerifier) verifyPayload(payload *Token) error {
	if payload.Audience != tv.projectID {
		return tv.invalidTokenError(tv.embedDoc(fmt.Sprintf(
			"%s has invalid audience (aud) claim; expected %q but got %q; make sure the %s comes "+
				"from the same Firebase project as the credential used to authenticate this SDK",
			tv.shortName, tv.projectID, payload.Audience, tv.shortName)))
	}
	if issuer := tv.issuerPrefix + tv.projectID; payload.Issuer != issuer {
		return tv.invalidTokenError(tv.embedDoc(fmt.Sprintf(
			"%s has invalid issuer (iss) claim; expected %q but got %q; make sure the %s comes "+
				"from the same Firebase project as the credential used to authenticate this SDK",
			tv.shortName, issuer, payload.Issuer, tv.shortName)))
	}
	if payload.Subject == "" {
		return tv.invalidTokenError(fmt.Sprintf("%s has empty subject (sub) claim", tv.shortName))
	}
	if len(payload.Subject) > 128 {
		return tv.invalidTokenError(fmt.Sprintf(
			"%s has a subject claim longer than 128 characters", tv.shortName))
	}
	return nil
}

func (tv *tokenVerifier) verifyTimestamps(payload *Token) error {
	now := tv.clock.Now().Unix()
	if payload.Expires <= now-clockSkewSeconds {
		return authError(internal.InvalidArgument, tv.expiredTokenCode, "%s", tv.embedDoc(fmt.Sprintf(
			"%s has expired; expired at %d, but now is %d", tv.shortName, payload.Expires, now)))
	}
	if payload.IssuedAt > now+clockSkewSeconds {
		return tv.invalidTokenError(fmt.Sprintf(
			"%s is not yet valid; issued at future timestamp %d", tv.shortName, payload.IssuedAt))
	}
	return nil
}

func (tv *tokenVerifier) verifySignature(ctx context.Context, segments []string, kid string) error {
	keys, err := tv.keySource.Keys(ctx)
	if err != nil {
		var fe *internal.FirebaseError
		if errors.As(err, &fe) {
			return err
		}
		return authError(internal.Unknown, certificateFetchFailed,
			"failed to fetch token signing certificates: %v", err)
	}
	signingInput := strings.Join(segments[:2], ".")
	for _, k := range keys {
		if kid == "" || k.Kid == kid {
			if verifyErr := jwt.SigningMethodRS256.Verify(signingInput, segments[2], k.Key); verifyErr == nil {
				return nil
			}
		}
	}
	return tv.invalidTokenError(
		fmt.Sprintf("failed to verify %s signature", tv.shortName))
}

func (tv *tokenVerifier) invalidTokenError(msg string) error {
	return authError(internal.InvalidArgument, tv.invalidTokenCode, "%s", msg)
}

func (tv *tokenVerifier) embedDoc(msg string) string {
	return fmt.Sprintf("%s; see %s for details on how to retrieve %s", msg, tv.docURL, tv.articledShortName)
}

func decodeSegment(segment string, v interface{}) error {
	b, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// publicKey represents a parsed RSA public key along with its unique key ID.
type publicKey struct {
	Kid string
	Key *rsa.PublicKey
}

// keySource is used to obtain a set of public keys, which can be used to
// verify cryptographic signatures.
type keySource interface {
	Keys(ctx context.Context) ([]*publicKey, error)
}

// httpKeySource fetches RSA public keys from a remote HTTP server, and caches
// them in memory. It also handles cache invalidation and refresh based on the
// Cache-Control headers of the server responses.
//
// Refreshes are single-flight: concurrent callers that miss the cache share
// one outbound request. If a refresh fails while a previously cached key set
// exists, the stale set is served.
type httpKeySource struct {
	KeyURI     string
	HTTPClient *http.Client
	Clock      internal.Clock

	mutex      sync.Mutex
	cachedKeys []*publicKey
	expiryTime time.Time
	group      singleflight.Group
}

func newHTTPKeySource(uri string) *httpKeySource {
	return &httpKeySource{
		KeyURI:     uri,
		HTTPClient: http.DefaultClient,
		Clock:      internal.SystemClock{},
	}
}

// Keys returns the RSA public keys hosted at this key source's URI, refreshing
// the cached copy as needed.
func (k *httpKeySource) Keys(ctx context.Context) ([]*publicKey, error) {
	if keys, ok := k.freshKeys(); ok {
		return keys, nil
	}
	result, err, _ := k.group.Do(k.KeyURI, func() (interface{}, error) {
		// A concurrent caller may have refreshed the cache while we waited.
		if keys, ok := k.freshKeys(); ok {
			return keys, nil
		}
		return k.refreshKeys(ctx)
	})
	if err != nil {
		k.mutex.Lock()
		stale := k.cachedKeys
		k.mutex.Unlock()
		if len(stale) > 0 {
			return stale, nil
		}
		return nil, authError(internal.Unknown, certificateFetchFailed,
			"failed to fetch token signing certificates: %v", err)
	}
	return result.([]*publicKey), nil
}

func (k *httpKeySource) freshKeys() ([]*publicKey, bool) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	if len(k.cachedKeys) == 0 || k.Clock.Now().After(k.expiryTime) {
		return nil, false
	}
	return k.cachedKeys, true
}

func (k *httpKeySource) refreshKeys(ctx context.Context) ([]*publicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.KeyURI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid response (%d) while retrieving public keys: %s",
			resp.StatusCode, resp.Status)
	}
	contents, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	newKeys, err := parsePublicKeys(contents)
	if err != nil {
		return nil, err
	}
	maxAge, err := findMaxAge(resp)
	if err != nil {
		return nil, err
	}

	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.cachedKeys = newKeys
	k.expiryTime = k.Clock.Now().Add(*maxAge)
	return newKeys, nil
}

var maxAgePattern = regexp.MustCompile(`\bmax-age\s*=\s*(\d+)`)

func findMaxAge(resp *http.Response) (*time.Duration, error) {
	cc := resp.Header.Get("cache-control")
	match := maxAgePattern.FindStringSubmatch(cc)
	if len(match) != 2 {
		return nil, fmt.Errorf("could not find expiry time from HTTP headers")
	}
	maxAge, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("could not parse max-age value (%s)", match[1])
	}
	duration := time.Duration(maxAge) * time.Second
	return &duration, nil
}

func parsePublicKeys(keys []byte) ([]*publicKey, error) {
	var m map[string]string
	if err := json.Unmarshal(keys, &m); err != nil {
		return nil, err
	}
	var result []*publicKey
	for kid, certPEM := range m {
		pubKey, err := parsePublicKey(certPEM)
		if err != nil {
			return nil, err
		}
		result = append(result, &publicKey{Kid: kid, Key: pubKey})
	}
	return result, nil
}

func parsePublicKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode the certificate as PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse x509 certificate: %v", err)
	}
	pk, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate is not an RSA key")
	}
	return pk, nil
}
