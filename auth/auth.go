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

// Package auth contains functions for minting custom authentication tokens,
// verifying Firebase ID tokens, and managing users in a Firebase project.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/firekit/firekit-admin-go/internal"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const (
	authErrorCode      = "authErrorCode"
	emulatorHostEnvVar = "FIREBASE_AUTH_EMULATOR_HOST"
	defaultAuthURL     = "https://identitytoolkit.googleapis.com"
	firebaseAudience   = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"
	oneHourInSeconds   = 3600

	// Maximum number of users allowed per batch lookup.
	maxGetAccountsBatchSize = 100

	// Maximum number of users allowed per batch delete.
	maxDeleteAccountsBatchSize = 1000

	// Maximum number of users allowed per import batch.
	maxImportUsers = 1000
)

// Error sub-codes attached to the platform errors raised by this package.
// The value is stored under the "authErrorCode" key of the error's Ext map.
const (
	certificateFetchFailed   = "CERTIFICATE_FETCH_FAILED"
	claimsTooLarge           = "CLAIMS_TOO_LARGE"
	configurationNotFound    = "CONFIGURATION_NOT_FOUND"
	emailAlreadyExists       = "EMAIL_ALREADY_EXISTS"
	expiredIDToken           = "EXPIRED_ID_TOKEN"
	expiredSessionCookie     = "EXPIRED_SESSION_COOKIE"
	insufficientPermission   = "INSUFFICIENT_PERMISSION"
	invalidClaims            = "INVALID_CLAIMS"
	invalidEmail             = "INVALID_EMAIL"
	invalidIDToken           = "INVALID_ID_TOKEN"
	invalidPageToken         = "INVALID_PAGE_TOKEN"
	invalidPassword          = "INVALID_PASSWORD"
	invalidPhoneNumber       = "INVALID_PHONE_NUMBER"
	invalidSessionCookie     = "INVALID_SESSION_COOKIE"
	phoneNumberAlreadyExists = "PHONE_NUMBER_ALREADY_EXISTS"
	revokedIDToken           = "REVOKED_ID_TOKEN"
	revokedSessionCookie     = "REVOKED_SESSION_COOKIE"
	tenantIDMismatch         = "TENANT_ID_MISMATCH"
	tenantNotFound           = "TENANT_NOT_FOUND"
	uidAlreadyExists         = "UID_ALREADY_EXISTS"
	unexpectedResponse       = "UNEXPECTED_RESPONSE"
	userDisabled             = "USER_DISABLED"
	userNotFound             = "USER_NOT_FOUND"
)

// Client is the interface for the Firebase auth service.
//
// Client facilitates generating custom JWT tokens for Firebase clients, and
// verifying ID tokens issued by Firebase backend services. It is safe for
// concurrent use by multiple goroutines.
type Client struct {
	*baseClient
	TenantManager *TenantManager
}

// baseClient exposes the APIs common to both project-level and tenant-scoped
// auth clients.
//
// The mutex guards only the memoization cells and the closed flag. The
// memoized components are themselves safe for concurrent use once
// constructed.
type baseClient struct {
	userManagementEndpoint string
	providerConfigEndpoint string
	tenantMgtEndpoint      string
	projectID              string
	tenantID               string
	version                string
	httpClient             *internal.HTTPClient
	isEmulator             bool
	clock                  internal.Clock

	mu              sync.Mutex
	closed          bool
	signer          cryptoSigner
	idTokenVerifier *tokenVerifier
	cookieVerifier  *tokenVerifier

	newSigner          func(context.Context) (cryptoSigner, error)
	newIDTokenVerifier func(context.Context) (*tokenVerifier, error)
	newCookieVerifier  func(context.Context) (*tokenVerifier, error)
}

// NewClient creates a new instance of the Firebase Auth Client.
//
// This function can only be invoked from within the SDK. Client applications
// should access the Auth service through the top-level App handle.
func NewClient(ctx context.Context, conf *internal.AuthConfig) (*Client, error) {
	baseURL := defaultAuthURL
	isEmulator := false
	if emulatorHost := os.Getenv(emulatorHostEnvVar); emulatorHost != "" {
		isEmulator = true
		baseURL = fmt.Sprintf("http://%s/identitytoolkit.googleapis.com", emulatorHost)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "owner"})
		conf.Opts = append([]option.ClientOption{option.WithTokenSource(ts)}, conf.Opts...)
	}

	hc, _, err := internal.NewHTTPClient(ctx, conf.Opts...)
	if err != nil {
		return nil, err
	}
	hc.CreateErrFn = handleHTTPError
	hc.Opts = []internal.HTTPOption{
		internal.WithHeader("X-Client-Version", fmt.Sprintf("Go/Admin/%s", conf.Version)),
	}

	base := &baseClient{
		userManagementEndpoint: fmt.Sprintf("%s/v1", baseURL),
		providerConfigEndpoint: fmt.Sprintf("%s/v2", baseURL),
		tenantMgtEndpoint:      fmt.Sprintf("%s/v2", baseURL),
		projectID:              conf.ProjectID,
		version:                conf.Version,
		httpClient:             hc,
		isEmulator:             isEmulator,
		clock:                  internal.SystemClock{},
		newSigner: func(ctx context.Context) (cryptoSigner, error) {
			return newCryptoSigner(ctx, conf, isEmulator)
		},
	}
	base.newIDTokenVerifier = func(ctx context.Context) (*tokenVerifier, error) {
		return newIDTokenVerifier(ctx, base.projectID)
	}
	base.newCookieVerifier = func(ctx context.Context) (*tokenVerifier, error) {
		return newSessionCookieVerifier(ctx, base.projectID)
	}

	return &Client{
		baseClient:    base,
		TenantManager: newTenantManager(base),
	}, nil
}

// Close renders the client unusable. All subsequent operations on the client
// and on any tenant-scoped clients obtained from it report an error.
//
// Operations already in flight when Close is called complete normally.
func (c *Client) Close() error {
	c.TenantManager.close()
	return c.baseClient.close()
}

func (c *baseClient) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// checkAlive fails if the client has already been closed.
func (c *baseClient) checkAlive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return clientClosedError()
	}
	return nil
}

func clientClosedError() error {
	return &internal.FirebaseError{
		ErrorCode: internal.FailedPrecondition,
		String:    "the auth client has already been closed",
		Ext:       map[string]interface{}{},
	}
}

// tokenSigner returns the memoized crypto signer, constructing it on first
// use. Construction failures are not memoized; the next call retries.
func (c *baseClient) tokenSigner(ctx context.Context) (cryptoSigner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, clientClosedError()
	}
	if c.signer == nil {
		signer, err := c.newSigner(ctx)
		if err != nil {
			return nil, err
		}
		c.signer = signer
	}
	return c.signer, nil
}

func (c *baseClient) tokenVerifierForIDToken(ctx context.Context) (*tokenVerifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, clientClosedError()
	}
	if c.idTokenVerifier == nil {
		tv, err := c.newIDTokenVerifier(ctx)
		if err != nil {
			return nil, err
		}
		c.idTokenVerifier = tv
	}
	return c.idTokenVerifier, nil
}

func (c *baseClient) tokenVerifierForCookie(ctx context.Context) (*tokenVerifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, clientClosedError()
	}
	if c.cookieVerifier == nil {
		tv, err := c.newCookieVerifier(ctx)
		if err != nil {
			return nil, err
		}
		c.cookieVerifier = tv
	}
	return c.cookieVerifier, nil
}

// CustomToken creates a signed custom authentication token with the specified
// user ID.
//
// The resulting JWT can be used in a Firebase client SDK to trigger an
// authentication flow. See https://firebase.google.com/docs/auth/admin/create-custom-tokens
// for more details on how to use custom tokens for client authentication.
//
// CustomToken follows the protocol outlined below to sign the generated tokens:
//   - If the SDK was initialized with service account credentials, uses the
//     private key present in the credentials to sign tokens locally.
//   - If a service account email was specified during initialization, calls the
//     IAMCredentials service with that email to sign tokens remotely.
//   - If the code is deployed in the Google App Engine standard environment,
//     uses the App Identity service to sign tokens.
//   - If the code is deployed in a different GCP-managed environment (e.g.
//     Google Compute Engine), handshakes with the V1 metadata service to fetch
//     the default service account email, and then calls IAMCredentials with
//     that email to sign tokens remotely.
func (c *baseClient) CustomToken(ctx context.Context, uid string) (string, error) {
	return c.CustomTokenWithClaims(ctx, uid, nil)
}

// CustomTokenWithClaims is similar to CustomToken, but in addition to the user
// ID, it also encodes all the key-value pairs in the provided map as claims in
// the resulting JWT.
func (c *baseClient) CustomTokenWithClaims(ctx context.Context, uid string, devClaims map[string]interface{}) (string, error) {
	iss, err := c.signerEmail(ctx)
	if err != nil {
		return "", err
	}

	if len(uid) == 0 || len(uid) > 128 {
		return "", fmt.Errorf("uid must be non-empty, and not longer than 128 characters")
	}

	var disallowed []string
	for _, k := range reservedClaims {
		if _, contains := devClaims[k]; contains {
			disallowed = append(disallowed, k)
		}
	}
	if len(disallowed) == 1 {
		return "", authError(internal.InvalidArgument, invalidClaims,
			"developer claim %q is reserved and cannot be specified", disallowed[0])
	} else if len(disallowed) > 1 {
		return "", authError(internal.InvalidArgument, invalidClaims,
			"developer claims %q are reserved and cannot be specified", strings.Join(disallowed, ", "))
	}
	if devClaims != nil {
		b, err := json.Marshal(devClaims)
		if err != nil {
			return "", fmt.Errorf("custom claims marshaling error: %v", err)
		}
		if len(b) > maxClaimsPayloadBytes {
			return "", authError(internal.InvalidArgument, claimsTooLarge,
				"serialized custom claims must not exceed %d bytes", maxClaimsPayloadBytes)
		}
	}

	now := c.clock.Now().Unix()
	signer, err := c.tokenSigner(ctx)
	if err != nil {
		return "", err
	}
	info := &jwtInfo{
		header: jwtHeader{Algorithm: signer.Algorithm(), Type: "JWT"},
		payload: &customToken{
			Iss:      iss,
			Sub:      iss,
			Aud:      firebaseAudience,
			UID:      uid,
			Iat:      now,
			Exp:      now + oneHourInSeconds,
			TenantID: c.tenantID,
			Claims:   devClaims,
		},
	}
	return info.Token(ctx, signer)
}

func (c *baseClient) signerEmail(ctx context.Context) (string, error) {
	signer, err := c.tokenSigner(ctx)
	if err != nil {
		return "", err
	}
	return signer.Email(ctx)
}

// SessionCookie creates a new Firebase session cookie from the given ID token
// and expiry duration.
//
// The returned JWT can be set as a server-side session cookie with a custom
// cookie policy. Expiry duration must be strictly between 5 minutes and 14
// days.
func (c *Client) SessionCookie(
	ctx context.Context,
	idToken string,
	expiresIn time.Duration,
) (string, error) {
	if idToken == "" {
		return "", fmt.Errorf("id token must not be empty")
	}
	if expiresIn <= 5*time.Minute || expiresIn >= 14*24*time.Hour {
		return "", fmt.Errorf("expiry duration must be strictly between 5 minutes and 14 days")
	}

	payload := map[string]interface{}{
		"idToken":       idToken,
		"validDuration": int64(expiresIn.Seconds()),
	}
	var result struct {
		SessionCookie string `json:"sessionCookie"`
	}
	url := fmt.Sprintf("/projects/%s:createSessionCookie", c.projectID)
	if _, err := c.post(ctx, c.userManagementEndpoint+url, payload, &result); err != nil {
		return "", err
	}
	if result.SessionCookie == "" {
		return "", unexpectedResponseError("no session cookie in server response")
	}
	return result.SessionCookie, nil
}

// VerifyIDToken verifies the signature and payload of the provided ID token.
//
// VerifyIDToken accepts a signed JWT issued by a Firebase client SDK, and
// verifies that it is current and was issued for this project. This function
// does not make any RPC calls most of the time. The only time it makes an RPC
// call is when the public certificates need to be refreshed.
//
// This does not check whether or not the token has been revoked or the user
// disabled. Use VerifyIDTokenAndCheckRevoked if those checks are required.
func (c *baseClient) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	tv, err := c.tokenVerifierForIDToken(ctx)
	if err != nil {
		return nil, err
	}
	decoded, err := tv.VerifyToken(ctx, idToken, c.isEmulator)
	if err != nil {
		return nil, err
	}
	if c.tenantID != "" && c.tenantID != decoded.Firebase.Tenant {
		return nil, authError(internal.InvalidArgument, tenantIDMismatch,
			"invalid tenant id: %q", decoded.Firebase.Tenant)
	}
	return decoded, nil
}

// VerifyIDTokenAndCheckRevoked verifies the provided ID token, and
// additionally checks that the token has not been revoked or the user
// disabled.
//
// Unlike VerifyIDToken, this function must make an RPC call to perform the
// revocation check.
func (c *baseClient) VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*Token, error) {
	decoded, err := c.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if err := c.checkRevokedOrDisabled(ctx, decoded, revokedIDToken, "ID token has been revoked"); err != nil {
		return nil, err
	}
	return decoded, nil
}

// VerifySessionCookie verifies the signature and payload of the provided
// Firebase session cookie.
//
// VerifySessionCookie accepts a signed JWT issued by the SessionCookie
// function, and verifies that it is current and was issued for this project.
//
// This does not check whether or not the cookie has been revoked or the user
// disabled. Use VerifySessionCookieAndCheckRevoked if those checks are
// required.
func (c *Client) VerifySessionCookie(ctx context.Context, sessionCookie string) (*Token, error) {
	tv, err := c.tokenVerifierForCookie(ctx)
	if err != nil {
		return nil, err
	}
	return tv.VerifyToken(ctx, sessionCookie, c.isEmulator)
}

// VerifySessionCookieAndCheckRevoked verifies the provided session cookie,
// and additionally checks that the cookie has not been revoked or the user
// disabled.
//
// Unlike VerifySessionCookie, this function must make an RPC call to perform
// the revocation check.
func (c *Client) VerifySessionCookieAndCheckRevoked(ctx context.Context, sessionCookie string) (*Token, error) {
	decoded, err := c.VerifySessionCookie(ctx, sessionCookie)
	if err != nil {
		return nil, err
	}
	if err := c.checkRevokedOrDisabled(ctx, decoded, revokedSessionCookie, "session cookie has been revoked"); err != nil {
		return nil, err
	}
	return decoded, nil
}

// checkRevokedOrDisabled checks whether the user the token belongs to is
// disabled, and whether the token itself was issued before the user's tokens
// were last revoked.
func (c *baseClient) checkRevokedOrDisabled(ctx context.Context, token *Token, revokedCode, revokedMessage string) error {
	user, err := c.GetUser(ctx, token.UID)
	if err != nil {
		return err
	}
	if user.Disabled {
		return authError(internal.InvalidArgument, userDisabled, "user has been disabled")
	}
	if user.TokensValidAfterMillis > token.IssuedAt*1000 {
		return authError(internal.InvalidArgument, revokedCode, "%s", revokedMessage)
	}
	return nil
}

// authError creates a platform error with the given sub-code recorded under
// the auth error key.
func authError(code internal.ErrorCode, subCode, format string, args ...interface{}) error {
	return &internal.FirebaseError{
		ErrorCode: code,
		String:    fmt.Sprintf(format, args...),
		Ext: map[string]interface{}{
			authErrorCode: subCode,
		},
	}
}

// unexpectedResponseError reports a well-formed HTTP success response whose
// payload does not carry the expected fields.
func unexpectedResponseError(format string, args ...interface{}) error {
	return authError(internal.Internal, unexpectedResponse, format, args...)
}

func hasAuthErrorCode(err error, code string) bool {
	fe, ok := err.(*internal.FirebaseError)
	return ok && fe.Ext[authErrorCode] == code
}

// serverErrorInfo describes how a server-reported error code string maps to
// a platform error code and an auth sub-code.
type serverErrorInfo struct {
	code    internal.ErrorCode
	subCode string
	message string
}

var serverErrors = map[string]serverErrorInfo{
	"CLAIMS_TOO_LARGE": {
		internal.InvalidArgument, claimsTooLarge,
		"serialized custom claims payload is too large"},
	"CONFIGURATION_NOT_FOUND": {
		internal.NotFound, configurationNotFound,
		"no identity provider configuration found for the given identifier"},
	"DUPLICATE_EMAIL": {
		internal.Conflict, emailAlreadyExists,
		"user with the provided email already exists"},
	"DUPLICATE_LOCAL_ID": {
		internal.Conflict, uidAlreadyExists,
		"user with the provided uid already exists"},
	"EMAIL_EXISTS": {
		internal.Conflict, emailAlreadyExists,
		"user with the provided email already exists"},
	"INSUFFICIENT_PERMISSION": {
		internal.PermissionDenied, insufficientPermission,
		"credential used to initialize the SDK has insufficient permissions"},
	"INVALID_EMAIL": {
		internal.InvalidArgument, invalidEmail,
		"the provided email is invalid"},
	"INVALID_ID_TOKEN": {
		internal.InvalidArgument, invalidIDToken,
		"the provided ID token is invalid"},
	"INVALID_PAGE_SELECTION": {
		internal.InvalidArgument, invalidPageToken,
		"the provided page token is invalid"},
	"INVALID_PHONE_NUMBER": {
		internal.InvalidArgument, invalidPhoneNumber,
		"the provided phone number is invalid"},
	"PHONE_NUMBER_EXISTS": {
		internal.Conflict, phoneNumberAlreadyExists,
		"user with the provided phone number already exists"},
	"TENANT_NOT_FOUND": {
		internal.NotFound, tenantNotFound,
		"no tenant found for the given identifier"},
	"USER_DISABLED": {
		internal.InvalidArgument, userDisabled,
		"user has been disabled"},
	"USER_NOT_FOUND": {
		internal.NotFound, userNotFound,
		"no user record found for the given identifier"},
	"WEAK_PASSWORD": {
		internal.InvalidArgument, invalidPassword,
		"the provided password is invalid"},
}

// handleHTTPError maps a non-2xx Identity Toolkit response to a platform
// error. The error code string before the first colon of the server message
// is looked up in a fixed table; unknown codes fall back on the HTTP status.
func handleHTTPError(resp *internal.Response) error {
	base := internal.NewFirebaseErrorOnePlatform(resp)

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	json.Unmarshal(resp.Body, &parsed) // ignore any malformed payloads

	code := parsed.Error.Message
	var detail string
	if idx := strings.Index(code, ":"); idx != -1 {
		detail = strings.TrimSpace(code[idx+1:])
		code = strings.TrimSpace(code[:idx])
	}

	if info, ok := serverErrors[code]; ok {
		base.ErrorCode = info.code
		base.String = fmt.Sprintf("%s: %s", code, info.message)
		if detail != "" {
			base.String = fmt.Sprintf("%s: %s", base.String, detail)
		}
		base.Ext[authErrorCode] = info.subCode
	}
	return base
}

// post issues a POST request to the given fully-formed URL, and unmarshals
// the response payload into result when non-nil.
func (c *baseClient) post(ctx context.Context, url string, body, result interface{}) (*internal.Response, error) {
	return c.makeRequest(ctx, &internal.Request{
		Method: http.MethodPost,
		URL:    url,
		Body:   internal.NewJSONEntity(body),
	}, result)
}

func (c *baseClient) get(ctx context.Context, url string, opts []internal.HTTPOption, result interface{}) (*internal.Response, error) {
	return c.makeRequest(ctx, &internal.Request{
		Method: http.MethodGet,
		URL:    url,
		Opts:   opts,
	}, result)
}

func (c *baseClient) patch(ctx context.Context, url string, body, result interface{}) (*internal.Response, error) {
	return c.makeRequest(ctx, &internal.Request{
		Method: http.MethodPatch,
		URL:    url,
		Body:   internal.NewJSONEntity(body),
	}, result)
}

func (c *baseClient) delete(ctx context.Context, url string, result interface{}) (*internal.Response, error) {
	return c.makeRequest(ctx, &internal.Request{
		Method: http.MethodDelete,
		URL:    url,
	}, result)
}

func (c *baseClient) makeRequest(ctx context.Context, req *internal.Request, result interface{}) (*internal.Response, error) {
	if err := c.checkAlive(); err != nil {
		return nil, err
	}
	if c.projectID == "" {
		return nil, fmt.Errorf("project id not available; ensure the SDK is initialized with a project id " +
			"or set the GOOGLE_CLOUD_PROJECT environment variable")
	}
	return c.httpClient.DoAndUnmarshal(ctx, req, result)
}

// userMgtURL returns the v1 user-management URL for the given resource path,
// scoped to the client's tenant when one is set.
func (c *baseClient) userMgtURL(path string) string {
	url := fmt.Sprintf("%s/projects/%s", c.userManagementEndpoint, c.projectID)
	if c.tenantID != "" {
		url = fmt.Sprintf("%s/tenants/%s", url, c.tenantID)
	}
	return url + path
}

// providerConfigURL returns the v2 provider-config URL for the given resource
// path, scoped to the client's tenant when one is set.
func (c *baseClient) providerConfigURL(path string) string {
	url := fmt.Sprintf("%s/projects/%s", c.providerConfigEndpoint, c.projectID)
	if c.tenantID != "" {
		url = fmt.Sprintf("%s/tenants/%s", url, c.tenantID)
	}
	return url + path
}

// tenantMgtURL returns the v2 tenant-management URL for the given resource
// path. Tenant management is never tenant-scoped.
func (c *baseClient) tenantMgtURL(path string) string {
	return fmt.Sprintf("%s/projects/%s%s", c.tenantMgtEndpoint, c.projectID, path)
}
