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
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/firekit/firekit-admin-go/internal"
)

// UserInfo is a collection of standard profile information for a user.
type UserInfo struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	// ProviderID can be short domain name (e.g. google.com) or the identifier
	// of an OIDC or SAML identity provider.
	ProviderID string `json:"providerId,omitempty"`
	// UID is an identifier uniquely associated with this provider.
	UID string `json:"rawId,omitempty"`
}

// UserMetadata contains additional metadata associated with a user account.
// Timestamps are in milliseconds since epoch.
type UserMetadata struct {
	CreationTimestamp  int64
	LastLogInTimestamp int64
	// LastRefreshTimestamp is the time at which the user was last active
	// (ID token refreshed), or 0 if the user was never active.
	LastRefreshTimestamp int64
}

// UserRecord contains metadata associated with a Firebase user account.
type UserRecord struct {
	*UserInfo
	CustomClaims           map[string]interface{}
	Disabled               bool
	EmailVerified          bool
	ProviderUserInfo       []*UserInfo
	TokensValidAfterMillis int64 // milliseconds since epoch.
	UserMetadata           *UserMetadata
	TenantID               string
}

// IsUserNotFound checks if the given error was due to a non-existing user.
func IsUserNotFound(err error) bool {
	return hasAuthErrorCode(err, userNotFound)
}

// IsEmailAlreadyExists checks if the given error was due to a duplicate email.
func IsEmailAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, emailAlreadyExists)
}

// IsUIDAlreadyExists checks if the given error was due to a duplicate uid.
func IsUIDAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, uidAlreadyExists)
}

// IsPhoneNumberAlreadyExists checks if the given error was due to a duplicate
// phone number.
func IsPhoneNumberAlreadyExists(err error) bool {
	return hasAuthErrorCode(err, phoneNumberAlreadyExists)
}

// IsInsufficientPermission checks if the given error was due to the SDK
// credential lacking the required access permissions.
func IsInsufficientPermission(err error) bool {
	return hasAuthErrorCode(err, insufficientPermission)
}

// IsInvalidEmail checks if the given error was due to an invalid email.
func IsInvalidEmail(err error) bool {
	return hasAuthErrorCode(err, invalidEmail)
}

// IsInvalidPageToken checks if the given error was due to an invalid or
// malformed page token.
func IsInvalidPageToken(err error) bool {
	return hasAuthErrorCode(err, invalidPageToken)
}

// IsUnexpectedResponse checks if the given error was caused by a backend
// response that did not carry the expected payload.
func IsUnexpectedResponse(err error) bool {
	return hasAuthErrorCode(err, unexpectedResponse)
}

// UserToCreate is the parameter struct for the CreateUser function.
type UserToCreate struct {
	params map[string]interface{}
}

func (u *UserToCreate) set(key string, value interface{}) *UserToCreate {
	if u.params == nil {
		u.params = make(map[string]interface{})
	}
	u.params[key] = value
	return u
}

// Disabled setter.
func (u *UserToCreate) Disabled(disabled bool) *UserToCreate { return u.set("disabled", disabled) }

// DisplayName setter.
func (u *UserToCreate) DisplayName(name string) *UserToCreate { return u.set("displayName", name) }

// Email setter.
func (u *UserToCreate) Email(email string) *UserToCreate { return u.set("email", email) }

// EmailVerified setter.
func (u *UserToCreate) EmailVerified(verified bool) *UserToCreate {
	return u.set("emailVerified", verified)
}

// Password setter.
func (u *UserToCreate) Password(pw string) *UserToCreate { return u.set("password", pw) }

// PhoneNumber setter.
func (u *UserToCreate) PhoneNumber(phone string) *UserToCreate { return u.set("phoneNumber", phone) }

// PhotoURL setter.
func (u *UserToCreate) PhotoURL(url string) *UserToCreate { return u.set("photoUrl", url) }

// UID setter.
func (u *UserToCreate) UID(uid string) *UserToCreate { return u.set("localId", uid) }

func (u *UserToCreate) validatedRequest() (map[string]interface{}, error) {
	req := make(map[string]interface{})
	for key, value := range u.params {
		req[key] = value
	}

	if uid, ok := req["localId"]; ok {
		if err := validateUID(uid.(string)); err != nil {
			return nil, err
		}
	}
	if email, ok := req["email"]; ok {
		if err := validateEmail(email.(string)); err != nil {
			return nil, err
		}
	}
	if phone, ok := req["phoneNumber"]; ok {
		if err := validatePhone(phone.(string)); err != nil {
			return nil, err
		}
	}
	if pw, ok := req["password"]; ok {
		if err := validatePassword(pw.(string)); err != nil {
			return nil, err
		}
	}
	if photo, ok := req["photoUrl"]; ok {
		if err := validatePhotoURL(photo.(string)); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// UserToUpdate is the parameter struct for the UpdateUser function.
type UserToUpdate struct {
	params map[string]interface{}
}

func (u *UserToUpdate) set(key string, value interface{}) *UserToUpdate {
	if u.params == nil {
		u.params = make(map[string]interface{})
	}
	u.params[key] = value
	return u
}

// CustomClaims setter. Claims are replaced wholesale on each update; passing
// nil or an empty map removes all existing claims.
func (u *UserToUpdate) CustomClaims(claims map[string]interface{}) *UserToUpdate {
	return u.set("customClaims", claims)
}

// Disabled setter.
func (u *UserToUpdate) Disabled(disabled bool) *UserToUpdate { return u.set("disableUser", disabled) }

// DisplayName setter. Setting to an empty string removes the current display
// name.
func (u *UserToUpdate) DisplayName(name string) *UserToUpdate { return u.set("displayName", name) }

// Email setter.
func (u *UserToUpdate) Email(email string) *UserToUpdate { return u.set("email", email) }

// EmailVerified setter.
func (u *UserToUpdate) EmailVerified(verified bool) *UserToUpdate {
	return u.set("emailVerified", verified)
}

// Password setter.
func (u *UserToUpdate) Password(pw string) *UserToUpdate { return u.set("password", pw) }

// PhoneNumber setter. Setting to an empty string unlinks the phone provider.
func (u *UserToUpdate) PhoneNumber(phone string) *UserToUpdate { return u.set("phoneNumber", phone) }

// PhotoURL setter. Setting to an empty string removes the current photo URL.
func (u *UserToUpdate) PhotoURL(url string) *UserToUpdate { return u.set("photoUrl", url) }

// ProvidersToDelete setter. Unlinks the listed providers from the user.
func (u *UserToUpdate) ProvidersToDelete(providerIds []string) *UserToUpdate {
	return u.set("providersToDelete", providerIds)
}

// revokeRefreshTokens revokes all refresh tokens for a user by setting the
// validSince property to the present time, expressed in seconds since epoch.
func (u *UserToUpdate) revokeRefreshTokens(clock internal.Clock) *UserToUpdate {
	return u.set("validSince", strconv.FormatInt(clock.Now().Unix(), 10))
}

func (u *UserToUpdate) validatedRequest() (map[string]interface{}, error) {
	if len(u.params) == 0 {
		return nil, fmt.Errorf("update parameters must not be nil or empty")
	}

	req := make(map[string]interface{})
	var deleteAttr []string
	var deleteProvider []string
	for key, value := range u.params {
		switch key {
		case "displayName":
			if value.(string) == "" {
				deleteAttr = append(deleteAttr, "DISPLAY_NAME")
			} else {
				req[key] = value
			}
		case "photoUrl":
			if value.(string) == "" {
				deleteAttr = append(deleteAttr, "PHOTO_URL")
			} else {
				if err := validatePhotoURL(value.(string)); err != nil {
					return nil, err
				}
				req[key] = value
			}
		case "phoneNumber":
			if value.(string) == "" {
				deleteProvider = append(deleteProvider, "phone")
			} else {
				if err := validatePhone(value.(string)); err != nil {
					return nil, err
				}
				req[key] = value
			}
		case "email":
			if err := validateEmail(value.(string)); err != nil {
				return nil, err
			}
			req[key] = value
		case "password":
			if err := validatePassword(value.(string)); err != nil {
				return nil, err
			}
			req[key] = value
		case "customClaims":
			claims, _ := value.(map[string]interface{})
			cc, err := marshalCustomClaims(claims)
			if err != nil {
				return nil, err
			}
			req["customAttributes"] = cc
		case "providersToDelete":
			for _, p := range value.([]string) {
				if p == "" {
					return nil, fmt.Errorf("providersToDelete must not include empty strings")
				}
				deleteProvider = append(deleteProvider, p)
			}
		default:
			req[key] = value
		}
	}

	if len(deleteAttr) > 0 {
		req["deleteAttribute"] = deleteAttr
	}
	if len(deleteProvider) > 0 {
		if _, ok := u.params["phoneNumber"]; ok && u.params["phoneNumber"].(string) == "" {
			for _, p := range deleteProvider {
				if p == "phone" && containsProvider(u.params, "phone") {
					return nil, fmt.Errorf(
						"both PhoneNumber('') and ProvidersToDelete(['phone']) were specified; " +
							"to unlink the phone provider use only one of them")
				}
			}
		}
		req["deleteProvider"] = deleteProvider
	}
	return req, nil
}

// containsProvider reports whether the caller explicitly listed the given
// provider in ProvidersToDelete.
func containsProvider(params map[string]interface{}, provider string) bool {
	listed, ok := params["providersToDelete"].([]string)
	if !ok {
		return false
	}
	for _, p := range listed {
		if p == provider {
			return true
		}
	}
	return false
}

func marshalCustomClaims(claims map[string]interface{}) (string, error) {
	for _, key := range reservedClaims {
		if _, ok := claims[key]; ok {
			return "", authError(internal.InvalidArgument, invalidClaims,
				"claim %q is reserved and must not be set", key)
		}
	}

	if claims == nil || len(claims) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("custom claims marshaling error: %v", err)
	}
	if len(b) > maxClaimsPayloadBytes {
		return "", authError(internal.InvalidArgument, claimsTooLarge,
			"serialized custom claims must not exceed %d bytes", maxClaimsPayloadBytes)
	}
	return string(b), nil
}

// CreateUser creates a new user with the specified properties.
func (c *baseClient) CreateUser(ctx context.Context, user *UserToCreate) (*UserRecord, error) {
	uid, err := c.createUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return c.GetUser(ctx, uid)
}

func (c *baseClient) createUser(ctx context.Context, user *UserToCreate) (string, error) {
	if user == nil {
		user = &UserToCreate{}
	}
	request, err := user.validatedRequest()
	if err != nil {
		return "", err
	}

	var result struct {
		UID string `json:"localId"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts"), request, &result); err != nil {
		return "", err
	}
	if result.UID == "" {
		return "", unexpectedResponseError("no uid in account creation response")
	}
	return result.UID, nil
}

// UpdateUser updates an existing user account with the specified properties.
func (c *baseClient) UpdateUser(ctx context.Context, uid string, user *UserToUpdate) (ur *UserRecord, err error) {
	if err := c.updateUser(ctx, uid, user); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, uid)
}

func (c *baseClient) updateUser(ctx context.Context, uid string, user *UserToUpdate) error {
	if err := validateUID(uid); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("update parameters must not be nil or empty")
	}
	request, err := user.validatedRequest()
	if err != nil {
		return err
	}
	request["localId"] = uid

	var result struct {
		UID string `json:"localId"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts:update"), request, &result); err != nil {
		return err
	}
	if result.UID == "" {
		return unexpectedResponseError("no uid in account update response")
	}
	return nil
}

// SetCustomUserClaims sets additional claims on an existing user account.
//
// Custom claims set via this function can be used to define user roles and
// privilege levels. These claims propagate to all the devices where the user
// is already signed in (after token expiration or when token refresh is
// forced), and next time the user signs in. The claims are available on all
// ID tokens minted for the user. The serialized claims must not exceed 1000
// bytes, and must not use any reserved claim names.
func (c *baseClient) SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error {
	if customClaims == nil || len(customClaims) == 0 {
		customClaims = map[string]interface{}{}
	}
	return c.updateUser(ctx, uid, (&UserToUpdate{}).CustomClaims(customClaims))
}

// RevokeRefreshTokens revokes all refresh tokens issued to a user.
//
// RevokeRefreshTokens updates the user's TokensValidAfterMillis to the
// current UTC second. It is important that the server on which this is called
// has its clock set correctly and synchronized.
//
// While this revokes all sessions for a specified user and disables any new
// ID tokens for existing sessions from getting minted, existing ID tokens may
// remain active until their natural expiration (one hour). To verify that ID
// tokens are revoked, use VerifyIDTokenAndCheckRevoked.
func (c *baseClient) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return c.updateUser(ctx, uid, (&UserToUpdate{}).revokeRefreshTokens(c.clock))
}

// GetUser gets the user data corresponding to the specified user ID.
func (c *baseClient) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if err := validateUID(uid); err != nil {
		return nil, err
	}
	return c.getUser(ctx, map[string]interface{}{"localId": []string{uid}}, "uid", uid)
}

// GetUserByEmail gets the user data corresponding to the specified email.
func (c *baseClient) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return c.getUser(ctx, map[string]interface{}{"email": []string{email}}, "email", email)
}

// GetUserByPhoneNumber gets the user data corresponding to the specified
// phone number.
func (c *baseClient) GetUserByPhoneNumber(ctx context.Context, phone string) (*UserRecord, error) {
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	return c.getUser(ctx, map[string]interface{}{"phoneNumber": []string{phone}}, "phone number", phone)
}

// GetUserByProviderUID gets the user data for the user corresponding to a
// given provider ID and the user identifier assigned by that provider.
//
// For provider IDs "phone" and "email", this is equivalent to calling
// GetUserByPhoneNumber or GetUserByEmail respectively.
func (c *baseClient) GetUserByProviderUID(ctx context.Context, providerID, uid string) (*UserRecord, error) {
	switch providerID {
	case "phone":
		return c.GetUserByPhoneNumber(ctx, uid)
	case "email":
		return c.GetUserByEmail(ctx, uid)
	}
	if providerID == "" {
		return nil, fmt.Errorf("providerID must be a non-empty string")
	}
	if uid == "" {
		return nil, fmt.Errorf("providerUID must be a non-empty string")
	}
	request := map[string]interface{}{
		"federatedUserId": []map[string]string{
			{"providerId": providerID, "rawId": uid},
		},
	}
	return c.getUser(ctx, request, "provider uid", fmt.Sprintf("%s:%s", providerID, uid))
}

func (c *baseClient) getUser(ctx context.Context, request map[string]interface{}, label, value string) (*UserRecord, error) {
	var parsed struct {
		Users []*userQueryResponse `json:"users"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts:lookup"), request, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Users) == 0 {
		return nil, authError(internal.NotFound, userNotFound, "cannot find user from %s: %q", label, value)
	}
	return parsed.Users[0].makeUserRecord()
}

// UserIdentifier identifies a user to be looked up. It is one of
// UIDIdentifier, EmailIdentifier, PhoneIdentifier or ProviderIdentifier.
type UserIdentifier interface {
	matches(ur *UserRecord) bool
	populate(req *getAccountInfoRequest)
}

// UIDIdentifier is used for looking up an account by uid.
type UIDIdentifier struct {
	UID string
}

func (id UIDIdentifier) matches(ur *UserRecord) bool {
	return id.UID == ur.UID
}

func (id UIDIdentifier) populate(req *getAccountInfoRequest) {
	req.LocalID = append(req.LocalID, id.UID)
}

// EmailIdentifier is used for looking up an account by email.
type EmailIdentifier struct {
	Email string
}

func (id EmailIdentifier) matches(ur *UserRecord) bool {
	return id.Email == ur.Email
}

func (id EmailIdentifier) populate(req *getAccountInfoRequest) {
	req.Email = append(req.Email, id.Email)
}

// PhoneIdentifier is used for looking up an account by phone number.
type PhoneIdentifier struct {
	PhoneNumber string
}

func (id PhoneIdentifier) matches(ur *UserRecord) bool {
	return id.PhoneNumber == ur.PhoneNumber
}

func (id PhoneIdentifier) populate(req *getAccountInfoRequest) {
	req.PhoneNumber = append(req.PhoneNumber, id.PhoneNumber)
}

// ProviderIdentifier is used for looking up an account by federated provider.
type ProviderIdentifier struct {
	ProviderID  string
	ProviderUID string
}

func (id ProviderIdentifier) matches(ur *UserRecord) bool {
	for _, userInfo := range ur.ProviderUserInfo {
		if id.ProviderID == userInfo.ProviderID && id.ProviderUID == userInfo.UID {
			return true
		}
	}
	return false
}

func (id ProviderIdentifier) populate(req *getAccountInfoRequest) {
	req.FederatedUserID = append(
		req.FederatedUserID,
		federatedUserIdentifier{ProviderID: id.ProviderID, RawID: id.ProviderUID})
}

type federatedUserIdentifier struct {
	ProviderID string `json:"providerId,omitempty"`
	RawID      string `json:"rawId,omitempty"`
}

type getAccountInfoRequest struct {
	LocalID         []string                  `json:"localId,omitempty"`
	Email           []string                  `json:"email,omitempty"`
	PhoneNumber     []string                  `json:"phoneNumber,omitempty"`
	FederatedUserID []federatedUserIdentifier `json:"federatedUserId,omitempty"`
}

func (req *getAccountInfoRequest) validate() error {
	for _, email := range req.Email {
		if err := validateEmail(email); err != nil {
			return err
		}
	}
	for _, uid := range req.LocalID {
		if err := validateUID(uid); err != nil {
			return err
		}
	}
	for _, phone := range req.PhoneNumber {
		if err := validatePhone(phone); err != nil {
			return err
		}
	}
	for _, id := range req.FederatedUserID {
		if id.ProviderID == "" {
			return fmt.Errorf("providerID must be a non-empty string")
		}
		if id.RawID == "" {
			return fmt.Errorf("providerUID must be a non-empty string")
		}
	}
	return nil
}

// GetUsersResult represents the result of the GetUsers API.
type GetUsersResult struct {
	// Users is the set of user records corresponding to the identifiers that
	// were found.
	Users []*UserRecord
	// NotFound is the set of identifiers that were not found.
	NotFound []UserIdentifier
}

// GetUsers returns the user data corresponding to the specified identifiers.
//
// There are no ordering guarantees; in particular, the nth entry in the users
// result list is not guaranteed to correspond to the nth entry in the input
// parameters list.
//
// A maximum of 100 identifiers may be supplied. If more than 100 identifiers
// are supplied, this function raises an error.
func (c *baseClient) GetUsers(ctx context.Context, identifiers []UserIdentifier) (*GetUsersResult, error) {
	if len(identifiers) == 0 {
		return &GetUsersResult{[]*UserRecord{}, []UserIdentifier{}}, nil
	}
	if len(identifiers) > maxGetAccountsBatchSize {
		return nil, fmt.Errorf(
			"`identifiers` parameter must have <= %d entries", maxGetAccountsBatchSize)
	}

	var request getAccountInfoRequest
	for _, id := range identifiers {
		id.populate(&request)
	}
	if err := request.validate(); err != nil {
		return nil, err
	}

	var parsed struct {
		Users []*userQueryResponse `json:"users"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts:lookup"), &request, &parsed); err != nil {
		return nil, err
	}

	var users []*UserRecord
	for _, u := range parsed.Users {
		ur, err := u.makeUserRecord()
		if err != nil {
			return nil, err
		}
		users = append(users, ur)
	}

	var notFound []UserIdentifier
	for _, id := range identifiers {
		if !isUserFound(id, users) {
			notFound = append(notFound, id)
		}
	}
	return &GetUsersResult{users, notFound}, nil
}

func isUserFound(id UserIdentifier, urs []*UserRecord) bool {
	for _, ur := range urs {
		if id.matches(ur) {
			return true
		}
	}
	return false
}

// DeleteUser deletes the user by the given UID.
func (c *baseClient) DeleteUser(ctx context.Context, uid string) error {
	if err := validateUID(uid); err != nil {
		return err
	}

	request := map[string]interface{}{"localId": uid}
	var result struct {
		Kind string `json:"kind"`
	}
	_, err := c.post(ctx, c.userMgtURL("/accounts:delete"), request, &result)
	return err
}

// DeleteUsersResult represents the result of the DeleteUsers call.
type DeleteUsersResult struct {
	// SuccessCount is the number of users that were deleted successfully.
	SuccessCount int
	// FailureCount is the number of users that failed to be deleted.
	FailureCount int
	// Errors is the errors corresponding to the failed deletions, keyed by
	// the index of the uid in the original parameter list.
	Errors []*DeleteUsersErrorInfo
}

// DeleteUsersErrorInfo represents an error encountered while deleting a user.
type DeleteUsersErrorInfo struct {
	Index  int    `json:"index,omitempty"`
	Reason string `json:"message,omitempty"`
}

// DeleteUsers deletes the users specified by the given identifiers.
//
// Deleting a user who doesn't exist is not an error; the uid is reported as
// deleted successfully. A maximum of 1000 identifiers may be supplied.
//
// This API has a rate limit of 1 QPS; exceeding the limit may result in a
// quota-exceeded error. To delete a larger volume of users, spread out the
// calls over more than one second.
func (c *baseClient) DeleteUsers(ctx context.Context, uids []string) (*DeleteUsersResult, error) {
	if len(uids) == 0 {
		return &DeleteUsersResult{}, nil
	}
	if len(uids) > maxDeleteAccountsBatchSize {
		return nil, fmt.Errorf(
			"`uids` parameter must have <= %d entries", maxDeleteAccountsBatchSize)
	}
	for _, uid := range uids {
		if err := validateUID(uid); err != nil {
			return nil, err
		}
	}

	request := map[string]interface{}{
		"localIds": uids,
		"force":    true,
	}
	var parsed struct {
		Errors []*DeleteUsersErrorInfo `json:"errors"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts:batchDelete"), request, &parsed); err != nil {
		return nil, err
	}

	return &DeleteUsersResult{
		SuccessCount: len(uids) - len(parsed.Errors),
		FailureCount: len(parsed.Errors),
		Errors:       parsed.Errors,
	}, nil
}

// userQueryResponse is the Identity Toolkit representation of a user account.
type userQueryResponse struct {
	UID                string      `json:"localId,omitempty"`
	DisplayName        string      `json:"displayName,omitempty"`
	Email              string      `json:"email,omitempty"`
	PhoneNumber        string      `json:"phoneNumber,omitempty"`
	PhotoURL           string      `json:"photoUrl,omitempty"`
	CreationTimestamp  int64       `json:"createdAt,string,omitempty"`
	LastLogInTimestamp int64       `json:"lastLoginAt,string,omitempty"`
	LastRefreshAt      string      `json:"lastRefreshAt,omitempty"`
	ProviderUserInfo   []*UserInfo `json:"providerUserInfo,omitempty"`
	CustomAttributes   string      `json:"customAttributes,omitempty"`
	Disabled           bool        `json:"disabled,omitempty"`
	EmailVerified      bool        `json:"emailVerified,omitempty"`
	PasswordHash       string      `json:"passwordHash,omitempty"`
	PasswordSalt       string      `json:"salt,omitempty"`
	TenantID           string      `json:"tenantId,omitempty"`
	ValidSinceSeconds  int64       `json:"validSince,string,omitempty"`
}

func (r *userQueryResponse) makeUserRecord() (*UserRecord, error) {
	exported, err := r.makeExportedUserRecord()
	if err != nil {
		return nil, err
	}
	return exported.UserRecord, nil
}

func (r *userQueryResponse) makeExportedUserRecord() (*ExportedUserRecord, error) {
	var customClaims map[string]interface{}
	if r.CustomAttributes != "" {
		if err := json.Unmarshal([]byte(r.CustomAttributes), &customClaims); err != nil {
			return nil, err
		}
		if len(customClaims) == 0 {
			customClaims = nil
		}
	}

	// If the password hash is redacted (probably due to missing permissions),
	// then clear it out, similar to how the salt is returned. (Otherwise, it
	// *looks* like a b64-encoded hash is present, which is confusing.)
	hash := r.PasswordHash
	if hash == "UkVEQUNURUQ=" {
		hash = ""
	}

	var lastRefreshTimestamp int64
	if r.LastRefreshAt != "" {
		t, err := time.Parse(time.RFC3339, r.LastRefreshAt)
		if err != nil {
			return nil, err
		}
		lastRefreshTimestamp = t.Unix() * 1000
	}

	return &ExportedUserRecord{
		UserRecord: &UserRecord{
			UserInfo: &UserInfo{
				DisplayName: r.DisplayName,
				Email:       r.Email,
				PhoneNumber: r.PhoneNumber,
				PhotoURL:    r.PhotoURL,
				ProviderID:  defaultProviderID,
				UID:         r.UID,
			},
			CustomClaims:           customClaims,
			Disabled:               r.Disabled,
			EmailVerified:          r.EmailVerified,
			ProviderUserInfo:       r.ProviderUserInfo,
			TokensValidAfterMillis: r.ValidSinceSeconds * 1000,
			UserMetadata: &UserMetadata{
				LastLogInTimestamp:   r.LastLogInTimestamp,
				CreationTimestamp:    r.CreationTimestamp,
				LastRefreshTimestamp: lastRefreshTimestamp,
			},
			TenantID: r.TenantID,
		},
		PasswordHash: hash,
		PasswordSalt: r.PasswordSalt,
	}, nil
}

const defaultProviderID = "firebase"

var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+$`)

func validateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("uid must be a non-empty string")
	}
	if len(uid) > 128 {
		return fmt.Errorf("uid string must not be longer than 128 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email must be a non-empty string")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("malformed email string: %q", email)
	}
	return nil
}

func validatePassword(val string) error {
	if len(val) < 6 {
		return fmt.Errorf("password must be a string at least 6 characters long")
	}
	return nil
}

func validatePhotoURL(val string) error {
	if val == "" {
		return fmt.Errorf("photo url must be a non-empty string")
	}
	parsed, err := url.ParseRequestURI(val)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("malformed photo url string: %q", val)
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number must be a non-empty string")
	}
	if !strings.HasPrefix(phone, "+") {
		return fmt.Errorf("phone number must be a valid, E.164 compliant identifier starting with a '+' sign")
	}
	return nil
}
