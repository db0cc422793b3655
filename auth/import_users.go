// Copyright 2018 Google Inc. All Rights Reserved.
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
	"encoding/base64"
	"fmt"

	"github.com/firekit/firekit-admin-go/internal"
)

// UserImportHash represents a hash algorithm and the associated configuration
// that can be used to hash user passwords.
//
// A UserImportHash must be specified as a UserImportOption when importing
// users with passwords. See ImportUsers and WithHash functions.
type UserImportHash interface {
	Config() (internal.HashConfig, error)
}

// UserImportOption is an option for the ImportUsers function.
type UserImportOption interface {
	applyTo(req *userImportRequest) error
}

// WithHash returns a UserImportOption that specifies a hash configuration.
func WithHash(hash UserImportHash) UserImportOption {
	return withHash{hash}
}

type withHash struct {
	hash UserImportHash
}

func (w withHash) applyTo(req *userImportRequest) error {
	if w.hash == nil {
		return fmt.Errorf("hash must not be nil")
	}
	conf, err := w.hash.Config()
	if err != nil {
		return err
	}
	for k, v := range conf {
		req.body[k] = v
	}
	return nil
}

// UserImportResult represents the result of an ImportUsers call.
type UserImportResult struct {
	// SuccessCount is the number of users successfully imported.
	SuccessCount int
	// FailureCount is the number of users that failed to be imported.
	FailureCount int
	// Errors is the errors corresponding to the failed imports, keyed by the
	// index of the user in the original parameter list.
	Errors []*ErrorInfo
}

// ErrorInfo represents an error encountered while importing a single user.
type ErrorInfo struct {
	Index  int    `json:"index"`
	Reason string `json:"message"`
}

// UserProvider represents a user identity provider.
//
// One or more user providers can be specified for each user when importing in
// bulk. See UserToImport type.
type UserProvider struct {
	UID         string `json:"rawId"`
	ProviderID  string `json:"providerId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// UserToImport represents a user account that can be bulk imported into
// Firebase Auth.
type UserToImport struct {
	info map[string]interface{}
}

func (u *UserToImport) set(key string, value interface{}) *UserToImport {
	if u.info == nil {
		u.info = make(map[string]interface{})
	}
	u.info[key] = value
	return u
}

// UID setter. This field is required.
func (u *UserToImport) UID(uid string) *UserToImport { return u.set("localId", uid) }

// Email setter.
func (u *UserToImport) Email(email string) *UserToImport { return u.set("email", email) }

// DisplayName setter.
func (u *UserToImport) DisplayName(displayName string) *UserToImport {
	return u.set("displayName", displayName)
}

// PhotoURL setter.
func (u *UserToImport) PhotoURL(url string) *UserToImport { return u.set("photoUrl", url) }

// PhoneNumber setter.
func (u *UserToImport) PhoneNumber(phoneNumber string) *UserToImport {
	return u.set("phoneNumber", phoneNumber)
}

// Metadata setter.
func (u *UserToImport) Metadata(metadata *UserMetadata) *UserToImport {
	return u.set("metadata", metadata)
}

// CustomClaims setter.
func (u *UserToImport) CustomClaims(claims map[string]interface{}) *UserToImport {
	return u.set("customClaims", claims)
}

// Disabled setter.
func (u *UserToImport) Disabled(disabled bool) *UserToImport { return u.set("disabled", disabled) }

// EmailVerified setter.
func (u *UserToImport) EmailVerified(emailVerified bool) *UserToImport {
	return u.set("emailVerified", emailVerified)
}

// PasswordHash setter. When set a UserImportHash must be specified as an
// option to call ImportUsers.
func (u *UserToImport) PasswordHash(password []byte) *UserToImport {
	return u.set("passwordHash", password)
}

// PasswordSalt setter.
func (u *UserToImport) PasswordSalt(salt []byte) *UserToImport {
	return u.set("passwordSalt", salt)
}

// ProviderData setter.
func (u *UserToImport) ProviderData(providers []*UserProvider) *UserToImport {
	return u.set("providerUserInfo", providers)
}

// ImportUsers imports an array of users to Firebase Auth.
//
// No more than 1000 users can be imported in a single call. If at least one
// user specifies a password hash, a UserImportHash must be specified as an
// option. ImportUsers does not fail when any of the individual users in the
// batch fails to import; the per-user failures are reported through the
// returned UserImportResult.
func (c *baseClient) ImportUsers(ctx context.Context, users []*UserToImport, opts ...UserImportOption) (*UserImportResult, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("users list must not be empty")
	}
	if len(users) > maxImportUsers {
		return nil, fmt.Errorf("users list must not contain more than %d items", maxImportUsers)
	}

	req := &userImportRequest{
		body: make(map[string]interface{}),
	}
	hashRequired := false
	var validatedUsers []map[string]interface{}
	for _, user := range users {
		vu, err := user.validatedInfo()
		if err != nil {
			return nil, err
		}
		if _, ok := vu["passwordHash"]; ok {
			hashRequired = true
		}
		validatedUsers = append(validatedUsers, vu)
	}
	req.body["users"] = validatedUsers

	for _, opt := range opts {
		if err := opt.applyTo(req); err != nil {
			return nil, err
		}
	}
	if hashRequired {
		if _, ok := req.body["hashAlgorithm"]; !ok {
			return nil, fmt.Errorf("hash algorithm option is required to import users with passwords")
		}
	}

	var parsed struct {
		Error []*ErrorInfo `json:"error"`
	}
	if _, err := c.post(ctx, c.userMgtURL("/accounts:batchCreate"), req.body, &parsed); err != nil {
		return nil, err
	}
	return &UserImportResult{
		SuccessCount: len(users) - len(parsed.Error),
		FailureCount: len(parsed.Error),
		Errors:       parsed.Error,
	}, nil
}

type userImportRequest struct {
	body map[string]interface{}
}

func (u *UserToImport) validatedInfo() (map[string]interface{}, error) {
	info := make(map[string]interface{})
	for k, v := range u.info {
		info[k] = v
	}

	uid, ok := info["localId"]
	if !ok {
		return nil, fmt.Errorf("no uid specified for user")
	}
	if err := validateUID(uid.(string)); err != nil {
		return nil, err
	}
	if email, ok := info["email"]; ok {
		if err := validateEmail(email.(string)); err != nil {
			return nil, err
		}
	}
	if phone, ok := info["phoneNumber"]; ok {
		if err := validatePhone(phone.(string)); err != nil {
			return nil, err
		}
	}

	if claims, ok := info["customClaims"]; ok {
		delete(info, "customClaims")
		cc, err := marshalCustomClaims(claims.(map[string]interface{}))
		if err != nil {
			return nil, err
		}
		if cc != "{}" {
			info["customAttributes"] = cc
		}
	}

	if metadata, ok := info["metadata"]; ok {
		delete(info, "metadata")
		meta := metadata.(*UserMetadata)
		if meta.CreationTimestamp != 0 {
			info["createdAt"] = meta.CreationTimestamp
		}
		if meta.LastLogInTimestamp != 0 {
			info["lastLoginAt"] = meta.LastLogInTimestamp
		}
	}

	if hash, ok := info["passwordHash"]; ok {
		info["passwordHash"] = base64.RawURLEncoding.EncodeToString(hash.([]byte))
	}
	if salt, ok := info["passwordSalt"]; ok {
		info["salt"] = base64.RawURLEncoding.EncodeToString(salt.([]byte))
		delete(info, "passwordSalt")
	}

	if providers, ok := info["providerUserInfo"]; ok {
		for _, p := range providers.([]*UserProvider) {
			if p.UID == "" {
				return nil, fmt.Errorf("user provider must specify a uid")
			}
			if p.ProviderID == "" {
				return nil, fmt.Errorf("user provider must specify a provider ID")
			}
		}
	}
	return info, nil
}
