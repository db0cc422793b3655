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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sync"

	"cloud.google.com/go/compute/metadata"
	"github.com/firekit/firekit-admin-go/internal"
)

const (
	iamCredentialsEndpoint = "https://iamcredentials.googleapis.com"

	// Maximum size of the JSON-serialized developer claims object.
	maxClaimsPayloadBytes = 1000
)

// reservedClaims are the OIDC and Firebase claims that cannot be specified
// as developer claims on a custom token.
var reservedClaims = []string{
	"amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "iat", "iss", "jti", "nbf", "nonce", "sub", "firebase",
}

type jwtHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
	KeyID     string `json:"kid,omitempty"`
}

type customToken struct {
	Iss      string                 `json:"iss"`
	Aud      string                 `json:"aud"`
	Exp      int64                  `json:"exp"`
	Iat      int64                  `json:"iat"`
	Sub      string                 `json:"sub,omitempty"`
	UID      string                 `json:"uid,omitempty"`
	TenantID string                 `json:"tenant_id,omitempty"`
	Claims   map[string]interface{} `json:"claims,omitempty"`
}

type jwtInfo struct {
	header  jwtHeader
	payload interface{}
}

// Token encodes the header and payload of i into a signed JWT, using the
// given signer.
func (i *jwtInfo) Token(ctx context.Context, signer cryptoSigner) (string, error) {
	encode := func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return base64.RawURLEncoding.EncodeToString(b), nil
	}
	header, err := encode(i.header)
	if err != nil {
		return "", err
	}
	payload, err := encode(i.payload)
	if err != nil {
		return "", err
	}
	ss := fmt.Sprintf("%s.%s", header, payload)
	sig, err := signer.Sign(ctx, []byte(ss))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", ss, base64.RawURLEncoding.EncodeToString(sig)), nil
}

// cryptoSigner is used to cryptographically sign data, and query the identity
// of the signer.
type cryptoSigner interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	Email(ctx context.Context) (string, error)
	Algorithm() string
}

// newCryptoSigner creates a new cryptoSigner instance for the given
// credentials.
//
// Signers are resolved in order: in-process service account private key, IAM
// signBlob with a configured service account id, and finally IAM signBlob
// with the default service account discovered from the metadata service. The
// emulator always uses the unsigned emulatedSigner.
func newCryptoSigner(ctx context.Context, config *internal.AuthConfig, isEmulator bool) (cryptoSigner, error) {
	if isEmulator {
		return emulatedSigner{}, nil
	}

	if config.Creds != nil && len(config.Creds.JSON) > 0 {
		var sa serviceAccount
		if err := json.Unmarshal(config.Creds.JSON, &sa); err != nil {
			return nil, err
		}
		if sa.PrivateKey != "" {
			return newServiceAccountSigner(sa)
		}
	}

	if signer, ok := appEngineSigner(ctx); ok {
		return signer, nil
	}

	return newIAMSigner(ctx, config)
}

type serviceAccount struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// serviceAccountSigner signs data in-process using the RSA private key of a
// service account.
type serviceAccountSigner struct {
	privateKey  *rsa.PrivateKey
	clientEmail string
}

func newServiceAccountSigner(sa serviceAccount) (*serviceAccountSigner, error) {
	if sa.ClientEmail == "" {
		return nil, fmt.Errorf("service account credentials do not specify a client email")
	}
	block, _ := pem.Decode([]byte(sa.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("no private key data found in service account credentials")
	}
	k := block.Bytes
	parsedKey, err := x509.ParsePKCS8PrivateKey(k)
	if err != nil {
		parsedKey, err = x509.ParsePKCS1PrivateKey(k)
		if err != nil {
			return nil, fmt.Errorf("private key should be a PEM or plain PKCS1 or PKCS8: %v", err)
		}
	}
	parsed, ok := parsedKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not an RSA key")
	}
	return &serviceAccountSigner{
		privateKey:  parsed,
		clientEmail: sa.ClientEmail,
	}, nil
}

func (s *serviceAccountSigner) Sign(ctx context.Context, b []byte) ([]byte, error) {
	hash := sha256.Sum256(b)
	return rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, hash[:])
}

func (s *serviceAccountSigner) Email(ctx context.Context) (string, error) {
	return s.clientEmail, nil
}

func (s *serviceAccountSigner) Algorithm() string {
	return "RS256"
}

// iamSigner signs data remotely by sending it to the IAMCredentials service.
//
// When no service account is configured, the default service account email is
// discovered from the metadata service the first time it is needed, and
// memoized thereafter.
type iamSigner struct {
	mutex       sync.Mutex
	httpClient  *internal.HTTPClient
	serviceAcct string
	iamHost     string
}

func newIAMSigner(ctx context.Context, config *internal.AuthConfig) (*iamSigner, error) {
	hc, _, err := internal.NewHTTPClient(ctx, config.Opts...)
	if err != nil {
		return nil, err
	}
	return &iamSigner{
		httpClient:  hc,
		serviceAcct: config.ServiceAccountID,
		iamHost:     iamCredentialsEndpoint,
	}, nil
}

func (s *iamSigner) Sign(ctx context.Context, b []byte) ([]byte, error) {
	account, err := s.Email(ctx)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v1/projects/-/serviceAccounts/%s:signBlob", s.iamHost, account)
	body := map[string]interface{}{
		"payload": base64.StdEncoding.EncodeToString(b),
	}
	var signResponse struct {
		Signature string `json:"signedBlob"`
	}
	req := &internal.Request{
		Method: "POST",
		URL:    url,
		Body:   internal.NewJSONEntity(body),
	}
	if _, err := s.httpClient.DoAndUnmarshal(ctx, req, &signResponse); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(signResponse.Signature)
}

func (s *iamSigner) Email(ctx context.Context) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.serviceAcct != "" {
		return s.serviceAcct, nil
	}

	if !metadata.OnGCE() {
		return "", fmt.Errorf("unable to determine service account: initialize the SDK with service " +
			"account credentials, or specify a service account with iam.serviceAccounts.signBlob " +
			"permission; refer to https://firebase.google.com/docs/auth/admin/create-custom-tokens " +
			"for more details on creating custom tokens")
	}
	email, err := metadata.EmailWithContext(ctx, "default")
	if err != nil {
		return "", fmt.Errorf("failed to query the default service account from the metadata service: %v", err)
	}
	s.serviceAcct = email
	return email, nil
}

func (s *iamSigner) Algorithm() string {
	return "RS256"
}

// emulatedSigner produces unsigned tokens for the Auth emulator.
type emulatedSigner struct{}

func (s emulatedSigner) Email(context.Context) (string, error) {
	return "firebase-auth-emulator@example.com", nil
}

func (s emulatedSigner) Algorithm() string {
	return "none"
}

func (s emulatedSigner) Sign(context.Context, []byte) ([]byte, error) {
	return []byte(""), nil
}
