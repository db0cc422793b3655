// Copyright 2026 Google LLC
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
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/iterator"
)

const oidcConfigResponse = `{
	"name": "projects/mock-project-id/oauthIdpConfigs/oidc.provider",
	"clientId": "CLIENT_ID",
	"issuer": "https://oidc.com/issuer",
	"displayName": "OIDC provider",
	"enabled": true
}`

const samlConfigResponse = `{
	"name": "projects/mock-project-id/inboundSamlConfigs/saml.provider",
	"idpConfig": {
		"idpEntityId": "IDP_ENTITY_ID",
		"ssoUrl": "https://example.com/login",
		"signRequest": true,
		"idpCertificates": [
			{"x509Certificate": "CERT1"},
			{"x509Certificate": "CERT2"}
		]
	},
	"spConfig": {
		"spEntityId": "RP_ENTITY_ID",
		"callbackUri": "https://projectId.firebaseapp.com/__/auth/handler"
	},
	"displayName": "SAML provider",
	"enabled": true
}`

var oidcProviderConfig = &OIDCProviderConfig{
	ID:          "oidc.provider",
	DisplayName: "OIDC provider",
	Enabled:     true,
	ClientID:    "CLIENT_ID",
	Issuer:      "https://oidc.com/issuer",
}

var samlProviderConfig = &SAMLProviderConfig{
	ID:                    "saml.provider",
	DisplayName:           "SAML provider",
	Enabled:               true,
	IDPEntityID:           "IDP_ENTITY_ID",
	SSOURL:                "https://example.com/login",
	RequestSigningEnabled: true,
	X509Certificates:      []string{"CERT1", "CERT2"},
	RPEntityID:            "RP_ENTITY_ID",
	CallbackURL:           "https://projectId.firebaseapp.com/__/auth/handler",
}

func TestOIDCProviderConfig(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	config, err := s.Client.OIDCProviderConfig(context.Background(), "oidc.provider")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, oidcProviderConfig) {
		t.Errorf("OIDCProviderConfig() = %#v; want = %#v", config, oidcProviderConfig)
	}

	req := s.Req[0]
	if req.Method != "GET" {
		t.Errorf("OIDCProviderConfig() Method = %q; want = %q", req.Method, "GET")
	}
	wantPath := "/v2/projects/mock-project-id/oauthIdpConfigs/oidc.provider"
	if req.URL.Path != wantPath {
		t.Errorf("OIDCProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
}

func TestOIDCProviderConfigInvalidID(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	client := s.Client
	ctx := context.Background()
	for _, id := range []string{"", "foo", "saml.provider"} {
		if _, err := client.OIDCProviderConfig(ctx, id); err == nil {
			t.Errorf("OIDCProviderConfig(%q) = nil; want error", id)
		}
	}
	if len(s.Req) != 0 {
		t.Errorf("OIDCProviderConfig() requests = %d; want = 0", len(s.Req))
	}
}

func TestCreateOIDCProviderConfig(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	options := (&OIDCProviderConfigToCreate{}).
		ID("oidc.provider").
		ClientID("CLIENT_ID").
		Issuer("https://oidc.com/issuer").
		DisplayName("OIDC provider").
		Enabled(true)
	config, err := s.Client.CreateOIDCProviderConfig(context.Background(), options)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, oidcProviderConfig) {
		t.Errorf("CreateOIDCProviderConfig() = %#v; want = %#v", config, oidcProviderConfig)
	}

	wantBody := map[string]interface{}{
		"clientId":    "CLIENT_ID",
		"issuer":      "https://oidc.com/issuer",
		"displayName": "OIDC provider",
		"enabled":     true,
	}
	var got map[string]interface{}
	if err := json.Unmarshal(s.Rbody, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantBody, got); diff != "" {
		t.Errorf("CreateOIDCProviderConfig() request mismatch (-want +got):\n%s", diff)
	}

	req := s.Req[0]
	if req.Method != "POST" {
		t.Errorf("CreateOIDCProviderConfig() Method = %q; want = %q", req.Method, "POST")
	}
	wantPath := "/v2/projects/mock-project-id/oauthIdpConfigs"
	if req.URL.Path != wantPath {
		t.Errorf("CreateOIDCProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	if got := req.URL.Query().Get("oauthIdpConfigId"); got != "oidc.provider" {
		t.Errorf("CreateOIDCProviderConfig() oauthIdpConfigId = %q; want = %q", got, "oidc.provider")
	}
}

func TestCreateOIDCProviderConfigMinimal(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	options := (&OIDCProviderConfigToCreate{}).
		ID("oidc.provider").
		ClientID("CLIENT_ID").
		Issuer("https://oidc.com/issuer")
	if _, err := s.Client.CreateOIDCProviderConfig(context.Background(), options); err != nil {
		t.Fatal(err)
	}

	wantBody := map[string]interface{}{
		"clientId": "CLIENT_ID",
		"issuer":   "https://oidc.com/issuer",
	}
	var got map[string]interface{}
	if err := json.Unmarshal(s.Rbody, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantBody, got); diff != "" {
		t.Errorf("CreateOIDCProviderConfig() request mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateOIDCProviderConfigError(t *testing.T) {
	cases := []struct {
		name string
		conf *OIDCProviderConfigToCreate
	}{
		{
			name: "NilConfig",
			conf: nil,
		},
		{
			name: "NoParams",
			conf: (&OIDCProviderConfigToCreate{}).ID("oidc.provider"),
		},
		{
			name: "InvalidID",
			conf: (&OIDCProviderConfigToCreate{}).
				ID("saml.provider").
				ClientID("CLIENT_ID").
				Issuer("https://oidc.com/issuer"),
		},
		{
			name: "NoClientID",
			conf: (&OIDCProviderConfigToCreate{}).
				ID("oidc.provider").
				Issuer("https://oidc.com/issuer"),
		},
		{
			name: "NoIssuer",
			conf: (&OIDCProviderConfigToCreate{}).
				ID("oidc.provider").
				ClientID("CLIENT_ID"),
		},
		{
			name: "MalformedIssuer",
			conf: (&OIDCProviderConfigToCreate{}).
				ID("oidc.provider").
				ClientID("CLIENT_ID").
				Issuer("not a url"),
		},
	}

	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Client.CreateOIDCProviderConfig(context.Background(), tc.conf); err == nil {
				t.Errorf("CreateOIDCProviderConfig() = nil; want error")
			}
		})
	}
	if len(s.Req) != 0 {
		t.Errorf("CreateOIDCProviderConfig() requests = %d; want = 0", len(s.Req))
	}
}

func TestUpdateOIDCProviderConfig(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	options := (&OIDCProviderConfigToUpdate{}).
		ClientID("CLIENT_ID").
		Issuer("https://oidc.com/issuer").
		DisplayName("OIDC provider").
		Enabled(true)
	config, err := s.Client.UpdateOIDCProviderConfig(context.Background(), "oidc.provider", options)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, oidcProviderConfig) {
		t.Errorf("UpdateOIDCProviderConfig() = %#v; want = %#v", config, oidcProviderConfig)
	}

	req := s.Req[0]
	if req.Method != "PATCH" {
		t.Errorf("UpdateOIDCProviderConfig() Method = %q; want = %q", req.Method, "PATCH")
	}
	wantPath := "/v2/projects/mock-project-id/oauthIdpConfigs/oidc.provider"
	if req.URL.Path != wantPath {
		t.Errorf("UpdateOIDCProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	wantMask := "clientId,displayName,enabled,issuer"
	if got := req.URL.Query().Get("updateMask"); got != wantMask {
		t.Errorf("UpdateOIDCProviderConfig() updateMask = %q; want = %q", got, wantMask)
	}
}

func TestUpdateOIDCProviderConfigClearDisplayName(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	options := (&OIDCProviderConfigToUpdate{}).DisplayName("")
	if _, err := s.Client.UpdateOIDCProviderConfig(context.Background(), "oidc.provider", options); err != nil {
		t.Fatal(err)
	}

	wantBody := map[string]interface{}{
		"displayName": nil,
	}
	var got map[string]interface{}
	if err := json.Unmarshal(s.Rbody, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantBody, got); diff != "" {
		t.Errorf("UpdateOIDCProviderConfig() request mismatch (-want +got):\n%s", diff)
	}
	if got := s.Req[0].URL.Query().Get("updateMask"); got != "displayName" {
		t.Errorf("UpdateOIDCProviderConfig() updateMask = %q; want = %q", got, "displayName")
	}
}

func TestUpdateOIDCProviderConfigError(t *testing.T) {
	cases := []struct {
		name string
		id   string
		conf *OIDCProviderConfigToUpdate
	}{
		{
			name: "InvalidID",
			id:   "invalid",
			conf: (&OIDCProviderConfigToUpdate{}).ClientID("CLIENT_ID"),
		},
		{
			name: "NilConfig",
			id:   "oidc.provider",
			conf: nil,
		},
		{
			name: "Empty",
			id:   "oidc.provider",
			conf: &OIDCProviderConfigToUpdate{},
		},
		{
			name: "EmptyClientID",
			id:   "oidc.provider",
			conf: (&OIDCProviderConfigToUpdate{}).ClientID(""),
		},
		{
			name: "EmptyIssuer",
			id:   "oidc.provider",
			conf: (&OIDCProviderConfigToUpdate{}).Issuer(""),
		},
		{
			name: "MalformedIssuer",
			id:   "oidc.provider",
			conf: (&OIDCProviderConfigToUpdate{}).Issuer("not a url"),
		},
	}

	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Client.UpdateOIDCProviderConfig(context.Background(), tc.id, tc.conf); err == nil {
				t.Errorf("UpdateOIDCProviderConfig() = nil; want error")
			}
		})
	}
	if len(s.Req) != 0 {
		t.Errorf("UpdateOIDCProviderConfig() requests = %d; want = 0", len(s.Req))
	}
}

func TestDeleteOIDCProviderConfig(t *testing.T) {
	s := echoServer([]byte("{}"), t)
	defer s.Close()

	if err := s.Client.DeleteOIDCProviderConfig(context.Background(), "oidc.provider"); err != nil {
		t.Fatal(err)
	}

	req := s.Req[0]
	if req.Method != "DELETE" {
		t.Errorf("DeleteOIDCProviderConfig() Method = %q; want = %q", req.Method, "DELETE")
	}
	wantPath := "/v2/projects/mock-project-id/oauthIdpConfigs/oidc.provider"
	if req.URL.Path != wantPath {
		t.Errorf("DeleteOIDCProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
}

func TestOIDCProviderConfigs(t *testing.T) {
	listResponse := map[string]interface{}{
		"oauthIdpConfigs": []interface{}{
			json.RawMessage(oidcConfigResponse),
			json.RawMessage(oidcConfigResponse),
		},
	}
	s := echoServer(listResponse, t)
	defer s.Close()

	it := s.Client.OIDCProviderConfigs(context.Background(), "")
	var configs []*OIDCProviderConfig
	for {
		config, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		configs = append(configs, config)
	}
	if len(configs) != 2 {
		t.Fatalf("OIDCProviderConfigs() = %d configs; want = 2", len(configs))
	}
	for _, config := range configs {
		if !cmp.Equal(config, oidcProviderConfig) {
			t.Errorf("OIDCProviderConfigs() = %#v; want = %#v", config, oidcProviderConfig)
		}
	}

	req := s.Req[0]
	wantPath := "/v2/projects/mock-project-id/oauthIdpConfigs"
	if req.URL.Path != wantPath {
		t.Errorf("OIDCProviderConfigs() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	if got := req.URL.Query().Get("pageSize"); got != "100" {
		t.Errorf("OIDCProviderConfigs() pageSize = %q; want = %q", got, "100")
	}
}

func TestOIDCProviderConfigsInvalidPageSize(t *testing.T) {
	s := echoServer([]byte("{}"), t)
	defer s.Close()

	it := s.Client.OIDCProviderConfigs(context.Background(), "")
	pager := iterator.NewPager(it, 101, "")
	var configs []*OIDCProviderConfig
	if _, err := pager.NextPage(&configs); err == nil {
		t.Errorf("NextPage() = nil; want error")
	}
	if len(s.Req) != 0 {
		t.Errorf("OIDCProviderConfigs() requests = %d; want = 0", len(s.Req))
	}
}

func TestSAMLProviderConfig(t *testing.T) {
	s := echoServer([]byte(samlConfigResponse), t)
	defer s.Close()

	config, err := s.Client.SAMLProviderConfig(context.Background(), "saml.provider")
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, samlProviderConfig) {
		t.Errorf("SAMLProviderConfig() = %#v; want = %#v", config, samlProviderConfig)
	}

	req := s.Req[0]
	if req.Method != "GET" {
		t.Errorf("SAMLProviderConfig() Method = %q; want = %q", req.Method, "GET")
	}
	wantPath := "/v2/projects/mock-project-id/inboundSamlConfigs/saml.provider"
	if req.URL.Path != wantPath {
		t.Errorf("SAMLProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
}

func TestSAMLProviderConfigNotFound(t *testing.T) {
	s := echoServer([]byte(`{"error": {"message": "CONFIGURATION_NOT_FOUND"}}`), t)
	defer s.Close()
	s.Status = 404

	config, err := s.Client.SAMLProviderConfig(context.Background(), "saml.provider")
	if config != nil || !IsConfigurationNotFound(err) {
		t.Errorf("SAMLProviderConfig() = (%v, %v); want = (nil, ConfigurationNotFound)", config, err)
	}
}

func TestCreateSAMLProviderConfig(t *testing.T) {
	s := echoServer([]byte(samlConfigResponse), t)
	defer s.Close()

	options := (&SAMLProviderConfigToCreate{}).
		ID("saml.provider").
		IDPEntityID("IDP_ENTITY_ID").
		SSOURL("https://example.com/login").
		RequestSigningEnabled(true).
		X509Certificates([]string{"CERT1", "CERT2"}).
		RPEntityID("RP_ENTITY_ID").
		CallbackURL("https://projectId.firebaseapp.com/__/auth/handler").
		DisplayName("SAML provider").
		Enabled(true)
	config, err := s.Client.CreateSAMLProviderConfig(context.Background(), options)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, samlProviderConfig) {
		t.Errorf("CreateSAMLProviderConfig() = %#v; want = %#v", config, samlProviderConfig)
	}

	wantBody := map[string]interface{}{
		"idpConfig": map[string]interface{}{
			"idpEntityId": "IDP_ENTITY_ID",
			"ssoUrl":      "https://example.com/login",
			"signRequest": true,
			"idpCertificates": []interface{}{
				map[string]interface{}{"x509Certificate": "CERT1"},
				map[string]interface{}{"x509Certificate": "CERT2"},
			},
		},
		"spConfig": map[string]interface{}{
			"spEntityId":  "RP_ENTITY_ID",
			"callbackUri": "https://projectId.firebaseapp.com/__/auth/handler",
		},
		"displayName": "SAML provider",
		"enabled":     true,
	}
	var got map[string]interface{}
	if err := json.Unmarshal(s.Rbody, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantBody, got); diff != "" {
		t.Errorf("CreateSAMLProviderConfig() request mismatch (-want +got):\n%s", diff)
	}

	req := s.Req[0]
	if req.Method != "POST" {
		t.Errorf("CreateSAMLProviderConfig() Method = %q; want = %q", req.Method, "POST")
	}
	wantPath := "/v2/projects/mock-project-id/inboundSamlConfigs"
	if req.URL.Path != wantPath {
		t.Errorf("CreateSAMLProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	if got := req.URL.Query().Get("inboundSamlConfigId"); got != "saml.provider" {
		t.Errorf("CreateSAMLProviderConfig() inboundSamlConfigId = %q; want = %q", got, "saml.provider")
	}
}

func TestCreateSAMLProviderConfigError(t *testing.T) {
	base := func() *SAMLProviderConfigToCreate {
		return (&SAMLProviderConfigToCreate{}).
			ID("saml.provider").
			IDPEntityID("IDP_ENTITY_ID").
			SSOURL("https://example.com/login").
			X509Certificates([]string{"CERT1"}).
			RPEntityID("RP_ENTITY_ID").
			CallbackURL("https://projectId.firebaseapp.com/__/auth/handler")
	}
	cases := []struct {
		name string
		conf *SAMLProviderConfigToCreate
	}{
		{
			name: "NilConfig",
			conf: nil,
		},
		{
			name: "NoParams",
			conf: (&SAMLProviderConfigToCreate{}).ID("saml.provider"),
		},
		{
			name: "InvalidID",
			conf: base().ID("oidc.provider"),
		},
		{
			name: "NoIDPEntityID",
			conf: base().IDPEntityID(""),
		},
		{
			name: "MalformedSSOURL",
			conf: base().SSOURL("not a url"),
		},
		{
			name: "NoCertificates",
			conf: base().X509Certificates(nil),
		},
		{
			name: "EmptyCertificate",
			conf: base().X509Certificates([]string{"CERT1", ""}),
		},
		{
			name: "NoRPEntityID",
			conf: base().RPEntityID(""),
		},
		{
			name: "MalformedCallbackURL",
			conf: base().CallbackURL("not a url"),
		},
	}

	s := echoServer([]byte(samlConfigResponse), t)
	defer s.Close()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Client.CreateSAMLProviderConfig(context.Background(), tc.conf); err == nil {
				t.Errorf("CreateSAMLProviderConfig() = nil; want error")
			}
		})
	}
	if len(s.Req) != 0 {
		t.Errorf("CreateSAMLProviderConfig() requests = %d; want = 0", len(s.Req))
	}
}

func TestUpdateSAMLProviderConfig(t *testing.T) {
	s := echoServer([]byte(samlConfigResponse), t)
	defer s.Close()

	options := (&SAMLProviderConfigToUpdate{}).
		IDPEntityID("IDP_ENTITY_ID").
		SSOURL("https://example.com/login").
		X509Certificates([]string{"CERT1"}).
		DisplayName("SAML provider")
	config, err := s.Client.UpdateSAMLProviderConfig(context.Background(), "saml.provider", options)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(config, samlProviderConfig) {
		t.Errorf("UpdateSAMLProviderConfig() = %#v; want = %#v", config, samlProviderConfig)
	}

	req := s.Req[0]
	if req.Method != "PATCH" {
		t.Errorf("UpdateSAMLProviderConfig() Method = %q; want = %q", req.Method, "PATCH")
	}
	wantPath := "/v2/projects/mock-project-id/inboundSamlConfigs/saml.provider"
	if req.URL.Path != wantPath {
		t.Errorf("UpdateSAMLProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	wantMask := "displayName,idpConfig.idpCertificates,idpConfig.idpEntityId,idpConfig.ssoUrl"
	if got := req.URL.Query().Get("updateMask"); got != wantMask {
		t.Errorf("UpdateSAMLProviderConfig() updateMask = %q; want = %q", got, wantMask)
	}
}

func TestUpdateSAMLProviderConfigError(t *testing.T) {
	cases := []struct {
		name string
		id   string
		conf *SAMLProviderConfigToUpdate
	}{
		{
			name: "InvalidID",
			id:   "invalid",
			conf: (&SAMLProviderConfigToUpdate{}).IDPEntityID("IDP_ENTITY_ID"),
		},
		{
			name: "NilConfig",
			id:   "saml.provider",
			conf: nil,
		},
		{
			name: "Empty",
			id:   "saml.provider",
			conf: &SAMLProviderConfigToUpdate{},
		},
		{
			name: "EmptyIDPEntityID",
			id:   "saml.provider",
			conf: (&SAMLProviderConfigToUpdate{}).IDPEntityID(""),
		},
		{
			name: "MalformedSSOURL",
			id:   "saml.provider",
			conf: (&SAMLProviderConfigToUpdate{}).SSOURL("not a url"),
		},
		{
			name: "EmptyCertificates",
			id:   "saml.provider",
			conf: (&SAMLProviderConfigToUpdate{}).X509Certificates(nil),
		},
		{
			name: "EmptyRPEntityID",
			id:   "saml.provider",
			conf: (&SAMLProviderConfigToUpdate{}).RPEntityID(""),
		},
		{
			name: "MalformedCallbackURL",
			id:   "saml.provider",
			conf: (&SAMLProviderConfigToUpdate{}).CallbackURL("not a url"),
		},
	}

	s := echoServer([]byte(samlConfigResponse), t)
	defer s.Close()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Client.UpdateSAMLProviderConfig(context.Background(), tc.id, tc.conf); err == nil {
				t.Errorf("UpdateSAMLProviderConfig() = nil; want error")
			}
		})
	}
	if len(s.Req) != 0 {
		t.Errorf("UpdateSAMLProviderConfig() requests = %d; want = 0", len(s.Req))
	}
}

func TestDeleteSAMLProviderConfig(t *testing.T) {
	s := echoServer([]byte("{}"), t)
	defer s.Close()

	if err := s.Client.DeleteSAMLProviderConfig(context.Background(), "saml.provider"); err != nil {
		t.Fatal(err)
	}

	req := s.Req[0]
	if req.Method != "DELETE" {
		t.Errorf("DeleteSAMLProviderConfig() Method = %q; want = %q", req.Method, "DELETE")
	}
	wantPath := "/v2/projects/mock-project-id/inboundSamlConfigs/saml.provider"
	if req.URL.Path != wantPath {
		t.Errorf("DeleteSAMLProviderConfig() URL = %q; want = %q", req.URL.Path, wantPath)
	}
}

func TestSAMLProviderConfigs(t *testing.T) {
	listResponse := map[string]interface{}{
		"inboundSamlConfigs": []interface{}{
			json.RawMessage(samlConfigResponse),
			json.RawMessage(samlConfigResponse),
			json.RawMessage(samlConfigResponse),
		},
	}
	s := echoServer(listResponse, t)
	defer s.Close()

	it := s.Client.SAMLProviderConfigs(context.Background(), "token")
	var count int
	for {
		config, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(config, samlProviderConfig) {
			t.Errorf("SAMLProviderConfigs() = %#v; want = %#v", config, samlProviderConfig)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("SAMLProviderConfigs() = %d configs; want = 3", count)
	}

	req := s.Req[0]
	wantPath := "/v2/projects/mock-project-id/inboundSamlConfigs"
	if req.URL.Path != wantPath {
		t.Errorf("SAMLProviderConfigs() URL = %q; want = %q", req.URL.Path, wantPath)
	}
	if got := req.URL.Query().Get("pageToken"); got != "token" {
		t.Errorf("SAMLProviderConfigs() pageToken = %q; want = %q", got, "token")
	}
}

func TestProviderConfigTenantScoped(t *testing.T) {
	s := echoServer([]byte(oidcConfigResponse), t)
	defer s.Close()

	tenantClient, err := s.Client.TenantManager.AuthForTenant("tenantID1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tenantClient.OIDCProviderConfig(context.Background(), "oidc.provider"); err != nil {
		t.Fatal(err)
	}

	wantPath := "/v2/projects/mock-project-id/tenants/tenantID1/oauthIdpConfigs/oidc.provider"
	if got := s.Req[0].URL.Path; got != wantPath {
		t.Errorf("OIDCProviderConfig() URL = %q; want = %q", got, wantPath)
	}
}

func TestNestedMap(t *testing.T) {
	nm := make(nestedMap)
	nm.Set("displayName", "Test")
	nm.Set("idpConfig.ssoUrl", "https://example.com/login")
	nm.Set("idpConfig.idpEntityId", "ENTITY_ID")

	if val, ok := nm.GetString("idpConfig.ssoUrl"); !ok || val != "https://example.com/login" {
		t.Errorf("GetString(idpConfig.ssoUrl) = (%q, %v); want = (%q, true)", val, ok, "https://example.com/login")
	}
	if _, ok := nm.Get("idpConfig.missing"); ok {
		t.Errorf("Get(idpConfig.missing) = true; want = false")
	}

	wantMask := []string{"displayName", "idpConfig.idpEntityId", "idpConfig.ssoUrl"}
	got := nm.UpdateMask()
	if !cmp.Equal(got, wantMask) {
		t.Errorf("UpdateMask() = %v; want = %v", got, wantMask)
	}
}

func TestExtractResourceID(t *testing.T) {
	cases := map[string]string{
		"projects/mock-project-id/oauthIdpConfigs/oidc.provider": "oidc.provider",
		"projects/mock-project-id/tenants/tenantID1":             "tenantID1",
		"simple-id": "simple-id",
	}
	for name, want := range cases {
		if got := extractResourceID(name); got != want {
			t.Errorf("extractResourceID(%q) = %q; want = %q", name, got, want)
		}
	}
}
