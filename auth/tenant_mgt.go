// Copyright 2020 Google Inc. All Rights Reserved.
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
	"fmt"
	"strings"
	"sync"

	"github.com/firekit/firekit-admin-go/internal"
	"google.golang.org/api/iterator"
)

const maxTenants = 1000

// IsTenantNotFound checks if the given error was due to a non-existing
// tenant.
func IsTenantNotFound(err error) bool {
	return hasAuthErrorCode(err, tenantNotFound)
}

// Tenant represents a tenant in a multi-tenant application.
//
// Multi-tenancy support requires Google Cloud Identity Platform (GCIP). To
// learn more about GCIP, including pricing and features, see
// https://cloud.google.com/identity-platform.
type Tenant struct {
	ID                    string `json:"name"`
	DisplayName           string `json:"displayName"`
	AllowPasswordSignUp   bool   `json:"allowPasswordSignup"`
	EnableEmailLinkSignIn bool   `json:"enableEmailLinkSignin"`
}

// TenantClient is used for managing users, configuring SAML/OIDC providers,
// and generating email links for specific tenants.
//
// Before multi-tenancy can be used in a Google Cloud Identity Platform
// project, tenants must be enabled in that project via the Cloud Console UI.
// A TenantClient instance can be obtained by calling the AuthForTenant
// function on a TenantManager.
type TenantClient struct {
	*baseClient
}

// TenantID returns the ID of the tenant to which this TenantClient is
// bound.
func (tc *TenantClient) TenantID() string {
	return tc.tenantID
}

// TenantManager is the interface used to manage tenants in a multi-tenant
// application.
//
// This supports creating, updating, listing, deleting the tenants of a
// Firebase project. It also supports creating new TenantClient instances
// scoped to specific tenant IDs.
type TenantManager struct {
	base *baseClient

	mu      sync.Mutex
	closed  bool
	clients map[string]*TenantClient
}

func newTenantManager(base *baseClient) *TenantManager {
	return &TenantManager{
		base:    base,
		clients: make(map[string]*TenantClient),
	}
}

// AuthForTenant creates a new TenantClient scoped to a given tenant ID.
//
// Clients are memoized per tenant ID; repeated calls with the same ID return
// the same instance.
func (tm *TenantManager) AuthForTenant(tenantID string) (*TenantClient, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID must not be empty")
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.closed {
		return nil, clientClosedError()
	}
	if client, ok := tm.clients[tenantID]; ok {
		return client, nil
	}

	base := tm.base
	client := &TenantClient{
		baseClient: &baseClient{
			userManagementEndpoint: base.userManagementEndpoint,
			providerConfigEndpoint: base.providerConfigEndpoint,
			tenantMgtEndpoint:      base.tenantMgtEndpoint,
			projectID:              base.projectID,
			tenantID:               tenantID,
			version:                base.version,
			httpClient:             base.httpClient,
			isEmulator:             base.isEmulator,
			clock:                  base.clock,
			newSigner:              base.newSigner,
			newIDTokenVerifier:     base.newIDTokenVerifier,
			newCookieVerifier:      base.newCookieVerifier,
		},
	}
	tm.clients[tenantID] = client
	return client, nil
}

// close closes the tenant clients that were actually constructed, and stops
// handing out new ones.
func (tm *TenantManager) close() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.closed = true
	for _, client := range tm.clients {
		client.baseClient.close()
	}
}

// Tenant returns the tenant with the given ID.
func (tm *TenantManager) Tenant(ctx context.Context, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID must not be empty")
	}
	var tenant Tenant
	url := tm.base.tenantMgtURL(fmt.Sprintf("/tenants/%s", tenantID))
	if _, err := tm.base.get(ctx, url, nil, &tenant); err != nil {
		return nil, err
	}
	tenant.ID = extractResourceID(tenant.ID)
	return &tenant, nil
}

// TenantToCreate represents the options used to create a new tenant.
type TenantToCreate struct {
	params nestedMap
}

func (t *TenantToCreate) set(key string, value interface{}) *TenantToCreate {
	if t.params == nil {
		t.params = make(nestedMap)
	}
	t.params.Set(key, value)
	return t
}

// DisplayName sets the display name of the new tenant.
func (t *TenantToCreate) DisplayName(name string) *TenantToCreate {
	return t.set("displayName", name)
}

// AllowPasswordSignUp enables or disables email sign-in provider.
func (t *TenantToCreate) AllowPasswordSignUp(allow bool) *TenantToCreate {
	return t.set("allowPasswordSignup", allow)
}

// EnableEmailLinkSignIn enables or disables email link sign-in.
//
// Disabling this makes the password required for email sign-in.
func (t *TenantToCreate) EnableEmailLinkSignIn(enable bool) *TenantToCreate {
	return t.set("enableEmailLinkSignin", enable)
}

// CreateTenant creates a new tenant with the given options.
func (tm *TenantManager) CreateTenant(ctx context.Context, tenant *TenantToCreate) (*Tenant, error) {
	if tenant == nil {
		return nil, fmt.Errorf("tenant must not be nil")
	}
	body := tenant.params
	if body == nil {
		body = make(nestedMap)
	}

	var result Tenant
	if _, err := tm.base.post(ctx, tm.base.tenantMgtURL("/tenants"), body, &result); err != nil {
		return nil, err
	}
	result.ID = extractResourceID(result.ID)
	return &result, nil
}

// TenantToUpdate represents the options used to update an existing tenant.
type TenantToUpdate struct {
	params nestedMap
}

func (t *TenantToUpdate) set(key string, value interface{}) *TenantToUpdate {
	if t.params == nil {
		t.params = make(nestedMap)
	}
	t.params.Set(key, value)
	return t
}

// DisplayName updates the display name of the tenant.
func (t *TenantToUpdate) DisplayName(name string) *TenantToUpdate {
	return t.set("displayName", name)
}

// AllowPasswordSignUp enables or disables email sign-in provider.
func (t *TenantToUpdate) AllowPasswordSignUp(allow bool) *TenantToUpdate {
	return t.set("allowPasswordSignup", allow)
}

// EnableEmailLinkSignIn enables or disables email link sign-in.
//
// Disabling this makes the password required for email sign-in.
func (t *TenantToUpdate) EnableEmailLinkSignIn(enable bool) *TenantToUpdate {
	return t.set("enableEmailLinkSignin", enable)
}

// UpdateTenant updates an existing tenant with the given options.
func (tm *TenantManager) UpdateTenant(ctx context.Context, tenantID string, tenant *TenantToUpdate) (*Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID must not be empty")
	}
	if tenant == nil || len(tenant.params) == 0 {
		return nil, fmt.Errorf("no parameters specified in the update request")
	}

	mask := tenant.params.UpdateMask()
	url := fmt.Sprintf("%s?updateMask=%s",
		tm.base.tenantMgtURL(fmt.Sprintf("/tenants/%s", tenantID)), strings.Join(mask, ","))
	var result Tenant
	if _, err := tm.base.patch(ctx, url, tenant.params, &result); err != nil {
		return nil, err
	}
	result.ID = extractResourceID(result.ID)
	return &result, nil
}

// DeleteTenant deletes the tenant with the given ID.
func (tm *TenantManager) DeleteTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID must not be empty")
	}
	url := tm.base.tenantMgtURL(fmt.Sprintf("/tenants/%s", tenantID))
	_, err := tm.base.delete(ctx, url, nil)
	return err
}

// Tenants returns an iterator over tenants in the project.
//
// If nextPageToken is empty, the iterator will begin with the first page of
// tenants.
func (tm *TenantManager) Tenants(ctx context.Context, nextPageToken string) *TenantIterator {
	it := &TenantIterator{
		ctx:     ctx,
		manager: tm,
	}
	it.pageInfo, it.nextFunc = iterator.NewPageInfo(
		it.fetch,
		func() int { return len(it.tenants) },
		func() interface{} { b := it.tenants; it.tenants = nil; return b })
	it.pageInfo.MaxSize = maxTenants
	it.pageInfo.Token = nextPageToken
	return it
}

// TenantIterator is an iterator over tenants.
type TenantIterator struct {
	manager  *TenantManager
	ctx      context.Context
	nextFunc func() error
	pageInfo *iterator.PageInfo
	tenants  []*Tenant
}

// PageInfo supports pagination.
func (it *TenantIterator) PageInfo() *iterator.PageInfo {
	return it.pageInfo
}

// Next returns the next result. Its second return value is [iterator.Done] if
// there are no more results. Once Next returns [iterator.Done], all subsequent
// calls will return [iterator.Done].
func (it *TenantIterator) Next() (*Tenant, error) {
	if err := it.nextFunc(); err != nil {
		return nil, err
	}
	tenant := it.tenants[0]
	it.tenants = it.tenants[1:]
	return tenant, nil
}

func (it *TenantIterator) fetch(pageSize int, pageToken string) (string, error) {
	if pageSize < 1 || pageSize > maxTenants {
		return "", fmt.Errorf("page size must be between 1 and %d", maxTenants)
	}

	query := map[string]string{
		"pageSize": fmt.Sprint(pageSize),
	}
	if pageToken != "" {
		query["pageToken"] = pageToken
	}

	var result struct {
		Tenants       []Tenant `json:"tenants"`
		NextPageToken string   `json:"nextPageToken"`
	}
	req := &internal.Request{
		Method: "GET",
		URL:    it.manager.base.tenantMgtURL("/tenants"),
		Opts:   []internal.HTTPOption{internal.WithQueryParams(query)},
	}
	if _, err := it.manager.base.makeRequest(it.ctx, req, &result); err != nil {
		return "", err
	}

	for i := range result.Tenants {
		tenant := result.Tenants[i]
		tenant.ID = extractResourceID(tenant.ID)
		it.tenants = append(it.tenants, &tenant)
	}
	it.pageInfo.Token = result.NextPageToken
	return result.NextPageToken, nil
}
