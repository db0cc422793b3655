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

// Package firekit is the entry point to the Firekit Admin SDK. It provides
// functionality for initializing and managing App instances, which serve as
// the central entities that provide access to the identity services exposed
// from the SDK.
package firekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/firekit/firekit-admin-go/appcheck"
	"github.com/firekit/firekit-admin-go/auth"
	"github.com/firekit/firekit-admin-go/internal"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/transport"
)

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Version of the Firekit Admin SDK.
const Version = "1.0.0"

// DefaultAppName is the name under which NewApp registers an App when no
// explicit name is given.
const DefaultAppName = "[DEFAULT]"

// firebaseEnvName is the name of the environment variable with the Config.
const firebaseEnvName = "FIREBASE_CONFIG"

// An App holds configuration and state common to all services exposed from
// the SDK.
//
// Apps are registered in a process-wide registry keyed by name. An App is
// immutable once created, and deleted at most once; after deletion every
// service lookup fails.
type App struct {
	name             string
	creds            *google.Credentials
	projectID        string
	serviceAccountID string
	opts             []option.ClientOption

	mu       sync.Mutex
	deleted  bool
	auth     *auth.Client
	appCheck *appcheck.Client
}

var (
	appsMutex sync.Mutex
	apps      = make(map[string]*App)
)

// Config represents the configuration used to initialize an App.
type Config struct {
	ProjectID        string `json:"projectId"`
	ServiceAccountID string `json:"serviceAccountId"`
}

// NewApp creates a new App from the provided config and client options, and
// registers it under the default name.
//
// If the client options contain a valid credential (a service account file, a
// refresh token file or an oauth2.TokenSource) the App will be authenticated
// using that credential. Otherwise, NewApp attempts to authenticate the App
// with Google application default credentials. If config is nil, the SDK
// reads the FIREBASE_CONFIG environment variable, which may contain either a
// JSON object or a path to a JSON file.
func NewApp(ctx context.Context, config *Config, opts ...option.ClientOption) (*App, error) {
	return NewNamedApp(ctx, DefaultAppName, config, opts...)
}

// NewNamedApp creates a new App like NewApp, and registers it under the given
// name. An error is returned if an App with the same name already exists.
func NewNamedApp(ctx context.Context, name string, config *Config, opts ...option.ClientOption) (*App, error) {
	if name == "" {
		return nil, errors.New("app name must not be empty")
	}

	o := []option.ClientOption{option.WithScopes(firebaseScopes...)}
	o = append(o, opts...)

	if config == nil {
		var err error
		if config, err = getConfigDefaults(); err != nil {
			return nil, err
		}
	}

	creds, err := transport.Creds(ctx, o...)
	if err != nil {
		// The Auth emulator does not require a credential.
		if os.Getenv("FIREBASE_AUTH_EMULATOR_HOST") == "" {
			return nil, err
		}
		creds = nil
	}

	app := &App{
		name:             name,
		creds:            creds,
		projectID:        resolveProjectID(config, creds),
		serviceAccountID: config.ServiceAccountID,
		opts:             o,
	}

	appsMutex.Lock()
	defer appsMutex.Unlock()
	if _, exists := apps[name]; exists {
		if name == DefaultAppName {
			return nil, errors.New("the default app already exists; to initialize multiple apps " +
				"specify a unique name for each app instance via NewNamedApp")
		}
		return nil, fmt.Errorf("app named %q already exists; make sure to provide a unique name "+
			"each time you call NewNamedApp", name)
	}
	apps[name] = app
	return app, nil
}

// AppByName returns the registered App with the given name, or false when no
// App has been registered under that name.
func AppByName(name string) (*App, bool) {
	appsMutex.Lock()
	defer appsMutex.Unlock()
	app, ok := apps[name]
	return app, ok
}

// DefaultApp returns the App registered under the default name, or false when
// NewApp has not been called.
func DefaultApp() (*App, bool) {
	return AppByName(DefaultAppName)
}

// Name returns the name under which this App is registered.
func (a *App) Name() string {
	return a.name
}

// ProjectID returns the Google Cloud project ID associated with this App, or
// an empty string when none could be determined.
func (a *App) ProjectID() string {
	return a.projectID
}

// Delete removes the App from the registry and renders it unusable.
//
// Services previously obtained from this App are closed; all subsequent
// service lookups and service operations report an error. Deleting an already
// deleted App is an error.
func (a *App) Delete() error {
	appsMutex.Lock()
	if registered, ok := apps[a.name]; ok && registered == a {
		delete(apps, a.name)
	}
	appsMutex.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return fmt.Errorf("app %q has already been deleted", a.name)
	}
	a.deleted = true
	if a.auth != nil {
		if err := a.auth.Close(); err != nil {
			return err
		}
		a.auth = nil
	}
	a.appCheck = nil
	return nil
}

// Auth returns an instance of auth.Client.
//
// The client is constructed on first use and memoized; repeated calls return
// the same instance.
func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return nil, fmt.Errorf("app %q has already been deleted", a.name)
	}
	if a.auth == nil {
		conf := &internal.AuthConfig{
			Creds:            a.creds,
			ProjectID:        a.projectID,
			ServiceAccountID: a.serviceAccountID,
			Opts:             a.opts,
			Version:          Version,
		}
		client, err := auth.NewClient(ctx, conf)
		if err != nil {
			return nil, err
		}
		a.auth = client
	}
	return a.auth, nil
}

// AppCheck returns an instance of appcheck.Client.
//
// The client is constructed on first use and memoized; repeated calls return
// the same instance.
func (a *App) AppCheck(ctx context.Context) (*appcheck.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return nil, fmt.Errorf("app %q has already been deleted", a.name)
	}
	if a.appCheck == nil {
		conf := &internal.AppCheckConfig{
			ProjectID: a.projectID,
		}
		client, err := appcheck.NewClient(ctx, conf)
		if err != nil {
			return nil, err
		}
		a.appCheck = client
	}
	return a.appCheck, nil
}

// getConfigDefaults reads the default config file, defined by the
// FIREBASE_CONFIG environment variable, used only when options are nil.
func getConfigDefaults() (*Config, error) {
	fbc := &Config{}
	confFileName := os.Getenv(firebaseEnvName)
	if confFileName == "" {
		return fbc, nil
	}
	var dat []byte
	if confFileName[0] == byte('{') {
		dat = []byte(confFileName)
	} else {
		var err error
		if dat, err = os.ReadFile(confFileName); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(dat, fbc); err != nil {
		return nil, err
	}
	return fbc, nil
}

// resolveProjectID determines the project ID for an App. An explicitly
// configured ID wins, followed by the credential's project, followed by the
// well-known environment variables.
func resolveProjectID(config *Config, creds *google.Credentials) string {
	if config.ProjectID != "" {
		return config.ProjectID
	}
	if creds != nil && creds.ProjectID != "" {
		return creds.ProjectID
	}
	if pid := os.Getenv("GOOGLE_CLOUD_PROJECT"); pid != "" {
		return pid
	}
	return strings.TrimSpace(os.Getenv("GCLOUD_PROJECT"))
}
