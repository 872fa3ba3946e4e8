package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment
// variables. It serves non-interactive runs (CI, cron) where nothing
// was stored through `typeporter auth login`.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The variables
// carry no site of their own, so they answer for whichever site is
// asked about.
func (e *EnvironmentStore) Retrieve(site string) (*Credentials, error) {
	username := os.Getenv("TYPEPORTER_SITE_USERNAME")
	password := os.Getenv("TYPEPORTER_SITE_PASSWORD")

	if username == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}

	if site == "" {
		site = "default"
	}

	return &Credentials{
		Site:         site,
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single entry if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(site string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(site string) bool {
	username := os.Getenv("TYPEPORTER_SITE_USERNAME")
	password := os.Getenv("TYPEPORTER_SITE_PASSWORD")
	return username != "" && password != ""
}
