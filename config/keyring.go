package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name credentials are stored under in the OS keychain
const KeyringService = "jira-issue-digest"

// LookupCredential returns the credential stored for baseURL, or "" when none is stored.
// The value is either "user:token" or a bare token.
func LookupCredential(baseURL string) (string, error) {
	cred, err := keyring.Get(KeyringService, baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return cred, nil
}

// StoreCredential saves the credential for baseURL in the OS keychain
func StoreCredential(baseURL, user, token string) error {
	if baseURL == "" {
		return errors.New("jira_base_url is required to store a credential")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	cred := token
	if user != "" {
		cred = user + ":" + token
	}
	if err := keyring.Set(KeyringService, baseURL, cred); err != nil {
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	return nil
}

// DeleteCredential removes the stored credential for baseURL; a missing entry is not an error
func DeleteCredential(baseURL string) error {
	err := keyring.Delete(KeyringService, baseURL)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}
