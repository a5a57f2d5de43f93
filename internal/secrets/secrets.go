// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

// Package secrets keeps provider credentials in the OS keyring and resolves
// keyring:// references found in configuration.
package secrets

// DefaultService is the keyring service the CLI stores credentials under.
const DefaultService = "udbhav"

// Store provides secure secret storage operations.
type Store interface {
	Set(service, key, value string) error
	// Get returns a CodeSecretNotFound error if the key does not exist.
	Get(service, key string) (string, error)
	// Delete returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error
	// List returns the key names stored under service, sorted.
	List(service string) ([]string, error)
}
