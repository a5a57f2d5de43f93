// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// indexSuffix names the entry holding a service's JSON key index. go-keyring
// cannot enumerate keys, so List reads the index instead.
const indexSuffix = "::index"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct {
	// mu serializes index read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkName(op, service, key string) error {
	if service == "" {
		return udberr.Errorf(udberr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return udberr.Errorf(udberr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	if key == service+indexSuffix {
		return udberr.Errorf(udberr.CodeSecretInvalidInput, "secret %s: key %q is reserved", op, key)
	}
	return nil
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkName("set", service, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(service, key, value); err != nil {
		return udberr.Wrapf(err, udberr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	keys = append(keys, key)
	slices.Sort(keys)
	return s.saveIndex(service, keys)
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkName("get", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", udberr.Errorf(udberr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", udberr.Wrapf(err, udberr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkName("delete", service, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return udberr.Errorf(udberr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return udberr.Wrapf(err, udberr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, udberr.New(udberr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, udberr.Wrapf(err, udberr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, udberr.Wrapf(err, udberr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + indexSuffix

	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return udberr.Wrapf(err, udberr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return udberr.Wrapf(err, udberr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}
