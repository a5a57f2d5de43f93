// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"slices"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udbhav-health/udbhav/internal/config"
	"github.com/udbhav-health/udbhav/internal/secrets"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store keyed by service/key.
type mockSecretStore struct {
	data map[string]map[string]string
}

func (m *mockSecretStore) Set(service, key, value string) error {
	if m.data[service] == nil {
		m.data[service] = map[string]string{}
	}
	m.data[service][key] = value
	return nil
}

func (m *mockSecretStore) Get(service, key string) (string, error) {
	v, ok := m.data[service][key]
	if !ok {
		return "", udberr.Errorf(udberr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service][key]; !ok {
		return udberr.Errorf(udberr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.data[service], key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	keys := make([]string, 0, len(m.data[service]))
	for k := range m.data[service] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func useMockSecrets(t *testing.T) *mockSecretStore {
	t.Helper()
	m := &mockSecretStore{data: map[string]map[string]string{}}
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return m }
	t.Cleanup(func() { secretStoreFactory = old })
	return m
}

func TestSecretSetGetListDelete(t *testing.T) {
	m := useMockSecrets(t)
	cfg := writeTestConfig(t, "")

	out, err := runCLI(t, "", "secret", "set", "openai-api-key", "sk-123", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://udbhav/openai-api-key")
	assert.Equal(t, "sk-123", m.data[secrets.DefaultService]["openai-api-key"])

	out, err = runCLI(t, "", "secret", "get", "openai-api-key", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "sk-123\n", out)

	out, err = runCLI(t, "", "secret", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai-api-key\n", out)

	out, err = runCLI(t, "", "secret", "delete", "openai-api-key", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: openai-api-key")

	out, err = runCLI(t, "", "secret", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "No secrets stored.\n", out)
}

func TestSecretSet_FromStdin(t *testing.T) {
	m := useMockSecrets(t)

	_, err := runCLI(t, "AIza-from-stdin\n", "secret", "set", "google-api-key", "--config", writeTestConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "AIza-from-stdin", m.data[secrets.DefaultService]["google-api-key"])
}

func TestSecretSet_EmptyValue(t *testing.T) {
	useMockSecrets(t)

	_, err := runCLI(t, "", "secret", "set", "google-api-key", "--config", writeTestConfig(t, ""))
	require.Error(t, err)
	assert.True(t, udberr.IsInvalidInput(err))
}

func TestSecretNotFound(t *testing.T) {
	useMockSecrets(t)
	cfg := writeTestConfig(t, "")

	_, err := runCLI(t, "", "secret", "get", "absent", "--config", cfg)
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeSecretNotFound))

	_, err = runCLI(t, "", "secret", "delete", "absent", "--config", cfg)
	require.Error(t, err)
	assert.True(t, udberr.HasCode(err, udberr.CodeSecretNotFound))
}

func TestLoadConfig_ResolvesKeyringReferences(t *testing.T) {
	m := useMockSecrets(t)
	require.NoError(t, m.Set(secrets.DefaultService, "openai-api-key", "sk-resolved"))

	viper.Reset()
	t.Cleanup(viper.Reset)
	v := viper.GetViper()
	config.SetDefaults(v)
	v.SetConfigFile(writeTestConfig(t, ""))
	require.NoError(t, v.ReadInConfig())
	v.Set("embedding.api_key", "keyring://udbhav/openai-api-key")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-resolved", cfg.Embedding.APIKey)
}

func TestLoadConfig_UnresolvableReference(t *testing.T) {
	useMockSecrets(t)

	viper.Reset()
	t.Cleanup(viper.Reset)
	v := viper.GetViper()
	config.SetDefaults(v)
	v.SetConfigFile(writeTestConfig(t, ""))
	require.NoError(t, v.ReadInConfig())
	v.Set("embedding.api_key", "keyring://udbhav/missing")

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, udberr.IsNotFound(err))
}
