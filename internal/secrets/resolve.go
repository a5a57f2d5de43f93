// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const scheme = "keyring://"

// SecretKeys are the configuration keys that may hold keyring references.
var SecretKeys = []string{"embedding.api_key", "storage.dsn"}

// Ref points at one keyring entry.
type Ref struct {
	Service string
	Key     string
}

// String formats the reference as keyring://service/key.
func (r Ref) String() string {
	return scheme + r.Service + "/" + r.Key
}

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, udberr.Errorf(udberr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, udberr.Errorf(udberr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolve returns the secret a keyring reference points at, or value
// unchanged when it is not a reference.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Get(ref.Service, ref.Key)
	if err != nil {
		return "", udberr.Wrapf(err, udberr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveViper replaces keyring references in the given keys of v with their
// secrets. Every key is attempted; failures are joined.
func ResolveViper(v *viper.Viper, store Store, keys ...string) error {
	var errs []error
	for _, key := range keys {
		val := v.GetString(key)
		if !IsRef(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, udberr.With(err, udberr.Field("config_key", key)))
			continue
		}
		v.Set(key, resolved)
	}
	return udberr.Join(errs...)
}
