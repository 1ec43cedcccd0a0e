// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package env provides an abstraction over environment variable access so
// callers can inject a fake environment in tests instead of mutating the
// process environment.
package env

import "os"

// Reader reads environment variables.
type Reader interface {
	// Getenv returns the value of the named environment variable.
	// It returns the empty string when the variable is unset.
	Getenv(key string) string

	// LookupEnv returns the value of the named environment variable and
	// whether it is set at all, distinguishing unset from empty.
	LookupEnv(key string) (string, bool)
}

// OSReader reads from the real process environment.
type OSReader struct{}

// Getenv returns the value of the named environment variable.
func (*OSReader) Getenv(key string) string {
	return os.Getenv(key)
}

// LookupEnv reports the value and presence of the named environment variable.
func (*OSReader) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapReader is a Reader backed by a fixed map, for use in tests.
type MapReader map[string]string

// Getenv returns the mapped value for key, or the empty string.
func (m MapReader) Getenv(key string) string {
	return m[key]
}

// LookupEnv reports the mapped value and whether key is present.
func (m MapReader) LookupEnv(key string) (string, bool) {
	value, ok := m[key]
	return value, ok
}
