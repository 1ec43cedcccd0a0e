// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"io"
)

// DefaultMaxResponseSize is the default maximum response body size (1MB).
const DefaultMaxResponseSize = 1_000_000

// ErrBodyTooLarge is returned by ReadCapped when the body exceeds the cap.
var ErrBodyTooLarge = errors.New("response body exceeds allowed size")

// ReadCapped reads the whole body, failing with ErrBodyTooLarge once more
// than maxBytes have been received. It reads one byte past the cap so that a
// body of exactly maxBytes is accepted.
func ReadCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
