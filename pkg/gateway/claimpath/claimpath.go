// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

// Package claimpath resolves dotted paths like "org.id" against decoded,
// untyped JWT claims.
package claimpath

import (
	"strconv"
	"strings"
)

// Resolve walks path segment by segment through nested JSON objects and
// returns the value at the leaf rendered as a string. The second return
// reports whether the full path existed and the leaf was a scalar; callers
// must treat false as "absent", never as an empty value.
func Resolve(claims map[string]any, path string) (string, bool) {
	if len(claims) == 0 || path == "" {
		return "", false
	}

	current := any(claims)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = node[segment]
		if !ok {
			return "", false
		}
	}

	switch value := current.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		return "", false
	}
}
