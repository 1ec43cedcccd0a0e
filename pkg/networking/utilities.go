// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net"
	"strings"
)

// IsLocalhost checks whether a host (optionally with a port) refers to the
// local loopback interface.
func IsLocalhost(host string) bool {
	if host == "" {
		return false
	}

	// Strip the port when one is present.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
