// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
)

// FailureKind classifies a transport-level failure from an outbound request.
type FailureKind int

const (
	// KindGeneric is the fallback for unclassified transport failures.
	KindGeneric FailureKind = iota
	// KindTimeout means the request was aborted by its deadline.
	KindTimeout
	// KindDNS means name resolution failed.
	KindDNS
	// KindOffline means the network was unreachable.
	KindOffline
	// KindProxy means the configured HTTP proxy could not be reached.
	KindProxy
	// KindTLS means certificate or TLS negotiation failed.
	KindTLS
)

// ClassifyTransportError maps a transport-level error from an HTTP round trip
// into a FailureKind. Typed matches are tried first; the error text is the
// fallback because Go's transport wraps many failures in plain strings.
func ClassifyTransportError(err error) FailureKind {
	if err == nil {
		return KindGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return KindTLS
	}

	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETDOWN) {
		return KindOffline
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "proxyconnect"):
		return KindProxy
	case strings.Contains(text, "no such host"):
		return KindDNS
	case strings.Contains(text, "network is unreachable"),
		strings.Contains(text, "no route to host"),
		strings.Contains(text, "network is down"):
		return KindOffline
	case strings.Contains(text, "tls:"),
		strings.Contains(text, "x509:"),
		strings.Contains(text, "certificate"):
		return KindTLS
	case strings.Contains(text, "timeout"),
		strings.Contains(text, "deadline exceeded"):
		return KindTimeout
	default:
		return KindGeneric
	}
}
