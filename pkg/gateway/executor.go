// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	trusterr "github.com/desktopshell/trustcore/pkg/errors"
	"github.com/desktopshell/trustcore/pkg/gateway/claimpath"
	"github.com/desktopshell/trustcore/pkg/networking"
)

// callerHeaderPattern is the allow-list for caller-supplied header names.
// Anything outside the x-* namespace (Authorization, Host, Cookie, ...) is
// reserved for the gateway itself.
var callerHeaderPattern = regexp.MustCompile(`^[Xx]-[A-Za-z0-9-]+$`)

// attempt executes one HTTP attempt of an admitted invocation. Every failure
// is returned as a classified taxonomy error; retry eligibility is decided
// by the caller from the code alone.
func (g *Gateway) attempt(ctx context.Context, op Operation, req InvokeRequest) (*InvokeResponse, error) {
	templateURL, err := url.Parse(op.URLTemplate)
	if err != nil || !templateURL.IsAbs() {
		return nil, trusterr.New(ErrInsecureDestination,
			"API operation destination is not an absolute URL", false).
			WithDetails(map[string]any{"operationId": op.ID})
	}
	if templateURL.Scheme != "https" {
		return nil, trusterr.New(ErrInsecureDestination,
			"API operation destination must use HTTPS", false).
			WithDetails(map[string]any{"operationId": op.ID, "url": op.URLTemplate})
	}

	if err := validateCallerHeaders(req.Headers); err != nil {
		return nil, err
	}

	authHeader, err := g.resolveAuthHeader(op)
	if err != nil {
		return nil, err
	}

	resolvedURL, usedParams, err := g.resolveURL(op, req.Params)
	if err != nil {
		return nil, err
	}

	requestURL, err := url.Parse(resolvedURL)
	if err != nil {
		return nil, trusterr.Wrap(ErrInvalidParams,
			"resolved operation URL is invalid", false, err).
			WithDetails(map[string]any{"operationId": op.ID})
	}

	// Params not consumed by path placeholders pass through as query
	// parameters, GET only.
	if op.Method == http.MethodGet && len(req.Params) > 0 {
		query := requestURL.Query()
		for key, value := range req.Params {
			if !usedParams[key] {
				query.Set(key, paramString(value))
			}
		}
		requestURL.RawQuery = query.Encode()
	}

	attemptCtx, cancel := context.WithTimeout(ctx, op.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, op.Method, requestURL.String(), nil)
	if err != nil {
		return nil, trusterr.Wrap(ErrInvalidParams, "could not build the request", false, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportFailure(op, err)
	}
	defer resp.Body.Close()

	// Redirects are never followed. The client is built without redirect
	// following, so any 3xx arrives here as the final response.
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return nil, trusterr.New(ErrRedirectBlocked,
			"external API redirect was blocked", false).
			WithDetails(map[string]any{
				"operationId": op.ID,
				"status":      resp.StatusCode,
				"location":    resp.Header.Get("Location"),
			})
	}

	if resp.ContentLength > op.MaxResponseBytes {
		return nil, trusterr.New(ErrPayloadTooLarge,
			"external API response exceeded allowed size", false).
			WithDetails(map[string]any{
				"operationId":   op.ID,
				"contentLength": resp.ContentLength,
			})
	}

	body, err := networking.ReadCapped(resp.Body, op.MaxResponseBytes)
	if err != nil {
		if errors.Is(err, networking.ErrBodyTooLarge) {
			return nil, trusterr.New(ErrPayloadTooLarge,
				"external API response exceeded allowed size", false).
				WithDetails(map[string]any{"operationId": op.ID})
		}
		return nil, classifyTransportFailure(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatusFailure(op, resp.StatusCode, body)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSONContentType(contentType) {
		return nil, trusterr.New(ErrUnsupportedContentType,
			"external API returned a non-JSON response", false).
			WithDetails(map[string]any{
				"operationId": op.ID,
				"contentType": contentType,
			})
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, trusterr.Wrap(ErrResponseParseFailed,
			"external API returned invalid JSON", false, err).
			WithDetails(map[string]any{"operationId": op.ID})
	}

	return &InvokeResponse{
		Status:      resp.StatusCode,
		Data:        data,
		ContentType: contentType,
		RequestPath: requestURL.Path,
	}, nil
}

// validateCallerHeaders enforces the x-* allow-list on caller headers.
func validateCallerHeaders(headers map[string]string) error {
	var rejected []string
	for name := range headers {
		if !callerHeaderPattern.MatchString(name) {
			rejected = append(rejected, name)
		}
	}
	if len(rejected) > 0 {
		return trusterr.New(ErrInvalidHeaders,
			"caller-supplied headers must use the x- prefix", false).
			WithDetails(map[string]any{"rejectedHeaders": rejected})
	}
	return nil
}

// resolveAuthHeader produces the Authorization header value for the
// operation's auth mode, failing closed when credentials are unavailable.
func (g *Gateway) resolveAuthHeader(op Operation) (string, error) {
	switch op.Auth.Type {
	case AuthBearer:
		token, ok := g.env.LookupEnv(op.Auth.TokenEnvVar)
		if !ok || token == "" {
			return "", trusterr.New(ErrCredentialsUnavailable,
				"bearer token environment variable is not set", false).
				WithDetails(map[string]any{
					"operationId": op.ID,
					"tokenEnvVar": op.Auth.TokenEnvVar,
				})
		}
		return "Bearer " + token, nil
	case AuthOIDC:
		if g.tokens == nil {
			return "", trusterr.New(ErrAuthRequired,
				"operation requires an active session", false).
				WithDetails(map[string]any{"operationId": op.ID})
		}
		token := g.tokens.BearerToken()
		if token == "" {
			return "", trusterr.New(ErrAuthRequired,
				"operation requires an active session", false).
				WithDetails(map[string]any{"operationId": op.ID})
		}
		return "Bearer " + token, nil
	default:
		return "", nil
	}
}

// resolveURL substitutes {{placeholder}} tokens, first from caller params and
// then from the claim map against the session's ID-token claims. Unresolved
// placeholders are a hard failure; they are never blanked or demoted to
// query parameters.
func (g *Gateway) resolveURL(op Operation, params map[string]any) (string, map[string]bool, error) {
	resolved := op.URLTemplate
	used := make(map[string]bool)

	var claims map[string]any
	if g.tokens != nil {
		claims = g.tokens.IdentityClaims()
	}

	var missing []string
	for _, name := range placeholders(op.URLTemplate) {
		value, ok := params[name]
		if ok {
			used[name] = true
			resolved = strings.ReplaceAll(resolved, "{{"+name+"}}", url.PathEscape(paramString(value)))
			continue
		}
		if claimPath, mapped := op.ClaimMap[name]; mapped {
			if claimValue, found := claimpath.Resolve(claims, claimPath); found {
				resolved = strings.ReplaceAll(resolved, "{{"+name+"}}", url.PathEscape(claimValue))
				continue
			}
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		return "", nil, trusterr.New(ErrInvalidParams,
			"required URL placeholders could not be resolved", false).
			WithDetails(map[string]any{
				"operationId":         op.ID,
				"missingPlaceholders": missing,
			})
	}
	return resolved, used, nil
}

// paramString renders a caller param value for URL use. Params arrive as
// decoded JSON scalars.
func paramString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// isJSONContentType accepts application/json and +json structured suffixes.
func isJSONContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// classifyStatusFailure maps a non-2xx status into the taxonomy.
func classifyStatusFailure(op Operation, status int, body []byte) error {
	details := map[string]any{
		"operationId": op.ID,
		"status":      status,
		"bodyPreview": bodyPreview(body),
	}
	switch {
	case status == http.StatusUnauthorized:
		return trusterr.New(ErrAuthRequired, "external API rejected the credentials", false).
			WithDetails(details)
	case status == http.StatusForbidden:
		return trusterr.New(ErrForbidden, "external API denied access", false).
			WithDetails(details)
	case status == http.StatusTooManyRequests:
		return trusterr.New(ErrRateLimited, "external API rate limit exceeded", true).
			WithDetails(details)
	case status >= 500:
		return trusterr.New(ErrServerError, "external API returned a server error", true).
			WithDetails(details)
	default:
		return trusterr.New(ErrClientError, "external API rejected the request", false).
			WithDetails(details)
	}
}

// classifyTransportFailure maps a transport-level error into the taxonomy.
func classifyTransportFailure(op Operation, err error) error {
	details := map[string]any{"operationId": op.ID}
	switch networking.ClassifyTransportError(err) {
	case networking.KindTimeout:
		details["timeoutMs"] = op.Timeout.Milliseconds()
		return trusterr.Wrap(ErrTimeout, "external API request timed out", true, err).
			WithDetails(details)
	case networking.KindDNS:
		return trusterr.Wrap(ErrDNS, "external API hostname could not be resolved", true, err).
			WithDetails(details)
	case networking.KindOffline:
		return trusterr.Wrap(ErrOffline, "network is unreachable", true, err).
			WithDetails(details)
	case networking.KindProxy:
		return trusterr.Wrap(ErrProxy, "proxy connection failed", true, err).
			WithDetails(details)
	case networking.KindTLS:
		return trusterr.Wrap(ErrTLS, "TLS negotiation with the external API failed", false, err).
			WithDetails(details)
	default:
		return trusterr.Wrap(ErrNetwork, "external API request failed", true, err).
			WithDetails(details)
	}
}

// bodyPreview truncates a response body for error details.
func bodyPreview(body []byte) string {
	const maxPreview = 200
	text := strings.TrimSpace(string(body))
	if len(text) > maxPreview {
		return text[:maxPreview]
	}
	return text
}
