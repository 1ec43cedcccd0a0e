// SPDX-FileCopyrightText: Copyright 2026 Desktop Shell Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import "github.com/pkg/browser"

// BrowserOpener opens an URL in the user's default browser. Injected so
// tests and headless environments can substitute their own handler.
type BrowserOpener func(url string) error

// OpenSystemBrowser is the default BrowserOpener.
func OpenSystemBrowser(url string) error {
	return browser.OpenURL(url)
}
