package identity

import "github.com/pkg/browser"

// Browser opens the provider's authorization page for the user.
type Browser interface {
	Open(url string) error
}

// BrowserFunc adapts a function to the Browser interface.
type BrowserFunc func(url string) error

func (f BrowserFunc) Open(url string) error {
	return f(url)
}

// SystemBrowser opens URLs in the user's default browser.
type SystemBrowser struct{}

func (SystemBrowser) Open(url string) error {
	return browser.OpenURL(url)
}
