package feed

// TokenProvider supplies the bearer token for watchlist polling. Token
// acquisition and refresh live outside this package; the poller only asks
// whether a credential is currently available.
type TokenProvider interface {
	// CurrentToken returns the token and true, or "" and false when no
	// credential is available.
	CurrentToken() (string, bool)
}

// StaticToken is a TokenProvider backed by a fixed string. An empty string
// means no credential.
type StaticToken string

// CurrentToken implements TokenProvider.
func (s StaticToken) CurrentToken() (string, bool) {
	if s == "" {
		return "", false
	}
	return string(s), true
}

// TokenProviderFunc adapts a function to the TokenProvider interface.
type TokenProviderFunc func() (string, bool)

// CurrentToken implements TokenProvider.
func (f TokenProviderFunc) CurrentToken() (string, bool) { return f() }
