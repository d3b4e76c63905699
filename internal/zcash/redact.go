package zcash

import "net/url"

// RedactEndpoint strips credentials and query parameters from an endpoint
// address so it is safe to log. Provider URLs commonly embed API keys in
// userinfo or query strings.
func RedactEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid endpoint>"
	}

	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
