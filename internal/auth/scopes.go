package auth

const (
	ScopeOpenID      = "openid"
	ScopeProfile     = "profile"
	ScopeEmail       = "email"
	ScopeBundleRead  = "bundle:read"
	ScopeBundleWrite = "bundle:write"
)

// AllScopes is the full set of scopes requested during the login flow.
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeBundleRead,
	ScopeBundleWrite,
}
