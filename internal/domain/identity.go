package domain

// AuthProvider names the mechanism that produced an identity.
type AuthProvider string

const (
	// ProviderAnonymous marks identities minted by anonymous sign-in.
	ProviderAnonymous AuthProvider = "anonymous"

	// ProviderToken marks identities derived from a pre-provisioned
	// custom token.
	ProviderToken AuthProvider = "token"
)

// Identity is the authenticated principal of the current session.
// Anonymous identities are full identities: they carry a UID and can
// author listings like any other.
type Identity struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// UID is the opaque principal identifier. For anonymous identities
	// it is minted by the backend at sign-in; for token identities it
	// comes from the token subject.
	UID string

	// Provider records how this identity was established.
	Provider AuthProvider

	// ─────────────────────────────
	// Display
	// ─────────────────────────────

	// DisplayName is optional and only ever set for token identities.
	DisplayName string
}

// Anonymous reports whether the identity was minted anonymously.
func (i *Identity) Anonymous() bool {
	return i != nil && i.Provider == ProviderAnonymous
}

// AuthState is the bootstrapper's position in the sign-in lifecycle.
type AuthState string

const (
	// AuthUnauthenticated means no identity is held. The bootstrapper
	// never rests here: entering this state triggers an anonymous
	// sign-in attempt.
	AuthUnauthenticated AuthState = "unauthenticated"

	// AuthAuthenticating means a sign-in attempt is in flight.
	AuthAuthenticating AuthState = "authenticating"

	// AuthAuthenticated means an identity is held.
	AuthAuthenticated AuthState = "authenticated"

	// AuthFailed means the last sign-in attempt failed. The session
	// continues without an identity until the next attempt.
	AuthFailed AuthState = "failed"
)
