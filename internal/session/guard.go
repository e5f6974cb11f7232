package session

// Decision is the outcome of a route guard.
type Decision int

const (
	// Pending means the session is still loading; render nothing identity-dependent.
	Pending Decision = iota
	RedirectLogin
	Allow
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case RedirectLogin:
		return "redirectLogin"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// RequireAuth admits any signed-in user.
func RequireAuth(s State) Decision {
	switch s.Status {
	case Loading:
		return Pending
	case SignedIn:
		return Allow
	}
	return RedirectLogin
}

// RequireAdmin admits signed-in admins. Signed-in non-admins are sent to the
// login screen too; the guard does not tell the two cases apart.
// These guards only shape navigation. Every privileged call is authorized
// again on the server.
func RequireAdmin(s State) Decision {
	switch {
	case s.Status == Loading:
		return Pending
	case s.Status == SignedIn && s.User != nil && s.User.IsAdmin:
		return Allow
	}
	return RedirectLogin
}
