package auth

import "slices"

const (
	PathHome      = "/"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathDashboard = "/dashboard"
)

var publicPaths = []string{PathHome, PathLogin, PathSignup}

func IsPublic(path string) bool {
	return slices.Contains(publicPaths, path)
}

// Route returns where a browser in state should be sent when it asks for
// path, or "" to stay. No decision is made while authentication is pending.
func Route(state AuthState, path string) string {
	switch state {
	case Authenticating:
		return ""
	case Authenticated:
		if IsPublic(path) && path != PathHome {
			return PathDashboard
		}
	default:
		if !IsPublic(path) {
			return PathLogin
		}
	}
	return ""
}
