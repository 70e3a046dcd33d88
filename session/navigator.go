package session

// Application route surface the session subsystem navigates within.
const (
	PathHome           = "/"
	PathLogin          = "/login"
	PathSignup         = "/signup"
	PathForgotPassword = "/forgot-password"
)

// PublicEntryPaths are the pages authenticated users are redirected away
// from, to their own role area.
var PublicEntryPaths = map[string]struct{}{
	PathHome:   {},
	PathLogin:  {},
	PathSignup: {},
}

// Navigator is the host application's navigation hook. replace indicates the
// navigation should not create a history entry.
type Navigator interface {
	Navigate(to string, replace bool)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(to string, replace bool)

func (f NavigatorFunc) Navigate(to string, replace bool) {
	f(to, replace)
}

// NopNavigator discards navigations. Useful for headless consumers of the
// session that have no route surface.
type NopNavigator struct{}

func (NopNavigator) Navigate(string, bool) {}
