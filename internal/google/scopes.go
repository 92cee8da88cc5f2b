package google

// DefaultOAuthScopes are the Google OAuth scopes requested at login.
//
// The scopes provide access to:
//   - OpenID Connect user info (email, profile)
//   - Google Calendar: calendars and events
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",

	// Google Calendar scopes
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/calendar.events",
}
