package constants

// Session and request context keys.
const (
	SessionCookieName  = "busybee_session"
	SessionKeyUsername = "username"
	ContextKeyAccount  = "account"
)

// Pagination bounds for GET /tasks.
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Task limits.
const (
	MaxResponsibleUsers = 5
)

// Redirect targets used by the auth endpoints.
const (
	RegisterRedirect = "main/main.html"
	LoginRedirect    = "/main/main.html"
	LogoutRedirect   = "/"
)
