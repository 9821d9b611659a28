package usercontext

// Shared Locals/session keys used across controllers and middlewares.
// The auth subsystem writes KeyUserID, KeyUsername, KeyEmail and KeyIsAdmin
// into the session at login.
const (
	LocalsKey        = "USER_CONTEXT"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyEmail         = "email"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
