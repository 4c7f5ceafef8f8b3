package view

// Access decides whether a user's inbound events reach the core.
// Disallowed users are dropped silently before any core operation runs.
type Access interface {
	Allowed(userID string) bool
}

// OpenAccess admits everyone; first contact registers the user.
type OpenAccess struct{}

// Allowed implements Access.
func (OpenAccess) Allowed(string) bool { return true }

// AllowList admits only the listed user identities.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList from user identities.
func NewAllowList(userIDs []string) AllowList {
	l := make(AllowList, len(userIDs))
	for _, id := range userIDs {
		l[id] = struct{}{}
	}
	return l
}

// Allowed implements Access.
func (l AllowList) Allowed(userID string) bool {
	_, ok := l[userID]
	return ok
}
