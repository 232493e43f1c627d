package domain

import "time"

// Session represents one authenticated session, online (user-scoped) or offline (shop-scoped)
type Session struct {
	ID               string            `json:"id"`
	Shop             string            `json:"shop"`
	State            string            `json:"state,omitempty"`
	IsOnline         bool              `json:"is_online"`
	Scope            string            `json:"scope,omitempty"`
	Expires          *time.Time        `json:"expires,omitempty"`
	AccessToken      string            `json:"-"`
	OnlineAccessInfo *OnlineAccessInfo `json:"online_access_info,omitempty"`
}

// OnlineAccessInfo is only present for online sessions with an associated user
type OnlineAccessInfo struct {
	ExpiresIn           int64          `json:"expires_in"`
	AssociatedUserScope string         `json:"associated_user_scope"`
	AssociatedUser      AssociatedUser `json:"associated_user"`
}

// AssociatedUser is the staff member an online session was issued to
type AssociatedUser struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	AccountOwner  bool   `json:"account_owner"`
	Locale        string `json:"locale"`
	Collaborator  bool   `json:"collaborator"`
	EmailVerified bool   `json:"email_verified"`
}

// IsExpired reports whether the session carries an expiry that has already passed
func (s *Session) IsExpired(now time.Time) bool {
	return s.Expires != nil && !s.Expires.After(now)
}
