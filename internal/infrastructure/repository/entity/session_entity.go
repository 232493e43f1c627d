package entity

import (
	"strconv"
	"time"

	"shopify-improvement-core/internal/domain"
)

// SessionRecord is the persisted form of a Session, with the associated user flattened
type SessionRecord struct {
	ID            string     `json:"id"`
	Shop          string     `json:"shop"`
	State         string     `json:"state,omitempty"`
	IsOnline      bool       `json:"is_online"`
	Scope         string     `json:"scope,omitempty"`
	Expires       *time.Time `json:"expires,omitempty"`
	AccessToken   string     `json:"access_token"`
	UserID        string     `json:"user_id,omitempty"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Email         string     `json:"email,omitempty"`
	AccountOwner  bool       `json:"account_owner"`
	Locale        string     `json:"locale,omitempty"`
	Collaborator  bool       `json:"collaborator"`
	EmailVerified bool       `json:"email_verified"`
}

// SessionKey identifies a session record by id
func SessionKey(r *SessionRecord) string { return r.ID }

// SessionRecordFromDomain flattens s; encryptedToken replaces the plaintext token
func SessionRecordFromDomain(s *domain.Session, encryptedToken string) SessionRecord {
	record := SessionRecord{
		ID:          s.ID,
		Shop:        s.Shop,
		State:       s.State,
		IsOnline:    s.IsOnline,
		Scope:       s.Scope,
		Expires:     s.Expires,
		AccessToken: encryptedToken,
	}
	if info := s.OnlineAccessInfo; info != nil {
		user := info.AssociatedUser
		if user.ID != 0 {
			record.UserID = strconv.FormatInt(user.ID, 10)
		}
		record.FirstName = user.FirstName
		record.LastName = user.LastName
		record.Email = user.Email
		record.AccountOwner = user.AccountOwner
		record.Locale = user.Locale
		record.Collaborator = user.Collaborator
		record.EmailVerified = user.EmailVerified
	}
	return record
}

// ToDomain rebuilds the session. OnlineAccessInfo is only set for online
// sessions that carry a numeric user id.
func (r *SessionRecord) ToDomain(accessToken string, now time.Time) *domain.Session {
	session := &domain.Session{
		ID:          r.ID,
		Shop:        r.Shop,
		State:       r.State,
		IsOnline:    r.IsOnline,
		Scope:       r.Scope,
		Expires:     r.Expires,
		AccessToken: accessToken,
	}
	if !r.IsOnline || r.UserID == "" {
		return session
	}

	userID, err := strconv.ParseInt(r.UserID, 10, 64)
	if err != nil {
		return session
	}
	var expiresIn int64
	if r.Expires != nil {
		expiresIn = int64(r.Expires.Sub(now) / time.Second)
	}
	session.OnlineAccessInfo = &domain.OnlineAccessInfo{
		ExpiresIn:           expiresIn,
		AssociatedUserScope: r.Scope,
		AssociatedUser: domain.AssociatedUser{
			ID:            userID,
			FirstName:     r.FirstName,
			LastName:      r.LastName,
			Email:         r.Email,
			AccountOwner:  r.AccountOwner,
			Locale:        r.Locale,
			Collaborator:  r.Collaborator,
			EmailVerified: r.EmailVerified,
		},
	}
	return session
}
