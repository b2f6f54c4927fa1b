package model

import (
	"time"
)

type Session struct {
	ID             string     `db:"id" json:"id"`
	TokenHash      string     `db:"token_hash" json:"-"`
	AccountID      string     `db:"account_id" json:"accountId"`
	DeviceID       string     `db:"device_id" json:"deviceId"`
	DeviceName     string     `db:"device_name" json:"deviceName"`
	UserAgent      string     `db:"user_agent" json:"userAgent"`
	IPAddress      string     `db:"ip_address" json:"ipAddress"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expiresAt"`
	LastAccessedAt time.Time  `db:"last_accessed_at" json:"lastAccessedAt"`
	RevokedAt      *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`

	// Token is the bearer credential. Only its hash is stored, so it is set
	// only on the value returned when the session is created.
	Token string `db:"-" json:"token,omitempty"`
}

// IsUsable re-checks expiry against now regardless of the active flag.
func (s *Session) IsUsable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// UTC returns a copy with every timestamp in UTC.
func (s Session) UTC() Session {
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.LastAccessedAt = s.LastAccessedAt.UTC()
	s.RevokedAt = utcPtr(s.RevokedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s
}

// DeviceInfo describes the client a session was issued to.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	UserAgent  string `json:"userAgent"`
	IPAddress  string `json:"ipAddress"`
}

type CreateSessionParams struct {
	ID        string
	TokenHash string
	AccountID string
	Device    DeviceInfo
	ExpiresAt time.Time
	Now       time.Time
}
