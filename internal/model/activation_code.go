package model

import (
	"slices"
	"time"
)

type ActivationCode struct {
	ID            int64      `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	Kind          CodeKind   `db:"kind" json:"kind"`
	Status        CodeStatus `db:"status" json:"status"`
	DistributedAt *time.Time `db:"distributed_at" json:"distributedAt,omitempty"`
	ActivatedAt   *time.Time `db:"activated_at" json:"activatedAt,omitempty"`
	ExpireAt      *time.Time `db:"expire_at" json:"expireAt,omitempty"`
	InvalidatedAt *time.Time `db:"invalidated_at" json:"invalidatedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsExpired is false for codes that were never activated.
func (c *ActivationCode) IsExpired(now time.Time) bool {
	return c.ExpireAt != nil && now.After(*c.ExpireAt)
}

// UTC returns a copy with every timestamp in UTC.
func (c ActivationCode) UTC() ActivationCode {
	c.DistributedAt = utcPtr(c.DistributedAt)
	c.ActivatedAt = utcPtr(c.ActivatedAt)
	c.ExpireAt = utcPtr(c.ExpireAt)
	c.InvalidatedAt = utcPtr(c.InvalidatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c
}

// codeTransitions lists the statuses reachable from each status in one step.
// Activated and invalid are terminal.
var codeTransitions = map[CodeStatus][]CodeStatus{
	CodeStatusUnused:      {CodeStatusDistributed, CodeStatusInvalid},
	CodeStatusDistributed: {CodeStatusActivated, CodeStatusInvalid},
	CodeStatusActivated:   {},
	CodeStatusInvalid:     {},
}

// CanTransition reports whether a code may move from one status to another.
func CanTransition(from, to CodeStatus) bool {
	return slices.Contains(codeTransitions[from], to)
}

type CreateActivationCodeParams struct {
	Code string
	Kind CodeKind
	Now  time.Time
}

type DistributeCodesParams struct {
	Kind  CodeKind
	Count int
	Now   time.Time
}

type ActivateCodeParams struct {
	Code        string
	From        CodeStatus
	ActivatedAt time.Time
	ExpireAt    time.Time
}

type InvalidateCodeParams struct {
	Code string
	From CodeStatus
	Now  time.Time
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
