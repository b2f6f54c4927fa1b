package model

import (
	"time"
)

type Account struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	ActivationCode string    `db:"activation_code" json:"activationCode"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

func (a Account) UTC() Account {
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a
}

type CreateAccountParams struct {
	ID             string
	Username       string
	PasswordHash   string
	ActivationCode string
	Now            time.Time
}
