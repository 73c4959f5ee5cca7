package models

import "time"

// TokenSet is the access/refresh pair issued by the Kommo OAuth server.
// It is replaced wholesale on every exchange or refresh.
type TokenSet struct {
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token" yaml:"refresh_token"`
	ExpiresIn    int       `json:"expires_in,omitempty" yaml:"expires_in,omitempty"` // seconds, as reported by the provider
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// CanRefresh reports whether a refresh grant can be attempted with this set.
func (ts TokenSet) CanRefresh() bool {
	return ts.RefreshToken != ""
}

// KommoToken is the database row backing the "database" token store.
// Only one row is kept: the current TokenSet.
type KommoToken struct {
	ID           int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	ExpiresIn    int        `gorm:"not null;default:0" json:"expires_in"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

func (KommoToken) TableName() string {
	return "kommo_tokens"
}

// ToTokenSet converts the row into the domain value.
func (kt KommoToken) ToTokenSet() TokenSet {
	ts := TokenSet{
		AccessToken:  kt.AccessToken,
		RefreshToken: kt.RefreshToken,
		ExpiresIn:    kt.ExpiresIn,
	}
	if kt.UpdatedAt != nil {
		ts.UpdatedAt = *kt.UpdatedAt
	}
	return ts
}
