package token

import "strings"

// Pair is the access/refresh credential pair issued by the VocaCRM backend.
// It is persisted as one unit; a pair missing either half does not exist.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both halves of the pair are present.
func (p *Pair) Valid() bool {
	return p != nil && strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

// Clone returns a copy of p, or nil for a nil pair.
func (p *Pair) Clone() *Pair {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Equal reports whether both pairs hold the same tokens. Two nil pairs are equal.
func (p *Pair) Equal(o *Pair) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.AccessToken == o.AccessToken && p.RefreshToken == o.RefreshToken
}
