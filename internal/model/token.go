package model

import "time"

// Token is a fungible asset known to the ledger, keyed by its mint address.
type Token struct {
	ID               string    `json:"id"`
	MintAddress      string    `json:"mint_address"`
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Decimals         uint8     `json:"decimals"`
	LogoURI          *string   `json:"logo_uri,omitempty"`
	PresaleCompleted bool      `json:"presale_completed"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TokenMetadataPatch carries the administrative fields that may change after creation.
type TokenMetadataPatch struct {
	Name             *string `json:"name,omitempty"`
	LogoURI          *string `json:"logo_uri,omitempty"`
	PresaleCompleted *bool   `json:"presale_completed,omitempty"`
}

// Apply copies the set fields of p onto t.
func (p TokenMetadataPatch) Apply(t *Token) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.LogoURI != nil {
		t.LogoURI = p.LogoURI
	}
	if p.PresaleCompleted != nil {
		t.PresaleCompleted = *p.PresaleCompleted
	}
}

// Empty reports whether the patch changes nothing.
func (p TokenMetadataPatch) Empty() bool {
	return p.Name == nil && p.LogoURI == nil && p.PresaleCompleted == nil
}
