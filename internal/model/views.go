package model

import (
	"encoding/json"
	"fmt"
)

// PoolScoped is implemented by entities that reference an owning pool.
type PoolScoped interface {
	PoolRef() string
}

// TokenScoped is implemented by entities that carry their own token pair
// instead of inheriting the pool's.
type TokenScoped interface {
	TokenRefs() (string, string)
}

// Enriched is an entity joined to its pool and the two tokens it refers to.
// Each join is nil when the reference did not resolve.
type Enriched[T PoolScoped] struct {
	Entity T
	Pool   *Pool
	TokenA *Token
	TokenB *Token
}

// MarshalJSON flattens the entity fields and adds the joined records next to
// them. Swaps name their tokens token_in/token_out.
func (e Enriched[T]) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(e.Entity)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, fmt.Errorf("flatten entity: %w", err)
	}

	keyA, keyB := "token_a", "token_b"
	if _, ok := any(e.Entity).(TokenScoped); ok {
		keyA, keyB = "token_in", "token_out"
	}

	joins := []struct {
		key   string
		value interface{}
		ok    bool
	}{
		{"pool", e.Pool, e.Pool != nil},
		{keyA, e.TokenA, e.TokenA != nil},
		{keyB, e.TokenB, e.TokenB != nil},
	}
	for _, j := range joins {
		if !j.ok {
			continue
		}
		raw, err := json.Marshal(j.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", j.key, err)
		}
		fields[j.key] = raw
	}
	return json.Marshal(fields)
}

// PoolView is a pool joined to its two tokens.
type PoolView struct {
	Pool
	TokenA *Token `json:"token_a,omitempty"`
	TokenB *Token `json:"token_b,omitempty"`
}

// PresaleView is a presale joined to its token.
type PresaleView struct {
	Presale
	Token *Token `json:"token,omitempty"`
}
