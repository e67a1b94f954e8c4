package model

// PoolMeta captures immutable V3 pool parameters read from chain.
type PoolMeta struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Liquidity   string `json:"liquidity,omitempty"`
}
