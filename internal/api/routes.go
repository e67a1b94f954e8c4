package api

const (
	ContentType     = "Content-Type"
	ApplicationJSON = "application/json; charset=utf-8"
)

const (
	AddLiquidityRoutePath      = "/api/liquidity/add"
	RemoveLiquidityRoutePath   = "/api/liquidity/remove"
	ConfirmMintRoutePath       = "/api/liquidity/confirm-mint"
	PositionsByWalletRoutePath = "/api/liquidity/user/:wallet"

	ClaimFeesRoutePath    = "/api/fees/claim"
	FeesByWalletRoutePath = "/api/fees/user/:wallet"

	ExecuteSwapRoutePath   = "/api/swaps/execute"
	SwapsByPoolRoutePath   = "/api/swaps/pool/:pool_id"
	SwapsByWalletRoutePath = "/api/swaps/user/:wallet"

	TokensRoutePath      = "/api/tokens"
	TokenRoutePath       = "/api/tokens/:id"
	ImportTokenRoutePath = "/api/tokens/import"

	PoolsRoutePath        = "/api/pools"
	PoolRoutePath         = "/api/pools/:id"
	DiscoverPoolRoutePath = "/api/pools/discover"

	PresalesRoutePath             = "/api/presales"
	PresaleRoutePath              = "/api/presales/:id"
	PresaleContributionsRoutePath = "/api/presales/:id/contributions"
	PresaleContributeRoutePath    = "/api/presales/:id/contribute"

	HealthRoutePath = "/healthz"
)
