package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
	"github.com/paahaad/hypernova-sub001/internal/service"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Tx      string      `json:"tx,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Success bool   `json:"success"`
}

// origin accepts both spellings of the client origin field.
type origin struct {
	ClientOrigin      string `json:"client_origin"`
	ClientOriginCamel string `json:"clientOrigin"`
}

func (o origin) value() string {
	if o.ClientOrigin != "" {
		return o.ClientOrigin
	}
	return o.ClientOriginCamel
}

type removeLiquidityBody struct {
	origin
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

type addLiquidityBody struct {
	origin
	Wallet       string          `json:"user_wallet"`
	PoolID       string          `json:"pool_id"`
	AmountA      decimal.Decimal `json:"amount_token_a"`
	AmountB      decimal.Decimal `json:"amount_token_b"`
	LPTokens     decimal.Decimal `json:"lp_tokens"`
	TickLower    int32           `json:"tick_lower"`
	TickUpper    int32           `json:"tick_upper"`
	PositionMint string          `json:"position_mint"`
}

type confirmMintBody struct {
	ID           string `json:"id"`
	PositionMint string `json:"position_mint"`
}

type claimFeesBody struct {
	origin
	Wallet string `json:"user_wallet"`
	PoolID string `json:"pool_id"`
}

type executeSwapBody struct {
	origin
	PoolID     string          `json:"pool_id"`
	Wallet     string          `json:"user_wallet"`
	TokenInID  string          `json:"token_in_id"`
	TokenOutID string          `json:"token_out_id"`
	AmountIn   decimal.Decimal `json:"amount_in"`
	AmountOut  decimal.Decimal `json:"amount_out"`
	MinOutput  decimal.Decimal `json:"min_output"`
	TxHash     string          `json:"tx_hash"`
}

type createTokenBody struct {
	MintAddress string  `json:"mint_address"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Decimals    uint8   `json:"decimals"`
	LogoURI     *string `json:"logo_uri"`
}

type importTokenBody struct {
	MintAddress string `json:"mint_address"`
}

type createPoolBody struct {
	PoolAddress string `json:"pool_address"`
	TokenAID    string `json:"token_a_id"`
	TokenBID    string `json:"token_b_id"`
	TokenAMint  string `json:"token_a_mint"`
	TokenBMint  string `json:"token_b_mint"`
	LPMint      string `json:"lp_mint"`
	TickSpacing int32  `json:"tick_spacing"`
	FeeRate     uint32 `json:"fee_rate"`
}

type discoverPoolBody struct {
	PoolAddress string `json:"pool_address"`
}

type createPresaleBody struct {
	TokenID        string          `json:"token_id"`
	MintAddress    string          `json:"mint_address"`
	PresaleAddress string          `json:"presale_address"`
	TargetAmount   decimal.Decimal `json:"target_amount"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
}

type contributeBody struct {
	Wallet string          `json:"user_wallet"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) removeLiquidity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body removeLiquidityBody
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.RemoveLiquidity(r.Context(), service.RemoveLiquidityRequest{
		PositionID:   body.ID,
		LPAmount:     body.Amount,
		ClientOrigin: body.value(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, res, res.Tx, http.StatusOK)
}

func (s *Server) addLiquidity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body addLiquidityBody
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.AddLiquidity(r.Context(), service.AddLiquidityRequest{
		Wallet:       body.Wallet,
		PoolID:       body.PoolID,
		AmountA:      body.AmountA,
		AmountB:      body.AmountB,
		LPTokens:     body.LPTokens,
		TickLower:    body.TickLower,
		TickUpper:    body.TickUpper,
		PositionMint: body.PositionMint,
		ClientOrigin: body.value(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeData(w, res, res.Tx, status)
}

func (s *Server) confirmMint(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body confirmMintBody
	if !s.decode(w, r, &body) {
		return
	}
	position, err := s.svc.ConfirmPositionMint(r.Context(), service.ConfirmPositionMintRequest{
		PositionID:   body.ID,
		PositionMint: body.PositionMint,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, position, nil, http.StatusOK)
}

func (s *Server) positionsByWallet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	views, err := s.svc.ListPositionsForWallet(r.Context(), p.ByName("wallet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, views, nil, http.StatusOK)
}

func (s *Server) claimFees(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body claimFeesBody
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.ClaimFees(r.Context(), service.ClaimFeesRequest{
		PoolID:       body.PoolID,
		Wallet:       body.Wallet,
		ClientOrigin: body.value(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, res.Fees, res.Tx, http.StatusOK)
}

func (s *Server) feesByWallet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	views, err := s.svc.ListFeesForWallet(r.Context(), p.ByName("wallet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, views, nil, http.StatusOK)
}

func (s *Server) executeSwap(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body executeSwapBody
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.RecordSwap(r.Context(), service.RecordSwapRequest{
		PoolID:       body.PoolID,
		Wallet:       body.Wallet,
		TokenInID:    body.TokenInID,
		TokenOutID:   body.TokenOutID,
		AmountIn:     body.AmountIn,
		AmountOut:    body.AmountOut,
		MinOutput:    body.MinOutput,
		TxHash:       body.TxHash,
		ClientOrigin: body.value(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, res, res.Tx, http.StatusCreated)
}

func (s *Server) swapsByPool(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	views, err := s.svc.ListSwapsForPool(r.Context(), p.ByName("pool_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, views, nil, http.StatusOK)
}

func (s *Server) swapsByWallet(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	views, err := s.svc.ListSwapsForWallet(r.Context(), p.ByName("wallet"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, views, nil, http.StatusOK)
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tokens, err := s.svc.ListTokens(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, tokens, nil, http.StatusOK)
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createTokenBody
	if !s.decode(w, r, &body) {
		return
	}
	token, err := s.svc.CreateToken(r.Context(), service.CreateTokenRequest{
		MintAddress: body.MintAddress,
		Symbol:      body.Symbol,
		Name:        body.Name,
		Decimals:    body.Decimals,
		LogoURI:     body.LogoURI,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, token, nil, http.StatusCreated)
}

func (s *Server) importToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body importTokenBody
	if !s.decode(w, r, &body) {
		return
	}
	token, err := s.svc.ImportToken(r.Context(), body.MintAddress)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, token, nil, http.StatusCreated)
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	token, err := s.svc.GetToken(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, token, nil, http.StatusOK)
}

func (s *Server) updateToken(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var patch model.TokenMetadataPatch
	if !s.decode(w, r, &patch) {
		return
	}
	token, err := s.svc.UpdateTokenMetadata(r.Context(), p.ByName("id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, token, nil, http.StatusOK)
}

func (s *Server) listPools(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pools, err := s.svc.ListPools(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, pools, nil, http.StatusOK)
}

func (s *Server) createPool(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createPoolBody
	if !s.decode(w, r, &body) {
		return
	}
	pool, err := s.svc.CreatePool(r.Context(), service.CreatePoolRequest{
		PoolAddress: body.PoolAddress,
		TokenAID:    body.TokenAID,
		TokenBID:    body.TokenBID,
		TokenAMint:  body.TokenAMint,
		TokenBMint:  body.TokenBMint,
		LPMint:      body.LPMint,
		TickSpacing: body.TickSpacing,
		FeeRate:     body.FeeRate,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, pool, nil, http.StatusCreated)
}

func (s *Server) discoverPool(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body discoverPoolBody
	if !s.decode(w, r, &body) {
		return
	}
	pool, err := s.svc.DiscoverPool(r.Context(), body.PoolAddress)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, pool, nil, http.StatusCreated)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	pool, err := s.svc.GetPool(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, pool, nil, http.StatusOK)
}

func (s *Server) listPresales(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	presales, err := s.svc.ListPresales(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, presales, nil, http.StatusOK)
}

func (s *Server) createPresale(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body createPresaleBody
	if !s.decode(w, r, &body) {
		return
	}
	presale, err := s.svc.CreatePresale(r.Context(), service.CreatePresaleRequest{
		TokenID:        body.TokenID,
		MintAddress:    body.MintAddress,
		PresaleAddress: body.PresaleAddress,
		TargetAmount:   body.TargetAmount,
		StartTime:      body.StartTime,
		EndTime:        body.EndTime,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, presale, nil, http.StatusCreated)
}

func (s *Server) getPresale(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	presale, err := s.svc.GetPresale(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, presale, nil, http.StatusOK)
}

func (s *Server) presaleContributions(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	contributions, err := s.svc.ListPresaleContributions(r.Context(), p.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, contributions, nil, http.StatusOK)
}

func (s *Server) contributePresale(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var body contributeBody
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.ContributePresale(r.Context(), service.ContributeRequest{
		Presale: p.ByName("id"),
		Wallet:  body.Wallet,
		Amount:  body.Amount,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, res, nil, http.StatusCreated)
}

// decode reads a JSON request body into ptr and answers 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, ptr interface{}) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(ptr); err != nil {
		s.fail(w, r, &ledger.Error{
			Kind:    ledger.KindInvalidInput,
			Op:      "api.decode",
			Message: "malformed request body",
			Err:     err,
		})
		return false
	}
	return true
}

// fail maps a ledger error kind onto an HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := ledger.KindUpstream
	var le *ledger.Error
	if errors.As(err, &le) {
		kind = le.Kind
		status = statusFor(kind)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	write(w, errorBody{Error: ledger.Message(err), Kind: kind.String()}, status)
}

func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindInvalidInput:
		return http.StatusBadRequest
	case ledger.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeData(w http.ResponseWriter, data interface{}, tx []byte, code int) {
	env := envelope{Success: true, Data: data}
	if len(tx) > 0 {
		env.Tx = base64.StdEncoding.EncodeToString(tx)
	}
	write(w, env, code)
}

func write(w http.ResponseWriter, payload interface{}, code int) {
	w.Header().Set(ContentType, ApplicationJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
