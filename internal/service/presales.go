package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/ledger"
	"github.com/paahaad/hypernova-sub001/internal/model"
)

// CreatePresaleRequest names the token by id, or by mint address when the id
// is empty.
type CreatePresaleRequest struct {
	TokenID        string
	MintAddress    string
	PresaleAddress string
	TargetAmount   decimal.Decimal
	StartTime      time.Time
	EndTime        time.Time
}

// CreatePresale opens a fundraising window for a token. A token has at most
// one presale.
func (s *Service) CreatePresale(ctx context.Context, req CreatePresaleRequest) (model.Presale, error) {
	const op = "presales.create"
	if err := required(op, "presale_address", req.PresaleAddress); err != nil {
		return model.Presale{}, err
	}
	if !req.TargetAmount.IsPositive() {
		return model.Presale{}, ledger.Invalid(op, "target_amount must be greater than zero")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return model.Presale{}, ledger.Invalid(op, "start_time and end_time are required")
	}
	if !req.EndTime.After(req.StartTime) {
		return model.Presale{}, ledger.Invalid(op, "end_time must be after start_time")
	}

	var (
		token model.Token
		err   error
	)
	switch {
	case strings.TrimSpace(req.TokenID) != "":
		token, err = s.store.GetToken(ctx, req.TokenID)
	case strings.TrimSpace(req.MintAddress) != "":
		token, err = s.store.GetTokenByMint(ctx, req.MintAddress)
	default:
		return model.Presale{}, ledger.Invalid(op, "missing required field: token_id")
	}
	if err != nil {
		if ledger.IsNotFound(err) {
			return model.Presale{}, ledger.NotFound(op, "token not found")
		}
		return model.Presale{}, ledger.Upstream(op, err)
	}

	switch _, err := s.store.GetPresaleByToken(ctx, token.ID); {
	case err == nil:
		return model.Presale{}, ledger.Conflict(op, "token already has a presale")
	case !ledger.IsNotFound(err):
		return model.Presale{}, ledger.Upstream(op, err)
	}

	presale, err := s.store.CreatePresale(ctx, model.Presale{
		TokenID:        token.ID,
		PresaleAddress: strings.TrimSpace(req.PresaleAddress),
		MintAddress:    token.MintAddress,
		TotalRaised:    decimal.Zero,
		TargetAmount:   req.TargetAmount,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		Status:         model.PresaleActive,
	})
	if err != nil {
		return model.Presale{}, ledger.Upstream(op, err)
	}
	s.logger.Info("presale created",
		zap.String("presale_id", presale.ID),
		zap.String("token_id", token.ID),
		zap.String("target_amount", presale.TargetAmount.String()),
	)
	return presale, nil
}

func (s *Service) findPresale(ctx context.Context, op, idOrAddress string) (model.Presale, error) {
	if err := required(op, "id", idOrAddress); err != nil {
		return model.Presale{}, err
	}
	presale, err := s.store.GetPresale(ctx, idOrAddress)
	if ledger.IsNotFound(err) {
		presale, err = s.store.GetPresaleByAddress(ctx, idOrAddress)
	}
	if err != nil {
		if ledger.IsNotFound(err) {
			return model.Presale{}, ledger.NotFound(op, "presale not found")
		}
		return model.Presale{}, ledger.Upstream(op, err)
	}
	return presale, nil
}

// GetPresale looks a presale up by id, then by presale address, and joins
// its token.
func (s *Service) GetPresale(ctx context.Context, idOrAddress string) (model.PresaleView, error) {
	const op = "presales.get"
	presale, err := s.findPresale(ctx, op, idOrAddress)
	if err != nil {
		return model.PresaleView{}, err
	}
	view := model.PresaleView{Presale: presale}
	token, err := s.store.GetToken(ctx, presale.TokenID)
	switch {
	case err == nil:
		view.Token = &token
	case !ledger.IsNotFound(err):
		return model.PresaleView{}, ledger.Upstream(op, err)
	}
	return view, nil
}

func (s *Service) ListPresales(ctx context.Context) ([]model.Presale, error) {
	presales, err := s.store.ListPresales(ctx)
	if err != nil {
		return nil, ledger.Upstream("presales.list", err)
	}
	return presales, nil
}

type ContributeRequest struct {
	Presale string
	Wallet  string
	Amount  decimal.Decimal
}

type ContributeResult struct {
	Presale      model.Presale             `json:"presale"`
	Contribution model.PresaleContribution `json:"contribution"`
}

// ContributePresale records a contribution and raises the presale total.
// Reaching the target does not close the presale; finalization happens on
// chain.
func (s *Service) ContributePresale(ctx context.Context, req ContributeRequest) (ContributeResult, error) {
	const op = "presales.contribute"
	if err := required(op, "user_wallet", req.Wallet); err != nil {
		return ContributeResult{}, err
	}
	if !req.Amount.IsPositive() {
		return ContributeResult{}, ledger.Invalid(op, "amount must be greater than zero")
	}
	presale, err := s.findPresale(ctx, op, req.Presale)
	if err != nil {
		return ContributeResult{}, err
	}
	if presale.Status != model.PresaleActive {
		return ContributeResult{}, ledger.Invalid(op, "presale is not active, current status: %s", presale.Status)
	}
	now := s.now()
	if !presale.Open(now) {
		return ContributeResult{}, ledger.Invalid(op, "presale is not open at %s", now.Format(time.RFC3339))
	}

	presale.TotalRaised = presale.TotalRaised.Add(req.Amount)
	updated, contribution, err := s.store.AddContribution(ctx, presale, model.PresaleContribution{
		UserWallet: req.Wallet,
		Amount:     req.Amount,
		Timestamp:  now,
	})
	if err != nil {
		return ContributeResult{}, ledger.Upstream(op, err)
	}
	s.logger.Info("presale contribution",
		zap.String("presale_id", updated.ID),
		zap.String("wallet", req.Wallet),
		zap.String("amount", req.Amount.String()),
		zap.String("total_raised", updated.TotalRaised.String()),
	)
	return ContributeResult{Presale: updated, Contribution: contribution}, nil
}

func (s *Service) ListPresaleContributions(ctx context.Context, idOrAddress string) ([]model.PresaleContribution, error) {
	const op = "presales.list_contributions"
	presale, err := s.findPresale(ctx, op, idOrAddress)
	if err != nil {
		return nil, err
	}
	contributions, err := s.store.ListContributions(ctx, presale.ID)
	if err != nil {
		return nil, ledger.Upstream(op, err)
	}
	return contributions, nil
}
