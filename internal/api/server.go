// Package api binds the ledger operations to HTTP/JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/paahaad/hypernova-sub001/internal/service"
)

const (
	defaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 10 * time.Second
	maxBodyBytes          = 1 << 20

	timeoutBody = `{"error":"request timed out","kind":"upstream_failure","success":false}`
)

type Config struct {
	Listen         string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type Server struct {
	svc     *service.Service
	cfg     Config
	logger  *zap.Logger
	handler http.Handler
}

func NewServer(svc *service.Service, cfg Config, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger}

	timed := http.TimeoutHandler(s.router(), cfg.RequestTimeout, timeoutBody)
	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.accessLog(timed))
	return s, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) router() *httprouter.Router {
	r := httprouter.New()

	r.POST(AddLiquidityRoutePath, s.addLiquidity)
	r.POST(RemoveLiquidityRoutePath, s.removeLiquidity)
	r.POST(ConfirmMintRoutePath, s.confirmMint)
	r.GET(PositionsByWalletRoutePath, s.positionsByWallet)

	r.POST(ClaimFeesRoutePath, s.claimFees)
	r.GET(FeesByWalletRoutePath, s.feesByWallet)

	r.POST(ExecuteSwapRoutePath, s.executeSwap)
	r.GET(SwapsByPoolRoutePath, s.swapsByPool)
	r.GET(SwapsByWalletRoutePath, s.swapsByWallet)

	r.GET(TokensRoutePath, s.listTokens)
	r.POST(TokensRoutePath, s.createToken)
	r.POST(ImportTokenRoutePath, s.importToken)
	r.GET(TokenRoutePath, s.getToken)
	r.PATCH(TokenRoutePath, s.updateToken)

	r.GET(PoolsRoutePath, s.listPools)
	r.POST(PoolsRoutePath, s.createPool)
	r.POST(DiscoverPoolRoutePath, s.discoverPool)
	r.GET(PoolRoutePath, s.getPool)

	r.GET(PresalesRoutePath, s.listPresales)
	r.POST(PresalesRoutePath, s.createPresale)
	r.GET(PresaleRoutePath, s.getPresale)
	r.GET(PresaleContributionsRoutePath, s.presaleContributions)
	r.POST(PresaleContributeRoutePath, s.contributePresale)

	r.GET(HealthRoutePath, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		write(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		write(w, errorBody{Error: "route not found", Kind: "not_found"}, http.StatusNotFound)
	})
	r.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.logger.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		write(w, errorBody{Error: "internal error", Kind: "upstream_failure"}, http.StatusInternalServerError)
	}
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
