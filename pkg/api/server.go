// Package api exposes the indexer's read API and job controls over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/pkg/config"
	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/scheduler"
	"github.com/6529-collections/tdh-indexer/pkg/store"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultLogTail  = 100
)

// Server serves the indexer API.
type Server struct {
	store  *store.Store
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewServer creates the API server.
func NewServer(st *store.Store, sched *scheduler.Scheduler, logger *zap.Logger) *Server {
	return &Server{store: st, sched: sched, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/commitment", HandleError(s.getCommitment))
		r.Get("/tdh/wallet/{wallet}", HandleError(s.getWalletTDH))
		r.Get("/transactions", HandleError(s.getTransactions))
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", HandleError(s.getJobs))
			r.Get("/{namespace}", HandleError(s.getJob))
			r.Get("/{namespace}/logs", HandleError(s.getJobLogs))
			r.Post("/{namespace}/start", HandleError(s.startJob))
			r.Post("/{namespace}/stop", HandleError(s.stopJob))
			r.Post("/{namespace}/reset", HandleError(s.resetJob))
		})
	})
	return r
}

type commitmentResponse struct {
	Block      uint64    `json:"block"`
	BlockTime  time.Time `json:"block_time"`
	MerkleRoot string    `json:"merkle_root"`
	ComputedAt time.Time `json:"computed_at"`
	TotalTDH   int64     `json:"total_tdh"`
}

func (s *Server) getCommitment(w http.ResponseWriter, r *http.Request) error {
	commitment, err := s.store.GetCommitment(r.Context())
	if err != nil {
		return err
	}
	if commitment == nil {
		return notFound(w, "no snapshot committed yet")
	}

	rows, err := s.store.SnapshotRows(r.Context())
	if err != nil {
		return err
	}
	var total int64
	for _, row := range rows {
		total += row.BoostedTDH
	}

	return writeJSON(w, http.StatusOK, &commitmentResponse{
		Block:      commitment.Block,
		BlockTime:  commitment.Timestamp,
		MerkleRoot: commitment.MerkleRoot,
		ComputedAt: commitment.ComputedAt,
		TotalTDH:   total,
	})
}

func (s *Server) getWalletTDH(w http.ResponseWriter, r *http.Request) error {
	wallet := strings.ToLower(chi.URLParam(r, "wallet"))
	if !strings.HasPrefix(wallet, "0x") || len(wallet) != 42 {
		return tdherr.Validation(fmt.Sprintf("invalid wallet address %q", wallet))
	}

	row, err := s.store.SnapshotRowForWallet(r.Context(), wallet)
	if err != nil {
		return err
	}
	if row == nil {
		return notFound(w, "wallet has no scoring row")
	}
	return writeJSON(w, http.StatusOK, snapshotResponse(row))
}

type transactionsResponse struct {
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Total    int                    `json:"total"`
	Data     []model.TransferRecord `json:"data"`
}

func (s *Server) getTransactions(w http.ResponseWriter, r *http.Request) error {
	wallet := strings.ToLower(r.URL.Query().Get("wallet"))
	if wallet == "" {
		return tdherr.Validation("wallet query parameter is required")
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := store.TransactionsFilter{
		Wallets:  []string{wallet},
		Contract: strings.ToLower(r.URL.Query().Get("contract")),
	}
	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		return err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return err
	}

	records, total, err := s.store.TransactionsPage(r.Context(), filter, page, pageSize)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, &transactionsResponse{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Data:     records,
	})
}

func (s *Server) getJobs(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, s.sched.Statuses())
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) error {
	status, ok := s.sched.StatusOf(chi.URLParam(r, "namespace"))
	if !ok {
		return notFound(w, "unknown job namespace")
	}
	return writeJSON(w, http.StatusOK, status)
}

func (s *Server) getJobLogs(w http.ResponseWriter, r *http.Request) error {
	namespace := chi.URLParam(r, "namespace")
	if _, ok := s.sched.StatusOf(namespace); !ok {
		return notFound(w, "unknown job namespace")
	}
	limit := queryInt(r, "limit", defaultLogTail)
	lines, err := s.store.JobLogTail(r.Context(), namespace, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, lines)
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) error {
	if err := s.sched.StartJob(chi.URLParam(r, "namespace")); err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) error {
	if err := s.sched.StopJob(chi.URLParam(r, "namespace")); err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// resetJob clears a job's error state. For ingestion jobs an optional block
// parameter rewinds the namespace watermark so the next run re-scans from
// that block.
func (s *Server) resetJob(w http.ResponseWriter, r *http.Request) error {
	namespace := chi.URLParam(r, "namespace")

	if raw := r.URL.Query().Get("block"); raw != "" {
		block, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return tdherr.Validation(fmt.Sprintf("invalid block %q", raw))
		}
		wm, err := s.store.GetWatermark(r.Context(), namespace)
		if err != nil {
			return err
		}
		if wm == nil {
			return tdherr.Validation(fmt.Sprintf("namespace %q has no watermark to rewind", namespace))
		}
		if block > wm.Block {
			return tdherr.Validation(fmt.Sprintf("block %d is ahead of watermark %d", block, wm.Block))
		}
		if err := s.store.SetWatermark(r.Context(), model.Watermark{
			Namespace: namespace,
			Block:     block,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return err
		}
		s.logger.Info("watermark rewound",
			zap.String("namespace", namespace), zap.Uint64("block", block))
	}

	if err := s.sched.ResetJob(namespace); err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset"})
}

// queryTime parses an RFC 3339 timestamp or a plain date from a query
// parameter. A missing parameter returns the zero time.
func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, tdherr.Validation(fmt.Sprintf("invalid %s timestamp %q", key, raw))
	}
	return t, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// ServeAndWait starts the HTTP server and blocks until ctx is canceled or the
// server fails, then shuts down gracefully.
func ServeAndWait(ctx context.Context, handler http.Handler, cfg config.ServerConfig, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("HTTP server error", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return runErr
}
