// Package dashboard serves a read-only HTTP view of the running bot:
// per-pair status, open positions, recent trades, and account figures.
// It never mutates trading state.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmorgan/tradecore/account"
	"github.com/rmorgan/tradecore/internal/logging"
	"github.com/rmorgan/tradecore/loop"
	"github.com/rmorgan/tradecore/position"
)

var dashLog = logging.New("dashboard")

type Server struct {
	board   *loop.Board
	tracker *position.Tracker
	ledger  *account.Ledger
	srv     *http.Server
}

func NewServer(addr string, board *loop.Board, tracker *position.Tracker, ledger *account.Ledger) *Server {
	s := &Server{
		board:   board,
		tracker: tracker,
		ledger:  ledger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	{
		api.GET("/status", s.status)
		// Pair names contain a slash, so the pair is routed as two
		// segments: /status/BTC/USDT.
		api.GET("/status/:base/:quote", s.statusPair)
		api.GET("/positions", s.positions)
		api.GET("/trades", s.trades)
		api.GET("/account", s.accountView)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		dashLog.Info("dashboard listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(sctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	all := s.board.All()
	out := make([]pairStatus, 0, len(all))
	for _, st := range all {
		out = append(out, toPairStatus(st))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) statusPair(c *gin.Context) {
	st, ok := s.board.Get(c.Param("base") + "/" + c.Param("quote"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown pair"})
		return
	}
	c.JSON(http.StatusOK, toPairStatus(st))
}

func (s *Server) positions(c *gin.Context) {
	open := s.tracker.Positions()
	out := make([]positionView, 0, len(open))
	for _, p := range open {
		out = append(out, positionView{
			Pair:       p.Pair,
			EntryPrice: p.EntryPrice,
			Units:      p.Units,
			Notional:   p.Notional(),
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
			OpenedAt:   p.OpenedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) trades(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := parseLimit(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	trades := s.tracker.RecentTrades(limit)
	out := make([]tradeView, 0, len(trades))
	for _, tr := range trades {
		out = append(out, tradeView{
			Pair:        tr.Pair,
			EntryPrice:  tr.EntryPrice,
			ExitPrice:   tr.ExitPrice,
			Units:       tr.Units,
			Fees:        tr.Fees,
			RealizedPnL: tr.RealizedPnL,
			OpenedAt:    tr.OpenedAt,
			ClosedAt:    tr.ClosedAt,
			Reason:      tr.Reason,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) accountView(c *gin.Context) {
	now := time.Now().UTC()
	halted, reason := s.ledger.Halted()
	c.JSON(http.StatusOK, accountSummary{
		Equity:         s.ledger.Equity(),
		Exposure:       s.ledger.Exposure(),
		WindowRealized: s.ledger.WindowRealized(now),
		Halted:         halted,
		HaltReason:     reason,
	})
}
