package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/knotx/relayer/internal/relayer"
	"github.com/knotx/relayer/pkg/chains"
)

// Server is the relayer's operator surface: health, listener states, recent
// relay results and prometheus metrics.
type Server struct {
	echo      *echo.Echo
	listeners []chains.Listener
	results   *relayer.ResultStore
}

type listenerStatus struct {
	Chain     string `json:"chain"`
	State     string `json:"state"`
	Listening bool   `json:"listening"`
}

type statusResponse struct {
	Listeners []listenerStatus `json:"listeners"`
	Delivered uint64           `json:"delivered"`
	Failed    uint64           `json:"failed"`
}

func NewServer(listeners []chains.Listener, results *relayer.ResultStore) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, listeners: listeners, results: results}
	e.GET("/health", s.handleHealth)
	e.GET("/status", s.handleStatus)
	e.GET("/results", s.handleResults)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := statusResponse{Listeners: make([]listenerStatus, 0, len(s.listeners))}
	for _, l := range s.listeners {
		resp.Listeners = append(resp.Listeners, listenerStatus{
			Chain:     l.Chain().String(),
			State:     l.State().String(),
			Listening: l.IsListening(),
		})
	}
	resp.Delivered, resp.Failed = s.results.Counts()
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResults(c echo.Context) error {
	return c.JSON(http.StatusOK, s.results.Recent())
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("[Api] [Start] serving operator api")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying http handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
