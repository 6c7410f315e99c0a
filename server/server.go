// Package server exposes the admin console over HTTP. Every /api route runs
// behind the operator session guard.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/auth"
	"github.com/jrsteele09/quiz-admin/dispatch"
	"github.com/jrsteele09/quiz-admin/internal/config"
	"github.com/jrsteele09/quiz-admin/payments"
	"github.com/jrsteele09/quiz-admin/sessions"
)

// Deps are the console components the routes drive.
type Deps struct {
	Guard      *auth.SessionGuard
	Tokens     *sessions.TokenSigner
	Dispatcher *dispatch.Dispatcher
	Accounts   *accounts.Machine
	Payments   *payments.Ledger
	Gatherer   prometheus.Gatherer
}

type Server struct {
	env    string // "DEV" enables route logging and insecure cookies
	mux    *http.ServeMux
	routes []string
	config config.Config
	logger zerolog.Logger

	guard      *auth.SessionGuard
	tokens     *sessions.TokenSigner
	dispatcher *dispatch.Dispatcher
	accounts   *accounts.Machine
	payments   *payments.Ledger
	gatherer   prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(config config.Config, deps Deps, options ...Option) (*Server, error) {
	if deps.Guard == nil || deps.Tokens == nil || deps.Dispatcher == nil {
		return nil, errors.New("[Server New] guard, token signer and dispatcher are required")
	}
	if deps.Accounts == nil || deps.Payments == nil {
		return nil, errors.New("[Server New] account machine and payment ledger are required")
	}

	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		logger:     zerolog.Nop(),
		guard:      deps.Guard,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		accounts:   deps.Accounts,
		payments:   deps.Payments,
		gatherer:   deps.Gatherer,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	for _, option := range options {
		option(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := MethodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
