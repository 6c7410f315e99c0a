package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Batch jobs
	s.RegisterRouteHandler("GET "+RouteJobs, s.protected(s.JobsHandler()))
	s.RegisterRouteHandler("POST "+RouteJobsRefresh, s.protected(s.JobsRefreshHandler()))
	s.RegisterRouteHandler("POST "+RouteJobRun, s.protected(s.JobRunHandler()))

	// Accounts
	s.RegisterRouteHandler("GET "+RouteAccounts, s.protected(s.AccountsListHandler()))
	s.RegisterRouteHandler("POST "+RouteAccountsRefresh, s.protected(s.AccountsRefreshHandler()))
	s.RegisterRouteHandler("PUT "+RouteAccountStatus, s.protected(s.StageStatusHandler()))
	s.RegisterRouteHandler("POST "+RouteAccountStatusCommit, s.protected(s.CommitStatusHandler()))
	s.RegisterRouteHandler("PUT "+RouteAccountTrust, s.protected(s.StageTrustHandler()))
	s.RegisterRouteHandler("POST "+RouteAccountTrustCommit, s.protected(s.CommitTrustHandler()))
	s.RegisterRouteHandler("DELETE "+RouteAccountStaged, s.protected(s.DiscardHandler()))
	s.RegisterRouteHandler("PUT "+RouteAccountWallet, s.protected(s.WalletHandler()))
	s.RegisterRouteHandler("DELETE "+RouteAccount, s.protected(s.DeleteAccountHandler()))

	// Payments
	s.RegisterRouteHandler("GET "+RoutePayments, s.protected(s.PaymentsListHandler()))
	s.RegisterRouteHandler("PUT "+RoutePaymentDue, s.protected(s.PaymentDueHandler()))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS "+RouteAPIAll, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc("GET "+RouteHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// protected wraps an API handler in the standard stack plus the session guard.
func (s *Server) protected(handler http.HandlerFunc) http.HandlerFunc {
	return ChainMiddleware(handler, s.APIMiddleware(s.RequireSessionAuth())...)
}
