package server

// Route path constants
const (
	// Auth
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Batch jobs
	RouteJobs        = "/api/jobs"
	RouteJobsRefresh = "/api/jobs/refresh"
	RouteJobRun      = "/api/jobs/{id}/run"

	// Accounts
	RouteAccounts            = "/api/accounts"
	RouteAccountsRefresh     = "/api/accounts/refresh"
	RouteAccount             = "/api/accounts/{id}"
	RouteAccountStatus       = "/api/accounts/{id}/status"
	RouteAccountStatusCommit = "/api/accounts/{id}/status/commit"
	RouteAccountTrust        = "/api/accounts/{id}/trust"
	RouteAccountTrustCommit  = "/api/accounts/{id}/trust/commit"
	RouteAccountStaged       = "/api/accounts/{id}/staged"
	RouteAccountWallet       = "/api/accounts/{id}/wallet"

	// Payments
	RoutePayments   = "/api/payments"
	RoutePaymentDue = "/api/payments/{id}/due"

	// Operational
	RouteMetrics = "/metrics"
	RouteHealthz = "/healthz"
	RouteAPIAll  = "/api/"
)
