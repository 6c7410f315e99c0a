package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/backend"
	"github.com/jrsteele09/quiz-admin/backend/fakebackend"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	"github.com/jrsteele09/quiz-admin/payments"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	fake   *fakebackend.Backend
	client *backend.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	fake := fakebackend.New(clock.NewFake(now))
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return &testFixture{
		fake:   fake,
		client: backend.New(srv.URL+"/", &http.Client{Timeout: 2 * time.Second}),
	}
}

func rawServer(t *testing.T, code int, body string) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return backend.New(srv.URL, nil)
}

func TestLastExecuted(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.SetLastExecuted(actions.DailyCheck, now.Add(-time.Hour))

	last, err := f.client.LastExecuted(context.Background())
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.True(t, last[actions.DailyCheck].Equal(now.Add(-time.Hour)))
}

func TestLastExecuted_SkipsUnknownKeys(t *testing.T) {
	c := rawServer(t, http.StatusOK, `{"success":true,"lastExecuted":{"manual_cleanup":"2024-05-01 10:00:00","legacy_job":"2024-05-01T10:00:00Z","run_all_cron_jobs":null}}`)

	last, err := c.LastExecuted(context.Background())
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.True(t, last[actions.Cleanup].Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestTrigger(t *testing.T) {
	f := setupTestFixture(t)
	job, _ := actions.Lookup(actions.MonthlyDeduction)

	msg, err := f.client.Trigger(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, "Manual Monthly Deduction completed successfully", msg)
	require.Equal(t, 1, f.fake.Calls(fakebackend.OpTrigger))
}

func TestTrigger_ErrorTextIsVerbatim(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.Fail(fakebackend.OpTrigger, errors.New("Cron job already running"))
	job, _ := actions.Lookup(actions.Cleanup)

	_, err := f.client.Trigger(context.Background(), job)
	require.EqualError(t, err, "Cron job already running")

	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Code)
	require.Equal(t, "/api/admin/manual-cleanup", apiErr.Path)
}

func TestTrigger_FallbackMessages(t *testing.T) {
	job, _ := actions.Lookup(actions.Cleanup)

	c := rawServer(t, http.StatusBadGateway, "<html>bad gateway</html>")
	_, err := c.Trigger(context.Background(), job)
	require.EqualError(t, err, "Request failed with status code 502")

	c = rawServer(t, http.StatusOK, `{"success":false,"error":"Database locked"}`)
	_, err = c.Trigger(context.Background(), job)
	require.EqualError(t, err, "Database locked")
}

func TestTrigger_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	job, _ := actions.Lookup(actions.Cleanup)
	_, err := backend.New(url, nil).Trigger(context.Background(), job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestListUsers_BothShapes(t *testing.T) {
	body := `[{"id":7,"full_name":"Ada","email":"ada@example.com","coin":"12.5","status":"","trust":1,"pause_start":null,"block_date":null},
	          {"id":"8","full_name":"Bob","status":"pause","pause_start":"2024-05-01T11:58:00.000Z","trust":0}]`

	for _, raw := range []string{body, `{"users":` + body + `}`} {
		c := rawServer(t, http.StatusOK, raw)
		list, err := c.ListUsers(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)

		require.Equal(t, "7", list[0].ID)
		require.Equal(t, accounts.StatusActive, list[0].Status)
		require.Equal(t, 12.5, list[0].Coin)
		require.True(t, list[0].Trust)
		require.Nil(t, list[0].PauseStart)

		require.Equal(t, accounts.StatusPaused, list[1].Status)
		require.NotNil(t, list[1].PauseStart)
		require.False(t, list[1].Trust)
	}
}

func TestUpdateStatus_SendsDerivedTimestamps(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/admin/users/42/status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"user":{"id":42,"status":"block","block_date":"2024-05-01T12:00:00Z","pause_start":null}}`)
	}))
	defer srv.Close()

	c := backend.New(srv.URL, nil)
	echo, err := c.UpdateStatus(context.Background(), "42", accounts.Transition(accounts.StatusBlocked, now))
	require.NoError(t, err)

	require.Equal(t, "block", got["status"])
	require.Nil(t, got["pause_start"])
	require.Equal(t, "2024-05-01T12:00:00Z", got["block_date"])

	require.NotNil(t, echo)
	require.Equal(t, "42", echo.ID)
	require.Equal(t, accounts.StatusBlocked, echo.Status)
	require.True(t, echo.BlockDate.Equal(now))
}

func TestUpdateStatus_PartialEchoRecordsFields(t *testing.T) {
	c := rawServer(t, http.StatusOK, `{"success":true,"user":{"id":7,"status":"pause","pause_start":"2024-05-01T12:00:00Z","block_date":null}}`)

	echo, err := c.UpdateStatus(context.Background(), "7", accounts.Transition(accounts.StatusPaused, now))
	require.NoError(t, err)
	require.Equal(t, "7", echo.ID)
	require.True(t, echo.Has("status"))
	require.True(t, echo.Has("block_date"))
	require.False(t, echo.Has("trust"))
	require.False(t, echo.Has("coin"))

	a := accounts.Account{ID: "7", FullName: "Asha", Coin: 250, Trust: true, Status: accounts.StatusActive}
	echo.MergeInto(&a)
	require.Equal(t, accounts.StatusPaused, a.Status)
	require.True(t, a.PauseStart.Equal(now))
	require.Nil(t, a.BlockDate)
	require.True(t, a.Trust)
	require.Equal(t, 250.0, a.Coin)
	require.Equal(t, "Asha", a.FullName)
}

func TestUpdateTrust_PartialEchoOverFake(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.SeedUsers(accounts.Account{ID: "1", FullName: "Ada", Coin: 10, Status: accounts.StatusActive})
	f.fake.EchoFields("id", "trust")

	echo, err := f.client.UpdateTrust(context.Background(), "1", true)
	require.NoError(t, err)
	require.True(t, echo.Trust)
	require.True(t, echo.Has("trust"))
	require.False(t, echo.Has("full_name"))
}

func TestUsers_AgainstFake(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.fake.SeedUsers(accounts.Account{ID: "1", FullName: "Ada", Status: accounts.StatusActive})

	echo, err := f.client.UpdateStatus(ctx, "1", accounts.Transition(accounts.StatusPaused, now))
	require.NoError(t, err)
	require.Equal(t, accounts.StatusPaused, echo.Status)
	require.True(t, echo.PauseStart.Equal(now))

	echo, err = f.client.UpdateTrust(ctx, "1", true)
	require.NoError(t, err)
	require.True(t, echo.Trust)

	f.fake.OmitEcho(true)
	echo, err = f.client.UpdateTrust(ctx, "1", false)
	require.NoError(t, err)
	require.Nil(t, echo)

	require.NoError(t, f.client.UpdateWallet(ctx, "1", 99.5))
	stored, _ := f.fake.User("1")
	require.Equal(t, 99.5, stored.Coin)
	require.False(t, stored.Trust)

	require.NoError(t, f.client.DeleteUser(ctx, "1"))
	err = f.client.DeleteUser(ctx, "1")
	require.EqualError(t, err, "User not found")

	list, err := f.client.ListUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPayments_AgainstFake(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.fake.SeedPayments(
		payments.Payment{ID: "p1", UserID: "1", Amount: 100, Status: payments.StatusPending},
		payments.Payment{ID: "p2", UserID: "2", Amount: 50.25, Status: payments.StatusCompleted, Due: true},
	)

	list, err := f.client.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 50.25, list[1].Amount)
	require.True(t, list[1].Due)

	require.NoError(t, f.client.SetDue(ctx, "p1", true))
	require.EqualError(t, f.client.SetDue(ctx, "missing", true), "Payment not found")
}

func TestListPayments_StringAmounts(t *testing.T) {
	c := rawServer(t, http.StatusOK, `{"success":true,"data":[{"id":3,"user_id":9,"amount":"250.00","due":0,"payment_date":"2024-04-30 08:15:00"}]}`)

	list, err := c.ListPayments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "3", list[0].ID)
	require.Equal(t, "9", list[0].UserID)
	require.Equal(t, 250.0, list[0].Amount)
	require.False(t, list[0].Due)
	require.NotNil(t, list[0].PaymentDate)
}

type staticBackendConfig struct {
	id, secret, tokenURL string
}

func (c staticBackendConfig) GetBackendBaseURL() string        { return "" }
func (c staticBackendConfig) GetBackendTimeout() time.Duration { return 3 * time.Second }
func (c staticBackendConfig) GetBackendClientID() string       { return c.id }
func (c staticBackendConfig) GetBackendClientSecret() string   { return c.secret }
func (c staticBackendConfig) GetBackendTokenURL() string       { return c.tokenURL }

func TestNewHTTPClient_ClientCredentials(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"abc123","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	var authHeader string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"success":true,"lastExecuted":{}}`)
	}))
	defer api.Close()

	hc := backend.NewHTTPClient(context.Background(), staticBackendConfig{id: "console", secret: "s3cret", tokenURL: tokenSrv.URL})
	require.Equal(t, 3*time.Second, hc.Timeout)

	_, err := backend.New(api.URL, hc).LastExecuted(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc123", authHeader)
}

func TestNewHTTPClient_Plain(t *testing.T) {
	hc := backend.NewHTTPClient(context.Background(), staticBackendConfig{})
	require.Equal(t, 3*time.Second, hc.Timeout)
	require.Nil(t, hc.Transport)
}
