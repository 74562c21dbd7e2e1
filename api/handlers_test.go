package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsbook/ledger-engine/api"
	"github.com/oddsbook/ledger-engine/ledger"
	"github.com/oddsbook/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	mem := store.NewMemory()
	mem.SeedPartner(ledger.Partner{ID: 1, Name: "fee-schedule", Active: true})
	mem.SeedPartner(ledger.Partner{ID: 2, Name: "shared-secondary", Active: true})
	mem.SeedPartner(ledger.Partner{ID: 3, Name: "plain", Active: true})

	rules := ledger.DefaultRules()
	reg := ledger.NewRegistry(mem)
	eng := ledger.NewEngine(reg, rules)
	col := ledger.NewCollector(reg)
	ops := ledger.NewOperationLedger(reg)
	agg := ledger.NewAggregator(mem, rules)
	conv := ledger.NewConverter([]ledger.Currency{
		{ID: 1, Name: "Euro", Symbol: "€", Rate: dec("1")},
		{ID: 2, Name: "Hryvnia", Symbol: "₴", Rate: dec("0.025")},
	})

	log := logrus.New()
	log.SetOutput(io.Discard)

	h := api.NewHandler(reg, eng, col, ops, agg, conv, log)
	return api.NewServer(h, 0, []string{"*"}).Router()
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func createUser(t *testing.T, srv http.Handler, id int64) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"id": id, "username": "tester", "currency_id": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createReport(t *testing.T, srv http.Handler, user, partner int64, stake, refund string, percent int) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/reports", map[string]any{
		"user_id": user, "partner_id": partner,
		"amount": stake, "refund_amount": refund, "salary_percent": percent,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Report struct {
			ID string `json:"id"`
		} `json:"report"`
	}
	decode(t, rec, &resp)
	return resp.Report.ID
}

// =============================================================================
// USERS
// =============================================================================

func TestAPI_CreateUser_AndBalance(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodGet, "/api/users/100/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Currency string `json:"currency"`
		Balance  string `json:"balance"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Euro", resp.Currency)
	assert.Equal(t, "0", resp.Balance)
}

func TestAPI_CreateUser_Duplicate_Conflict(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"id": 100, "username": "again", "currency_id": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Kind string `json:"kind"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "illegal_state", resp.Kind)
}

func TestAPI_CreateUser_MissingFields_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{"id": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateUser_UnknownCurrency_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]any{
		"id": 100, "username": "tester", "currency_id": 99,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Balance_DisplayCurrencyConversion(t *testing.T) {
	// GIVEN: a member whose display currency is worth 0.025 base
	// WHEN: 10 base units are issued and the balance is read
	// THEN: the response shows 400 display units

	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/100/currency", map[string]any{"currency_id": 2})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/operations", map[string]any{
		"user_id": 100, "amount": "10", "reason": "seed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/users/100/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Balance string `json:"balance"`
		Symbol  string `json:"symbol"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "400", resp.Balance)
	assert.Equal(t, "₴", resp.Symbol)
}

func TestAPI_SetAdmin(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/100/admin", map[string]any{"admin": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []struct {
		ID    int64 `json:"id"`
		Admin bool  `json:"admin"`
	}
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.True(t, users[0].Admin)
}

func TestAPI_RemoveUser_HidesFromListing(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createUser(t, srv, 200)

	rec := doJSON(t, srv, http.MethodDelete, "/api/users/100", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, int64(200), users[0].ID)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestAPI_CreateReport_ReturnsDeltas(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/reports", map[string]any{
		"user_id": 100, "partner_id": 3,
		"amount": "1000", "refund_amount": "1300", "salary_percent": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Report struct {
			Profit string `json:"profit"`
			Active bool   `json:"active"`
		} `json:"report"`
		Deltas []struct {
			Account string `json:"account"`
			Field   string `json:"field"`
			Value   string `json:"value"`
		} `json:"deltas"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "300", resp.Report.Profit)
	assert.True(t, resp.Report.Active)
	assert.Len(t, resp.Deltas, 5)
}

func TestAPI_CreateReport_PercentOutOfRange(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/reports", map[string]any{
		"user_id": 100, "partner_id": 3,
		"amount": "100", "refund_amount": "200", "salary_percent": 13,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Kind string `json:"kind"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "validation", resp.Kind)
}

func TestAPI_CreateReport_MalformedAmount(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/reports", map[string]any{
		"user_id": 100, "partner_id": 3,
		"amount": "not-a-number", "refund_amount": "200",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ReverseReport(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	id := createReport(t, srv, 100, 3, "1000", "1300", 10)

	rec := doJSON(t, srv, http.MethodDelete, "/api/reports/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// second reversal conflicts
	rec = doJSON(t, srv, http.MethodDelete, "/api/reports/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// unknown id is 404
	rec = doJSON(t, srv, http.MethodDelete, "/api/reports/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListReports_WithFilter(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createUser(t, srv, 200)
	createReport(t, srv, 100, 3, "100", "150", 5)
	createReport(t, srv, 200, 3, "200", "250", 5)

	rec := doJSON(t, srv, http.MethodGet, "/api/reports?user_id=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []struct {
		UserID int64 `json:"user_id"`
	}
	decode(t, rec, &reports)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(100), reports[0].UserID)

	rec = doJSON(t, srv, http.MethodGet, "/api/reports?interval=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ExportReports_ReturnsWorkbook(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createReport(t, srv, 100, 3, "100", "150", 5)

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())
}

// =============================================================================
// COMMISSION COLLECTION
// =============================================================================

func TestAPI_CollectCommission(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createReport(t, srv, 100, 3, "1000", "1300", 10)

	rec := doJSON(t, srv, http.MethodPost, "/api/commissions/100/collect", map[string]any{"kind": "default"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Collected bool   `json:"collected"`
		Amount    string `json:"amount"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Collected)
	assert.Equal(t, "30", resp.Amount)

	// second collect is a no-op, still 200
	rec = doJSON(t, srv, http.MethodPost, "/api/commissions/100/collect", map[string]any{"kind": "default"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.False(t, resp.Collected)
}

func TestAPI_CollectCommission_BadKind(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/commissions/100/collect", map[string]any{"kind": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SetCommissionAmount(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)

	rec := doJSON(t, srv, http.MethodPost, "/api/commissions/100/amount", map[string]any{
		"kind": "default", "amount": "50",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Difference string `json:"difference"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "50", resp.Difference)
}

// =============================================================================
// STATS AND CHARITY
// =============================================================================

func TestAPI_StatsTotals(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createReport(t, srv, 100, 3, "1000", "1300", 10)

	rec := doJSON(t, srv, http.MethodGet, "/api/stats/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Balance       string `json:"balance"`
		CharityAmount string `json:"charity_amount"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "300", resp.Balance)
	assert.Equal(t, "5", resp.CharityAmount)
}

func TestAPI_CharityReset(t *testing.T) {
	srv := newTestServer(t)
	createUser(t, srv, 100)
	createReport(t, srv, 100, 3, "1000", "1300", 10)

	rec := doJSON(t, srv, http.MethodPost, "/api/charity/reset", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/stats/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		CharityAmount   string `json:"charity_amount"`
		CharityLifetime string `json:"charity_lifetime"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "0", resp.CharityAmount)
	assert.Equal(t, "5", resp.CharityLifetime)
}

// =============================================================================
// PARTNERS
// =============================================================================

func TestAPI_Partners_Lifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/partners", map[string]any{"name": "new book"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &p)
	require.NotZero(t, p.ID)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/partners/%d", p.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/partners", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var partners []struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &partners)
	for _, got := range partners {
		assert.NotEqual(t, p.ID, got.ID)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/partners/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
