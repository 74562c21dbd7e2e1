/*
handlers.go - HTTP handlers for the ledger engine

PURPOSE:
  Exposes the engine to the conversational front-end and admin tooling.
  Handlers parse and validate input, convert display-currency amounts at
  the boundary, delegate to the engine, and serialize the result together
  with the applied delta set so the caller can compose notifications.

ERROR MAPPING:
  validation    -> 400  fix the input and resubmit
  not found     -> 404
  illegal state -> 409  the action cannot be repeated (already reversed...)
  anything else -> 500  transaction rolled back; resubmitting Create
                        without caller-side deduplication double-counts
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/oddsbook/ledger-engine/export"
	"github.com/oddsbook/ledger-engine/ledger"
)

// Handler holds the engine components behind the HTTP surface.
type Handler struct {
	Registry  *ledger.Registry
	Engine    *ledger.Engine
	Collector *ledger.Collector
	Ops       *ledger.OperationLedger
	Agg       *ledger.Aggregator
	Converter *ledger.Converter

	Log      *logrus.Logger
	validate *validator.Validate
}

func NewHandler(reg *ledger.Registry, eng *ledger.Engine, col *ledger.Collector,
	ops *ledger.OperationLedger, agg *ledger.Aggregator, conv *ledger.Converter,
	log *logrus.Logger) *Handler {
	return &Handler{
		Registry:  reg,
		Engine:    eng,
		Collector: col,
		Ops:       ops,
		Agg:       agg,
		Converter: conv,
		Log:       log,
		validate:  validator.New(),
	}
}

// =============================================================================
// PLUMBING
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		kind   = "internal"
	)
	switch {
	case ledger.IsValidation(err):
		status, kind = http.StatusBadRequest, "validation"
	case ledger.IsNotFound(err):
		status, kind = http.StatusNotFound, "not_found"
	case ledger.IsIllegalState(err):
		status, kind = http.StatusConflict, "illegal_state"
	}
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON: " + err.Error(), Kind: "validation"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return false
	}
	return true
}

func (h *Handler) badAmount(w http.ResponseWriter, field string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed amount: " + field, Kind: "validation"})
}

func userIDParam(r *http.Request) (ledger.UserID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return ledger.UserID(id), err
}

// parseInterval reads either ?interval=dd.mm.yy-dd.mm.yy or defaults to today.
func parseInterval(r *http.Request) (ledger.DateInterval, error) {
	s := r.URL.Query().Get("interval")
	if s == "" {
		return ledger.TodayInterval(time.Now()), nil
	}
	return ledger.ParseDateInterval(s)
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if _, err := h.Converter.Currency(ledger.CurrencyID(req.Currency)); err != nil {
		h.writeError(w, err)
		return
	}
	u, err := h.Registry.Onboard(r.Context(), ledger.UserID(req.ID), req.Username, ledger.CurrencyID(req.Currency))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, userToDTO(u))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Registry.Store().ActiveUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]userDTO, len(users))
	for i, u := range users {
		out[i] = userToDTO(u)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetBalance reports balances converted into the user's display currency.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	u, err := h.Registry.Store().User(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cur, err := h.Converter.Currency(u.CurrencyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	balance, err := h.Converter.FromBase(u.Balance, u.CurrencyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	secondary, err := h.Converter.FromBase(u.SecondaryBalance, u.CurrencyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceResponse{
		UserID:           int64(u.ID),
		Currency:         cur.Name,
		Symbol:           cur.Symbol,
		Balance:          balance.String(),
		SecondaryBalance: secondary.String(),
	})
}

func (h *Handler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	var req setCurrencyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if _, err := h.Converter.Currency(ledger.CurrencyID(req.Currency)); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Registry.SetCurrency(r.Context(), id, ledger.CurrencyID(req.Currency)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	var req setAdminRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.Registry.SetAdmin(r.Context(), id, req.Admin); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetSecondaryBalance(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	var req setSecondaryRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		h.badAmount(w, "amount")
		return
	}
	if err := h.Registry.SetSecondaryBalance(r.Context(), id, amount); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	if err := h.Registry.Remove(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		h.badAmount(w, "amount")
		return
	}
	refund, ok := parseAmount(req.RefundAmount)
	if !ok {
		h.badAmount(w, "refund_amount")
		return
	}

	// Display-currency amounts convert to base here, at the boundary.
	if req.Display {
		u, err := h.Registry.Store().User(r.Context(), ledger.UserID(req.UserID))
		if err != nil {
			h.writeError(w, err)
			return
		}
		if amount, err = h.Converter.ToBase(amount, u.CurrencyID); err != nil {
			h.writeError(w, err)
			return
		}
		if refund, err = h.Converter.ToBase(refund, u.CurrencyID); err != nil {
			h.writeError(w, err)
			return
		}
	}

	report, deltas, err := h.Engine.Create(r.Context(), ledger.ReportFields{
		UserID:        ledger.UserID(req.UserID),
		PartnerID:     ledger.PartnerID(req.PartnerID),
		Amount:        amount,
		RefundAmount:  refund,
		SalaryPercent: req.SalaryPercent,
		Erroneous:     req.Erroneous,
		Photo:         req.Photo,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, reportResponse{Report: reportToDTO(report), Deltas: deltasDTO(deltas)})
}

func (h *Handler) ReverseReport(w http.ResponseWriter, r *http.Request) {
	id := ledger.ReportID(chi.URLParam(r, "id"))
	report, deltas, err := h.Engine.Reverse(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reportResponse{Report: reportToDTO(report), Deltas: deltasDTO(deltas)})
}

func reportFilter(r *http.Request) (ledger.ReportFilter, error) {
	var f ledger.ReportFilter
	if s := r.URL.Query().Get("interval"); s != "" {
		interval, err := ledger.ParseDateInterval(s)
		if err != nil {
			return f, err
		}
		f.Interval = &interval
	}
	if s := r.URL.Query().Get("user_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, err
		}
		uid := ledger.UserID(id)
		f.UserID = &uid
	}
	if s := r.URL.Query().Get("partner_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return f, err
		}
		pid := ledger.PartnerID(id)
		f.PartnerID = &pid
	}
	return f, nil
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	reports, err := h.Registry.Store().Reports(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]reportDTO, len(reports))
	for i, rep := range reports {
		out[i] = reportToDTO(rep)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ExportReports streams the interval's reports as an .xlsx workbook.
func (h *Handler) ExportReports(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	store := h.Registry.Store()
	reports, err := store.Reports(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}

	users := map[ledger.UserID]ledger.User{}
	partners := map[ledger.PartnerID]ledger.Partner{}
	for _, rep := range reports {
		if _, ok := users[rep.UserID]; !ok {
			if u, err := store.User(r.Context(), rep.UserID); err == nil {
				users[rep.UserID] = u
			}
		}
		if _, ok := partners[rep.PartnerID]; !ok {
			if p, err := store.Partner(r.Context(), rep.PartnerID); err == nil {
				partners[rep.PartnerID] = p
			}
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="reports.xlsx"`)
	if err := export.WriteReports(w, reports, users, partners); err != nil {
		h.Log.WithError(err).Error("export reports")
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req createOperationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		h.badAmount(w, "amount")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = ledger.IssueReason
	}
	op, err := h.Ops.Record(r.Context(), ledger.UserID(req.UserID), amount, reason, req.Secondary)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, operationToDTO(op))
}

func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	ops, err := h.Registry.Store().Operations(r.Context(), interval)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]operationDTO, len(ops))
	for i, op := range ops {
		out[i] = operationToDTO(op)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// COMMISSION COLLECTION
// =============================================================================

func (h *Handler) CollectCommission(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	var req commissionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	res, err := h.Collector.Collect(r.Context(), id, ledger.CommissionKind(req.Kind))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, collectResponse{Collected: res.Collected, Amount: res.Amount.String()})
}

func (h *Handler) SetCommissionAmount(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad user id", Kind: "validation"})
		return
	}
	var req commissionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		h.badAmount(w, "amount")
		return
	}
	diff, err := h.Collector.SetAmount(r.Context(), id, ledger.CommissionKind(req.Kind), amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"difference": diff.String()})
}

// =============================================================================
// CHARITY
// =============================================================================

func (h *Handler) ResetCharity(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.ResetCharity(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STATS
// =============================================================================

func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	t, err := h.Agg.Totals(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, totalsResponse{
		Balance:           t.Balance.String(),
		SecondaryBalance:  t.SecondaryBalance.String(),
		CommissionDefault: t.CommissionDefault.String(),
		CommissionPartner: t.CommissionPartner.String(),
		CharityAmount:     t.CharityAmount.String(),
		CharityLifetime:   t.CharityLifetime.String(),
	})
}

func (h *Handler) IntervalStats(w http.ResponseWriter, r *http.Request) {
	f, err := reportFilter(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	stats, err := h.Agg.IntervalStats(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, intervalStatsResponse{
		Count:    stats.Count,
		Turnover: stats.Turnover.String(),
		Profit:   stats.Profit.String(),
	})
}

func (h *Handler) CharityAccrued(w http.ResponseWriter, r *http.Request) {
	interval, err := parseInterval(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	total, err := h.Agg.CharityAccrued(r.Context(), interval)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"amount": total.String()})
}

// =============================================================================
// PARTNERS
// =============================================================================

func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req createPartnerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	p, err := h.Registry.CreatePartner(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, partnerDTO{ID: int64(p.ID), Name: p.Name, Active: p.Active})
}

func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Registry.Store().ActivePartners(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]partnerDTO, len(partners))
	for i, p := range partners {
		out[i] = partnerDTO{ID: int64(p.ID), Name: p.Name, Active: p.Active}
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeactivatePartner(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad partner id", Kind: "validation"})
		return
	}
	if err := h.Registry.DeactivatePartner(r.Context(), ledger.PartnerID(id)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
