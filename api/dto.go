/*
dto.go - Request/response shapes for the HTTP surface

Monetary values cross the wire as strings ("1250.50") to avoid JSON float
parsing altering amounts. Validation tags are enforced with
go-playground/validator before anything reaches the engine.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsbook/ledger-engine/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

type createUserRequest struct {
	ID       int64  `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Currency int64  `json:"currency_id" validate:"required"`
}

type createReportRequest struct {
	UserID        int64  `json:"user_id" validate:"required"`
	PartnerID     int64  `json:"partner_id" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	RefundAmount  string `json:"refund_amount" validate:"required"`
	SalaryPercent int    `json:"salary_percent" validate:"gte=0,lte=100"`
	Erroneous     bool   `json:"erroneous"`
	Photo         string `json:"photo"`
	// Display indicates the amounts are in the user's display currency and
	// must be converted to base before they reach the engine.
	Display bool `json:"display"`
}

type createOperationRequest struct {
	UserID    int64  `json:"user_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Reason    string `json:"reason"`
	Secondary bool   `json:"secondary"`
}

type commissionRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=default partner_schedule"`
	Amount string `json:"amount"` // SetAmount only
}

type setAdminRequest struct {
	Admin bool `json:"admin"`
}

type setCurrencyRequest struct {
	Currency int64 `json:"currency_id" validate:"required"`
}

type setSecondaryRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type createPartnerRequest struct {
	Name string `json:"name" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type deltaDTO struct {
	UserID  int64  `json:"user_id"`
	Account string `json:"account"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

func deltasDTO(ds ledger.DeltaSet) []deltaDTO {
	out := make([]deltaDTO, len(ds))
	for i, d := range ds {
		out[i] = deltaDTO{
			UserID:  int64(d.UserID),
			Account: string(d.Account),
			Field:   string(d.Field),
			Value:   d.Value.String(),
		}
	}
	return out
}

type reportDTO struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	PartnerID     int64     `json:"partner_id"`
	Amount        string    `json:"amount"`
	RefundAmount  string    `json:"refund_amount"`
	Profit        string    `json:"profit"`
	SalaryPercent int       `json:"salary_percent"`
	Erroneous     bool      `json:"erroneous"`
	Active        bool      `json:"active"`
	Photo         string    `json:"photo,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func reportToDTO(r ledger.Report) reportDTO {
	return reportDTO{
		ID:            string(r.ID),
		UserID:        int64(r.UserID),
		PartnerID:     int64(r.PartnerID),
		Amount:        r.Amount.String(),
		RefundAmount:  r.RefundAmount.String(),
		Profit:        r.Profit().String(),
		SalaryPercent: r.SalaryPercent,
		Erroneous:     r.Erroneous,
		Active:        r.Active,
		Photo:         r.Photo,
		CreatedAt:     r.CreatedAt,
	}
}

type reportResponse struct {
	Report reportDTO  `json:"report"`
	Deltas []deltaDTO `json:"deltas"`
}

type userDTO struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	Balance          string `json:"balance"`
	SecondaryBalance string `json:"secondary_balance"`
	CurrencyID       int64  `json:"currency_id"`
	Admin            bool   `json:"admin"`
	Active           bool   `json:"active"`
}

func userToDTO(u ledger.User) userDTO {
	return userDTO{
		ID:               int64(u.ID),
		Username:         u.Username,
		Balance:          u.Balance.String(),
		SecondaryBalance: u.SecondaryBalance.String(),
		CurrencyID:       int64(u.CurrencyID),
		Admin:            u.Admin,
		Active:           u.Active,
	}
}

type balanceResponse struct {
	UserID           int64  `json:"user_id"`
	Currency         string `json:"currency"`
	Symbol           string `json:"symbol"`
	Balance          string `json:"balance"`
	SecondaryBalance string `json:"secondary_balance"`
}

type operationDTO struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason"`
	Secondary bool      `json:"secondary"`
	CreatedAt time.Time `json:"created_at"`
}

func operationToDTO(op ledger.Operation) operationDTO {
	return operationDTO{
		ID:        string(op.ID),
		UserID:    int64(op.UserID),
		Amount:    op.Amount.String(),
		Reason:    op.Reason,
		Secondary: op.Secondary,
		CreatedAt: op.CreatedAt,
	}
}

type collectResponse struct {
	Collected bool   `json:"collected"`
	Amount    string `json:"amount"`
}

type totalsResponse struct {
	Balance           string `json:"balance"`
	SecondaryBalance  string `json:"secondary_balance"`
	CommissionDefault string `json:"commission_default"`
	CommissionPartner string `json:"commission_partner"`
	CharityAmount     string `json:"charity_amount"`
	CharityLifetime   string `json:"charity_lifetime"`
}

type intervalStatsResponse struct {
	Count    int    `json:"count"`
	Turnover string `json:"turnover"`
	Profit   string `json:"profit"`
}

type partnerDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"` // validation | illegal_state | not_found | internal
}

// parseAmount parses a wire amount string.
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
