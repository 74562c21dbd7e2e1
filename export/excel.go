/*
Package export produces the spreadsheet projection of reports.

Purely presentational: one row per report (date, username, stake, refund,
profit, percent, partner, erroneous flag), no ledger logic. Amounts are
rendered in the base currency.
*/
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/oddsbook/ledger-engine/ledger"
)

const sheet = "Reports"

var header = []any{
	"Date", "Username", "Stake", "Refund", "Profit", "Percent", "Partner", "Erroneous",
}

// Reports renders the report rows into a workbook. Unknown users or partners
// (possible for soft-deleted records) render with their numeric id.
func Reports(reports []ledger.Report, users map[ledger.UserID]ledger.User, partners map[ledger.PartnerID]ledger.Partner) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, r := range reports {
		username := fmt.Sprintf("%d", r.UserID)
		if u, ok := users[r.UserID]; ok {
			username = u.Username
		}
		partnerName := fmt.Sprintf("%d", r.PartnerID)
		if p, ok := partners[r.PartnerID]; ok {
			partnerName = p.Name
		}
		erroneous := "no"
		if r.Erroneous {
			erroneous = "yes"
		}

		row := []any{
			r.CreatedAt.Format("02.01.2006 15:04:05"),
			username,
			r.Amount.StringFixed(2),
			r.RefundAmount.StringFixed(2),
			r.Profit().StringFixed(2),
			fmt.Sprintf("%d%%", r.SalaryPercent),
			partnerName,
			erroneous,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteReports renders and streams the workbook in one step.
func WriteReports(w io.Writer, reports []ledger.Report, users map[ledger.UserID]ledger.User, partners map[ledger.PartnerID]ledger.Partner) error {
	f, err := Reports(reports, users, partners)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}
