// Package exportsvc renders domain data into downloadable formats.
package exportsvc

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tealeg/xlsx/v2"

	"github.com/trezcool/campusdeals/core/ticket"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	redemptionSheet = "Redemptions"
)

var redemptionHeader = []string{"Redeemed at (UTC)", "Code", "Deal", "Location", "Student", "Distance (m)"}

// WriteRedemptionsXLSX writes one spreadsheet row per redemption, after a header row.
func WriteRedemptionsXLSX(w io.Writer, rows []ticket.RedemptionRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(redemptionSheet)
	if err != nil {
		return errors.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, title := range redemptionHeader {
		header.AddCell().SetString(title)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetDateTime(r.RedeemedAt.UTC())
		row.AddCell().SetString(r.Code)
		row.AddCell().SetString(r.DealTitle)
		row.AddCell().SetString(r.LocationLabel)
		row.AddCell().SetString(r.StudentName)
		row.AddCell().SetFloat(r.DistanceM)
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "xlsx: write")
	}
	return nil
}
