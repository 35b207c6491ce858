package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var exportHeader = []string{"ID", "Date", "Cashier", "Payment Method", "Bank", "Total", "Items"}

// ExportFilename names the attachment for a sales export.
func ExportFilename(from, to string) string {
	return fmt.Sprintf("sales_%s_to_%s.csv", from, to)
}

// WriteCSV renders the export rows. Items are flattened to "name (qty); name (qty)".
func WriteCSV(w io.Writer, rows []ExportRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		cashier := ""
		if row.CashierEmail != nil {
			cashier = *row.CashierEmail
		}
		bank := "N/A"
		if row.PaymentBank != nil && *row.PaymentBank != "" {
			bank = *row.PaymentBank
		}
		lines := make([]string, 0, len(row.Items))
		for _, line := range row.Items {
			lines = append(lines, fmt.Sprintf("%s (%d)", line.Name, line.Qty))
		}
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			cashier,
			row.PaymentMethod.String(),
			bank,
			row.Total.StringFixed(2),
			strings.Join(lines, "; "),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
