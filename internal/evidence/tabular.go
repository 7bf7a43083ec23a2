package evidence

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
)

// readRows parses CSV text into header-keyed rows. Parsing stops at the
// first malformed record; rows read so far are kept.
func readRows(text string) []map[string]string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SummarizeInvoices totals amount_usd and averages seats. Unparsable
// amounts count as zero. Without rows both fields stay unset.
func SummarizeInvoices(text string) InvoiceSummary {
	rows := readRows(text)
	if len(rows) == 0 {
		return InvoiceSummary{}
	}

	var total, seatSum float64
	var seatRows int
	for _, row := range rows {
		if v, ok := parseFloat(row["amount_usd"]); ok {
			total += v
		}
		if v, ok := parseFloat(row["seats"]); ok {
			seatSum += v
			seatRows++
		}
	}

	summary := InvoiceSummary{AnnualSpendUSD: &total}
	if seatRows > 0 {
		avg := seatSum / float64(seatRows)
		summary.AvgSeats = &avg
	}
	return summary
}

// SummarizeUsage reads the last row of the usage CSV. Allocated seats
// fall back to fallbackAllocated when the column is empty or the
// document has no rows.
func SummarizeUsage(text string, fallbackAllocated *int) UsageSummary {
	rows := readRows(text)
	if len(rows) == 0 {
		return UsageSummary{AllocatedSeats: fallbackAllocated}
	}
	last := rows[len(rows)-1]

	allocated, ok := parseFloat(last["allocated_seats"])
	if !ok && fallbackAllocated != nil {
		allocated = float64(*fallbackAllocated)
	}
	active, _ := parseFloat(last["active_seats"])

	var summary UsageSummary
	if allocated != 0 {
		delta := brief.Round((active-allocated)/allocated*100, 2)
		summary.DeltaPercent = &delta
		seats := int(allocated)
		summary.AllocatedSeats = &seats
	} else {
		summary.AllocatedSeats = fallbackAllocated
	}
	if active != 0 {
		seats := int(active)
		summary.ActiveSeats = &seats
	}
	return summary
}
