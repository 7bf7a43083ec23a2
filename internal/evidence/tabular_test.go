package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeInvoices(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantNil  bool
		total    float64
		avgSeats *float64
	}{
		{name: "empty document", text: "", wantNil: true},
		{name: "header only", text: "invoice_id,amount_usd,seats\n", wantNil: true},
		{
			name:     "sums and averages",
			text:     "invoice_id,amount_usd,seats\n1,30000,500\n2,30000,480\n3,30000,\n4,30000,460\n",
			total:    120000,
			avgSeats: ptr(480.0),
		},
		{
			name:  "unparsable amount counts as zero",
			text:  "amount_usd\n100\nn/a\n\n50.5\n",
			total: 150.5,
		},
		{
			name:  "missing column",
			text:  "invoice_id\n1\n",
			total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeInvoices(tt.text)
			if tt.wantNil {
				assert.Nil(t, got.AnnualSpendUSD)
				assert.Nil(t, got.AvgSeats)
				return
			}
			spend, ok := got.Spend()
			require.True(t, ok)
			assert.InDelta(t, tt.total, spend, 1e-9)
			if tt.avgSeats == nil {
				assert.Nil(t, got.AvgSeats)
			} else {
				require.NotNil(t, got.AvgSeats)
				assert.InDelta(t, *tt.avgSeats, *got.AvgSeats, 1e-9)
			}
		})
	}
}

func TestSummarizeUsage(t *testing.T) {
	fallback := ptr(250)

	t.Run("last row wins", func(t *testing.T) {
		got := SummarizeUsage("month,allocated_seats,active_seats\n2024-01,500,480\n2024-02,500,420\n", fallback)
		require.NotNil(t, got.AllocatedSeats)
		require.NotNil(t, got.ActiveSeats)
		assert.Equal(t, 500, *got.AllocatedSeats)
		assert.Equal(t, 420, *got.ActiveSeats)
		delta, ok := got.Delta()
		require.True(t, ok)
		assert.Equal(t, -16.0, delta)
	})

	t.Run("allocated falls back to contract seats", func(t *testing.T) {
		got := SummarizeUsage("month,active_seats\n2024-02,300\n", fallback)
		require.NotNil(t, got.AllocatedSeats)
		assert.Equal(t, 250, *got.AllocatedSeats)
		assert.Equal(t, 20.0, *got.DeltaPercent)
	})

	t.Run("no document", func(t *testing.T) {
		got := SummarizeUsage("", fallback)
		assert.Equal(t, fallback, got.AllocatedSeats)
		assert.Nil(t, got.ActiveSeats)
		assert.Nil(t, got.DeltaPercent)
	})

	t.Run("no allocation anywhere", func(t *testing.T) {
		got := SummarizeUsage("active_seats\n10\n", nil)
		assert.Nil(t, got.AllocatedSeats)
		assert.Nil(t, got.DeltaPercent)
		require.NotNil(t, got.ActiveSeats)
		assert.Equal(t, 10, *got.ActiveSeats)
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		got := SummarizeUsage("allocated_seats,active_seats\n3,2\n", nil)
		assert.Equal(t, -33.33, *got.DeltaPercent)
	})
}

func TestBundleDocIDs(t *testing.T) {
	b := Bundle{
		Contract: Document{ID: "c.pdf", Text: "x"},
		Invoices: Document{ID: "invoices"},
		Usage:    Document{ID: "u.csv", Text: " \n"},
	}
	assert.Equal(t, []string{"c.pdf", "invoices", "u.csv"}, b.DocIDs())
	assert.True(t, b.Get(KindUsage).Empty())
	assert.False(t, b.Get(KindContract).Empty())
	assert.Equal(t, "invoices", KindInvoices.String())
}

func ptr[T any](v T) *T { return &v }
