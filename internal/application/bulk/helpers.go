package bulk

import (
	"encoding/json"

	"github.com/ledger/backend/internal/domain/bulk"
	"github.com/shopspring/decimal"
)

// decimalDelta accumulates a signed balance movement for one customer
type decimalDelta struct {
	amount decimal.Decimal
}

func addDelta(deltas map[string]decimalDelta, customerCode string, amount decimal.Decimal) {
	delta, ok := deltas[customerCode]
	if !ok {
		delta = decimalDelta{amount: decimal.Zero}
	}
	delta.amount = delta.amount.Add(amount)
	deltas[customerCode] = delta
}

// encodeRaw keeps the original cell map verbatim for preview
func encodeRaw(raw map[string]string) string {
	data, _ := json.Marshal(raw)
	return string(data)
}

func batchSnapshot(batch *bulk.ImportBatch) string {
	data, _ := json.Marshal(map[string]interface{}{
		"status":         batch.Status,
		"total_rows":     batch.TotalRows,
		"committed_rows": batch.CommittedRows,
		"skipped_rows":   batch.SkippedRows,
		"error_rows":     batch.ErrorRows,
		"version":        batch.Version,
	})
	return string(data)
}
