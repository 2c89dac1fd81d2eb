package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the deterministic identity of one scoring input: company,
// period, the sorted transaction ids with their amounts, and every piece of
// configuration that changes the outcome (threshold table version, detector
// thresholds). Identical datasets hash identically regardless of the order
// transactions arrive in.
func Fingerprint(req ScoreRequest) string {
	table := req.Config
	if table == nil {
		table = defaultTable()
	}

	lines := make([]string, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		lines = append(lines, t.ID+"="+t.Amount.String())
	}
	sort.Strings(lines)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d|%s|%v|",
		req.CompanyID,
		req.PeriodStart.UTC().Unix(),
		req.PeriodEnd.UTC().Unix(),
		table.Version,
		req.Anomaly.Normalized(),
	)
	b.WriteString(strings.Join(lines, ";"))

	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
