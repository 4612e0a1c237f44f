package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// NextSequence returns the sequence number that follows the highest one
// already allocated for a prefix/year. Gaps left by deleted records are
// tolerated and never reused.
func NextSequence(existingMax int64) int64 {
	if existingMax < 0 {
		existingMax = 0
	}
	return existingMax + 1
}

var seqToken = regexp.MustCompile(`\{seq(?::(\d+))?\}`)

// BuildRegNo expands a registration-number template such as
// "INC-{year}-{seq:04}" into a concrete identifier.
func BuildRegNo(format string, year int, seq int64) string {
	if strings.TrimSpace(format) == "" {
		format = "INC-{year}-{seq:04}"
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	out = seqToken.ReplaceAllStringFunc(out, func(token string) string {
		m := seqToken.FindStringSubmatch(token)
		if len(m) == 2 && m[1] != "" {
			width := 0
			_, _ = fmt.Sscanf(m[1], "%d", &width)
			if width > 0 {
				return fmt.Sprintf("%0*d", width, seq)
			}
		}
		return fmt.Sprintf("%d", seq)
	})
	return out
}

// nextSeqTx allocates the next sequence for a prefix/year inside tx. The
// counter row keeps the highest value ever handed out, so deleting records
// never frees a number.
func nextSeqTx(ctx context.Context, tx *sql.Tx, prefix string, year int) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO reg_counters(prefix, year, seq)
		VALUES(?,?,1)
		ON CONFLICT (prefix, year)
		DO UPDATE SET seq = reg_counters.seq + 1
		RETURNING seq
	`, prefix, year).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
