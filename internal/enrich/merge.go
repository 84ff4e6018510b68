package enrich

import (
	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
)

// MergePhones computes the new values of a row's phone cells given the
// directory phones for its identifier. existing holds the current cell
// values in column order; slots is the number of phone columns. The
// returned slice always has length slots. The bool reports whether any
// directory phone was written.
//
// Overwrite discards the current cells. Append keeps current cells in
// place and fills empty cells left to right with directory phones the row
// does not already have (compared by digit form). Ignore writes only when
// every current cell is empty.
func MergePhones(existing, incoming []string, slots int, strategy model.Strategy) ([]string, bool) {
	if slots <= 0 {
		return nil, false
	}

	out := make([]string, slots)

	switch strategy {
	case model.StrategyOverwrite:
		n := copy(out, incoming)
		return out, n > 0

	case model.StrategyIgnore:
		if hasAny(existing) {
			copy(out, existing)
			return out, false
		}
		n := copy(out, incoming)
		return out, n > 0

	case model.StrategyAppend:
		copy(out, existing)

		have := make(map[string]struct{}, slots)
		for _, cell := range out {
			if d := normalize.Digits(cell); d != "" {
				have[d] = struct{}{}
			}
		}

		wrote := false
		next := 0
		for _, phone := range incoming {
			d := normalize.Digits(phone)
			if d == "" {
				continue
			}
			if _, dup := have[d]; dup {
				continue
			}
			for next < slots && out[next] != "" {
				next++
			}
			if next >= slots {
				break
			}
			out[next] = phone
			have[d] = struct{}{}
			wrote = true
		}
		return out, wrote

	default:
		copy(out, existing)
		return out, false
	}
}

func hasAny(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return true
		}
	}
	return false
}
