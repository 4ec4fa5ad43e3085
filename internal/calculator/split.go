package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/teamtab/internal/money"
)

// Mode selects how a total is divided among participants.
type Mode int

const (
	// ModeManual uses amounts supplied per participant.
	ModeManual Mode = iota + 1
	// ModeEven divides the total equally, remainder to the last participant.
	ModeEven
	// ModeHybrid includes/excludes participants individually and then
	// applies Manual or Even to the included ones.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeEven:
		return "even"
	case ModeHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "manual", "even" or "hybrid" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return ModeManual, nil
	case "even":
		return ModeEven, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return 0, invalid("mode", "unknown split mode %q", s)
	}
}

// SplitRequest is the input of CalculateSplit.
type SplitRequest struct {
	Mode Mode

	// Total is required for Even. For Manual it may be zero, in which case
	// it is derived as the sum of Amounts.
	Total decimal.Decimal

	// Participants in stable order (team order). The last participant is
	// the even-split remainder holder.
	Participants []string

	// Selected is the inclusion set for ModeHybrid.
	Selected map[string]bool

	// HybridMode is ModeManual or ModeEven; used only by ModeHybrid.
	HybridMode Mode

	// Amounts are the per-participant amounts for manual allocation.
	Amounts map[string]decimal.Decimal
}

// SplitResult maps participants to allocated amounts. Zero allocations are
// pruned.
type SplitResult struct {
	Splits map[string]decimal.Decimal
	// Order lists the participants of Splits in request order.
	Order []string
	Total decimal.Decimal
	Sum   decimal.Decimal
}

// Difference is the amount not yet allocated.
func (r *SplitResult) Difference() decimal.Decimal {
	return r.Total.Sub(r.Sum)
}

// Balanced reports whether the splits add up to the total within one cent.
func (r *SplitResult) Balanced() bool {
	return money.Equal(r.Total, r.Sum)
}

// CalculateSplit divides a total among participants according to req.Mode.
//
// When the manual amounts do not add up to the total the result is still
// returned together with a *MismatchError, so the caller can show the
// unresolved difference.
func CalculateSplit(req SplitRequest) (*SplitResult, error) {
	participants, err := uniqueParticipants(req.Participants)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, invalid("participants", "must have at least one participant")
	}

	switch req.Mode {
	case ModeManual:
		return manualSplit(participants, req.Total, req.Amounts)
	case ModeEven:
		return evenSplit(participants, req.Total)
	case ModeHybrid:
		return hybridSplit(participants, req)
	default:
		return nil, invalid("mode", "unknown split mode %d", int(req.Mode))
	}
}

func hybridSplit(participants []string, req SplitRequest) (*SplitResult, error) {
	known := make(map[string]bool, len(participants))
	for _, p := range participants {
		known[p] = true
	}
	for id := range req.Selected {
		if !known[id] {
			return nil, &ReferenceError{Field: "selected", ParticipantID: id}
		}
	}

	var included []string
	for _, p := range participants {
		if req.Selected[p] {
			included = append(included, p)
		}
	}
	if len(included) == 0 {
		return nil, invalid("selected", "must select at least one participant")
	}

	switch req.HybridMode {
	case ModeManual:
		amounts := make(map[string]decimal.Decimal, len(included))
		for id, amount := range req.Amounts {
			if !known[id] {
				return nil, &ReferenceError{Field: "amounts", ParticipantID: id}
			}
			// Excluded participants always resolve to zero.
			if req.Selected[id] {
				amounts[id] = amount
			}
		}
		return manualSplit(included, req.Total, amounts)
	case ModeEven:
		return evenSplit(included, req.Total)
	default:
		return nil, invalid("hybrid_mode", "must be manual or even")
	}
}

func manualSplit(participants []string, total decimal.Decimal, amounts map[string]decimal.Decimal) (*SplitResult, error) {
	known := make(map[string]bool, len(participants))
	for _, p := range participants {
		known[p] = true
	}

	sum := decimal.Zero
	for id, amount := range amounts {
		if !known[id] {
			return nil, &ReferenceError{Field: "amounts", ParticipantID: id}
		}
		if amount.IsNegative() {
			return nil, invalid("amounts", "amount for %s must not be negative", id)
		}
		if err := checkCents("amounts", amount); err != nil {
			return nil, err
		}
		sum = sum.Add(amount)
	}
	if !sum.IsPositive() {
		return nil, invalid("amounts", "sum must be greater than zero")
	}

	if total.IsZero() {
		total = sum
	}
	if !total.IsPositive() {
		return nil, invalid("total", "must be greater than zero")
	}
	if err := checkCents("total", total); err != nil {
		return nil, err
	}

	result := &SplitResult{
		Splits: make(map[string]decimal.Decimal),
		Total:  total,
		Sum:    sum,
	}
	for _, p := range participants {
		if amount, ok := amounts[p]; ok && amount.IsPositive() {
			result.Splits[p] = amount
			result.Order = append(result.Order, p)
		}
	}

	if !result.Balanced() {
		return result, &MismatchError{Total: total, Sum: sum}
	}
	return result, nil
}

// evenSplit gives every participant round(total/n, 2) and lets the last
// participant absorb the rounding remainder so the sum is exact. If the
// remainder exceeds one cent it is spread one cent at a time from the last
// participant backwards, keeping max-min within one cent.
func evenSplit(participants []string, total decimal.Decimal) (*SplitResult, error) {
	if !total.IsPositive() {
		return nil, invalid("total", "must be greater than zero")
	}
	if err := checkCents("total", total); err != nil {
		return nil, err
	}

	n := decimal.NewFromInt(int64(len(participants)))
	base := total.DivRound(n, money.Places)

	shares := make([]decimal.Decimal, len(participants))
	for i := range shares {
		shares[i] = base
	}

	last := len(shares) - 1
	remainder := total.Sub(base.Mul(n))
	if remainder.Abs().LessThanOrEqual(money.Epsilon) {
		shares[last] = shares[last].Add(remainder)
	} else {
		step := money.Epsilon
		if remainder.IsNegative() {
			step = step.Neg()
		}
		for i := last; !remainder.IsZero(); i-- {
			shares[i] = shares[i].Add(step)
			remainder = remainder.Sub(step)
		}
	}

	result := &SplitResult{
		Splits: make(map[string]decimal.Decimal, len(participants)),
		Total:  total,
		Sum:    total,
	}
	for i, p := range participants {
		if shares[i].IsPositive() {
			result.Splits[p] = shares[i]
			result.Order = append(result.Order, p)
		}
	}
	return result, nil
}

func uniqueParticipants(participants []string) ([]string, error) {
	seen := make(map[string]bool, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if p == "" {
			return nil, invalid("participants", "participant id must not be empty")
		}
		if seen[p] {
			return nil, invalid("participants", "duplicate participant %s", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func checkCents(field string, d decimal.Decimal) error {
	if err := money.Check(d); err != nil {
		return invalid(field, "%v", err)
	}
	return nil
}
