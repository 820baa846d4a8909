package billing

import (
	"sort"
	"time"

	"github.com/flocon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RetainageTolerance is the largest difference between a payment and the
// retainage held before it for the payment to count as a retainage billing
var RetainageTolerance = decimal.NewFromInt(1)

// Sequenced is a record numbered per group (project) in creation order
type Sequenced interface {
	GroupID() uuid.UUID
	Created() time.Time
	RecordID() uuid.UUID
	Sequence() int
	SetSequence(seq int)
}

// groupBy partitions records per group, preserving input order within a
// group, and returns the group ids in first-seen order
func groupBy[T Sequenced](records []T) ([]uuid.UUID, map[uuid.UUID][]T) {
	groups := make(map[uuid.UUID][]T)
	var order []uuid.UUID
	for _, r := range records {
		id := r.GroupID()
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], r)
	}
	return order, groups
}

// Renumber assigns 1..N per group in creation order (record id breaks ties)
// and returns the records whose number changed. Every record passed in is
// numbered, soft-deleted ones included.
func Renumber[T Sequenced](records []T) []T {
	order, groups := groupBy(records)
	var changed []T
	for _, id := range order {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			ci, cj := group[i].Created(), group[j].Created()
			if !ci.Equal(cj) {
				return ci.Before(cj)
			}
			return group[i].RecordID().String() < group[j].RecordID().String()
		})
		for i, r := range group {
			if r.Sequence() != i+1 {
				r.SetSequence(i + 1)
				changed = append(changed, r)
			}
		}
	}
	return changed
}

// sortBySequence orders one project's pay applications by sequence number,
// creation time breaking ties
func sortBySequence(apps []*PayApplication) {
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].SequenceNumber != apps[j].SequenceNumber {
			return apps[i].SequenceNumber < apps[j].SequenceNumber
		}
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})
}

// RecomputeDeltas sets PreviousPayments per project: zero for the first pay
// application, the prior one's EarnedLessRetainage (rounded to cents) for the
// rest. It returns the pay applications whose value changed.
func RecomputeDeltas(apps []*PayApplication) []*PayApplication {
	order, groups := groupBy(apps)
	var changed []*PayApplication
	for _, id := range order {
		group := groups[id]
		sortBySequence(group)
		for i, app := range group {
			want := decimal.Zero
			if i > 0 {
				want = valueobject.RoundCents(group[i-1].EarnedLessRetainage)
			}
			if !app.PreviousPayments.Equal(want) {
				app.PreviousPayments = want
				changed = append(changed, app)
			}
		}
	}
	return changed
}

// IsRetainageBilling decides whether app releases retainage held earlier:
// it withholds no new retainage and its payment due is within
// RetainageTolerance of priorRetainage, which must be positive.
func IsRetainageBilling(app *PayApplication, priorRetainage decimal.Decimal) bool {
	if !app.RetainageThisPeriod.IsZero() || !priorRetainage.IsPositive() {
		return false
	}
	return valueobject.WithinTolerance(app.CurrentPaymentDue, priorRetainage, RetainageTolerance)
}

// ClassifyRetainageBilling recomputes IsRetainageBilling per project in
// sequence order. The prior retainage of a pay application is the sum of
// RetainageThisPeriod over the earlier pay applications that are not
// themselves retainage billings. It returns the pay applications whose flag
// changed.
func ClassifyRetainageBilling(apps []*PayApplication) []*PayApplication {
	order, groups := groupBy(apps)
	var changed []*PayApplication
	for _, id := range order {
		group := groups[id]
		sortBySequence(group)
		held := decimal.Zero
		for _, app := range group {
			flag := IsRetainageBilling(app, held)
			if flag != app.IsRetainageBilling {
				app.IsRetainageBilling = flag
				changed = append(changed, app)
			}
			if !flag {
				held = held.Add(app.RetainageThisPeriod)
			}
		}
	}
	return changed
}

// NormalizeAmounts rounds the money fields of every pay application and
// returns the ones that changed
func NormalizeAmounts(apps []*PayApplication) []*PayApplication {
	var changed []*PayApplication
	for _, app := range apps {
		if app.NormalizeAmounts() {
			changed = append(changed, app)
		}
	}
	return changed
}
