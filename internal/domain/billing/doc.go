// Package billing provides domain models for construction progress billing.
//
// Key Aggregates:
//   - Project: a construction engagement, linked to a remote customer and job
//   - Company: a customer, vendor or subcontractor
//   - PayApplication: one periodic progress billing of a project
//   - ChangeOrder: an amendment to a project's contract
//
// Billing invariants (pure, per project):
//   - Renumber: gapless sequence numbers in creation order
//   - RecomputeDeltas: previous payments equal the prior earned-less-retainage
//   - ClassifyRetainageBilling: detect pay applications that release retainage
//
// The billing domain integrates with:
//   - Integration domain: remote ids, sync and payment status
package billing
