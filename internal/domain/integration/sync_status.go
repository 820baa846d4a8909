package integration

// SyncStatus is the outcome of the last push of a local record
type SyncStatus string

const (
	// SyncStatusNotSynced means the record was never pushed
	SyncStatusNotSynced SyncStatus = "not_synced"
	// SyncStatusSucceeded means the last push succeeded
	SyncStatusSucceeded SyncStatus = "succeeded"
	// SyncStatusFailed means the last push failed; see the stored error text
	SyncStatusFailed SyncStatus = "failed"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusNotSynced, SyncStatusSucceeded, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// PaymentStatus is the collection state of a billed pay application
type PaymentStatus string

const (
	PaymentStatusSubmitted PaymentStatus = "submitted"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusPaid      PaymentStatus = "paid"
)

// IsValid returns true if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusSubmitted, PaymentStatusPartial, PaymentStatusPaid:
		return true
	default:
		return false
	}
}
