package enums

// PayoutStatus is the withdrawal approval state of a project.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusRequested PayoutStatus = "requested"
	PayoutStatusConfirmed PayoutStatus = "confirmed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusRequested,
	PayoutStatusConfirmed,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	return isOneOf(validPayoutStatuses, p)
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	return parseOneOf(validPayoutStatuses, value, "payout status")
}
