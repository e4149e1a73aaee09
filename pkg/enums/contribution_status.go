package enums

// ContributionStatus tracks a pledge from checkout to settlement.
type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "pending"
	ContributionStatusPaid      ContributionStatus = "paid"
	ContributionStatusCancelled ContributionStatus = "cancelled"
)

var validContributionStatuses = []ContributionStatus{
	ContributionStatusPending,
	ContributionStatusPaid,
	ContributionStatusCancelled,
}

// String implements fmt.Stringer.
func (c ContributionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ContributionStatus.
func (c ContributionStatus) IsValid() bool {
	return isOneOf(validContributionStatuses, c)
}

// ParseContributionStatus converts raw input into a ContributionStatus.
func ParseContributionStatus(value string) (ContributionStatus, error) {
	return parseOneOf(validContributionStatuses, value, "contribution status")
}

// IsTerminal reports whether no further transition is allowed.
func (c ContributionStatus) IsTerminal() bool {
	return c == ContributionStatusPaid || c == ContributionStatusCancelled
}
