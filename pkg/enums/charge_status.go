package enums

// ChargeStatus mirrors the payment provider's charge lifecycle.
type ChargeStatus string

const (
	ChargeStatusRequiresPaymentMethod ChargeStatus = "requires_payment_method"
	ChargeStatusRequiresConfirmation  ChargeStatus = "requires_confirmation"
	ChargeStatusRequiresAction        ChargeStatus = "requires_action"
	ChargeStatusProcessing            ChargeStatus = "processing"
	ChargeStatusRequiresCapture       ChargeStatus = "requires_capture"
	ChargeStatusCanceled              ChargeStatus = "canceled"
	ChargeStatusSucceeded             ChargeStatus = "succeeded"
)

var validChargeStatuses = []ChargeStatus{
	ChargeStatusRequiresPaymentMethod,
	ChargeStatusRequiresConfirmation,
	ChargeStatusRequiresAction,
	ChargeStatusProcessing,
	ChargeStatusRequiresCapture,
	ChargeStatusCanceled,
	ChargeStatusSucceeded,
}

// String implements fmt.Stringer.
func (c ChargeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChargeStatus.
func (c ChargeStatus) IsValid() bool {
	return isOneOf(validChargeStatuses, c)
}

// ParseChargeStatus converts raw input into a ChargeStatus.
func ParseChargeStatus(value string) (ChargeStatus, error) {
	return parseOneOf(validChargeStatuses, value, "charge status")
}

// IsSuccess reports whether the provider considers the funds captured.
func (c ChargeStatus) IsSuccess() bool {
	return c == ChargeStatusSucceeded
}
