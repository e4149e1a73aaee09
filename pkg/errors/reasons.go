package errors

// Reason is the stable domain classification carried by funding errors.
type Reason string

const (
	ReasonInvalidAmount        Reason = "INVALID_AMOUNT"
	ReasonNotFound             Reason = "NOT_FOUND"
	ReasonDuplicateTransaction Reason = "DUPLICATE_TRANSACTION"
	ReasonForbidden            Reason = "FORBIDDEN"
	ReasonNotOwner             Reason = "NOT_OWNER"
	ReasonGoalNotReached       Reason = "GOAL_NOT_REACHED"
	ReasonAlreadyRequested     Reason = "ALREADY_REQUESTED"
	ReasonMissingDestination   Reason = "MISSING_DESTINATION"
	ReasonInvalidState         Reason = "INVALID_STATE"
	ReasonNothingToPayout      Reason = "NOTHING_TO_PAYOUT"
	ReasonProviderUnavailable  Reason = "PROVIDER_UNAVAILABLE"
)

var codeByReason = map[Reason]Code{
	ReasonInvalidAmount:        CodeValidation,
	ReasonNotFound:             CodeNotFound,
	ReasonDuplicateTransaction: CodeConflict,
	ReasonForbidden:            CodeForbidden,
	ReasonNotOwner:             CodeForbidden,
	ReasonGoalNotReached:       CodeStateConflict,
	ReasonAlreadyRequested:     CodeConflict,
	ReasonMissingDestination:   CodeStateConflict,
	ReasonInvalidState:         CodeStateConflict,
	ReasonNothingToPayout:      CodeStateConflict,
	ReasonProviderUnavailable:  CodeDependency,
}

// Code maps a reason onto its transport code.
func (r Reason) Code() Code {
	if code, ok := codeByReason[r]; ok {
		return code
	}
	return CodeInternal
}

// Sentinels for errors.Is checks. Never return these directly; use Newf so
// call sites carry their own message.
var (
	ErrInvalidAmount        = &Error{code: CodeValidation, reason: ReasonInvalidAmount, message: "amount below platform minimum"}
	ErrNotFound             = &Error{code: CodeNotFound, reason: ReasonNotFound, message: "resource not found"}
	ErrDuplicateTransaction = &Error{code: CodeConflict, reason: ReasonDuplicateTransaction, message: "transaction already recorded"}
	ErrForbidden            = &Error{code: CodeForbidden, reason: ReasonForbidden, message: "access denied"}
	ErrNotOwner             = &Error{code: CodeForbidden, reason: ReasonNotOwner, message: "caller does not own the project"}
	ErrGoalNotReached       = &Error{code: CodeStateConflict, reason: ReasonGoalNotReached, message: "funding goal not reached"}
	ErrAlreadyRequested     = &Error{code: CodeConflict, reason: ReasonAlreadyRequested, message: "payout already requested"}
	ErrMissingDestination   = &Error{code: CodeStateConflict, reason: ReasonMissingDestination, message: "payout destination missing"}
	ErrInvalidState         = &Error{code: CodeStateConflict, reason: ReasonInvalidState, message: "invalid payout state"}
	ErrNothingToPayout      = &Error{code: CodeStateConflict, reason: ReasonNothingToPayout, message: "nothing collected to pay out"}
	ErrProviderUnavailable  = &Error{code: CodeDependency, reason: ReasonProviderUnavailable, message: "payment provider unavailable"}
)
