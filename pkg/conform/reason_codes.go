package conform

// Reason codes are stable identifiers attached to report entries.
// They MUST NOT change between releases.
const (
	// A variant violates at least one constraint.
	ReasonConstraintViolated = "CONSTRAINT_VIOLATED"
	// No trace within the bound conforms to every constraint.
	ReasonContradictionDetected = "CONTRADICTION_DETECTED"
	// A bounded search ended without a definite answer.
	ReasonSearchBoundExhausted = "SEARCH_BOUND_EXHAUSTED"
	// A constraint was refused because it contradicted the admitted set.
	ReasonConstraintRejected = "CONSTRAINT_REJECTED"
)

// AllReasonCodes returns every defined reason code.
func AllReasonCodes() []string {
	return []string{
		ReasonConstraintViolated,
		ReasonContradictionDetected,
		ReasonSearchBoundExhausted,
		ReasonConstraintRejected,
	}
}
