package compliance

// Result is the outcome of a compliance check.
type Result string

const (
	ResultAllowed           Result = "ALLOWED"
	ResultBlockedPDT        Result = "BLOCKED_PDT"
	ResultBlockedSettlement Result = "BLOCKED_SETTLEMENT"
	ResultBlockedFrequency  Result = "BLOCKED_FREQUENCY"
	ResultBlockedGFV        Result = "BLOCKED_GFV"
	ResultWarning           Result = "WARNING"
)

// Decision is the structured outcome of one compliance invocation. Policy
// blocks are values, never errors.
type Decision struct {
	Result     Result                 `json:"result"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CanProceed bool                   `json:"can_proceed"`
	// Degraded marks a fail-open ALLOWED taken after an upstream fault, so
	// it is distinguishable from a clean pass.
	Degraded bool `json:"degraded,omitempty"`
}

func allowed(message string) *Decision {
	return &Decision{Result: ResultAllowed, Message: message, CanProceed: true}
}

func allowedWith(message string, details map[string]interface{}) *Decision {
	return &Decision{Result: ResultAllowed, Message: message, Details: details, CanProceed: true}
}

func degraded(message string) *Decision {
	return &Decision{Result: ResultAllowed, Message: message, CanProceed: true, Degraded: true}
}

func warning(message string, details map[string]interface{}) *Decision {
	return &Decision{Result: ResultWarning, Message: message, Details: details, CanProceed: true}
}

func blocked(result Result, message string, details map[string]interface{}) *Decision {
	return &Decision{Result: result, Message: message, Details: details, CanProceed: false}
}
