package booking

// Outcome is the closed set of booking results. Only OutcomeError is a system fault.
type Outcome string

const (
	OutcomeMissingData    Outcome = "missing_data"
	OutcomeNoCollaborator Outcome = "no_collaborator"
	OutcomeConflict       Outcome = "conflict"
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeError          Outcome = "error"
)

type Result struct {
	Outcome        Outcome
	AppointmentID  string
	CollaboratorID string
	Reason         string

	// cause is the datastore failure behind OutcomeError. It is logged, never sent to callers.
	cause error
}

func result(o Outcome, reason string) Result {
	return Result{Outcome: o, Reason: reason}
}

// outcomeFor classifies a validator rejection.
func outcomeFor(v Verdict) Outcome {
	if v.Rule == RuleCollaborator {
		return OutcomeNoCollaborator
	}
	return OutcomeConflict
}
