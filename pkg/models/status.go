package models

// ApplicationStatus is the single canonical lifecycle stage of a job
type ApplicationStatus string

const (
	StatusQueued        ApplicationStatus = "QUEUED"
	StatusAnalyzing     ApplicationStatus = "ANALYZING"
	StatusTailoring     ApplicationStatus = "TAILORING"
	StatusPrefilling    ApplicationStatus = "PREFILLING"
	StatusPendingReview ApplicationStatus = "PENDING_REVIEW"
	StatusApplied       ApplicationStatus = "APPLIED"
	StatusInterview     ApplicationStatus = "INTERVIEW"
	StatusRejected      ApplicationStatus = "REJECTED"
)

// AllStatuses lists every status in pipeline order
var AllStatuses = []ApplicationStatus{
	StatusQueued,
	StatusAnalyzing,
	StatusTailoring,
	StatusPrefilling,
	StatusPendingReview,
	StatusApplied,
	StatusInterview,
	StatusRejected,
}

// forward holds the normal-path transitions. REJECTED is handled separately.
var forward = map[ApplicationStatus]ApplicationStatus{
	StatusQueued:        StatusAnalyzing,
	StatusAnalyzing:     StatusTailoring,
	StatusTailoring:     StatusPrefilling,
	StatusPrefilling:    StatusPendingReview,
	StatusPendingReview: StatusApplied,
	StatusApplied:       StatusInterview,
}

// Valid reports whether s is a known status
func (s ApplicationStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether automation is finished with the job.
// APPLIED and INTERVIEW are terminal here because interview scheduling happens elsewhere.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApplied || s == StatusInterview || s == StatusRejected
}

// IsActive reports whether the job occupies an automation session
func (s ApplicationStatus) IsActive() bool {
	return s == StatusAnalyzing || s == StatusTailoring || s == StatusPrefilling
}

// Next returns the normal-path successor of s
func (s ApplicationStatus) Next() (ApplicationStatus, bool) {
	next, ok := forward[s]
	return next, ok
}

// CanTransition reports whether moving from s to to is allowed.
// APPLIED -> INTERVIEW is the only move out of a terminal state.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	if to == StatusRejected {
		return !s.IsTerminal()
	}
	next, ok := forward[s]
	return ok && next == to
}
