package page

// FormState is where a form is in its submission lifecycle
type FormState int

const (
	StateIdle FormState = iota
	StateValidating
	StateBlocked // last submit was rejected on the page
	StateSubmitting
)

func (s FormState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateBlocked:
		return "blocked"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}
