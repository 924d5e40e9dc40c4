package feed

// Priority is a scheduling hint for a source.
//
// Priority orders dispatch when several sources come due on the same tick;
// it never preempts a running poll. Unknown values parse as
// [PriorityMedium].
type Priority string

const (
	// PriorityHigh sources are dispatched first when due.
	PriorityHigh Priority = "high"

	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"

	// PriorityLow sources are dispatched last when due.
	PriorityLow Priority = "low"
)

// ParsePriority maps a string to a [Priority], defaulting to medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Weight returns the dispatch order of the priority; lower fires first.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// String returns the string representation of the priority.
// This implements the fmt.Stringer interface.
func (p Priority) String() string {
	return string(p)
}
