package scheduling

// CanTransition is the single source of truth for appointment status
// legality. Every mutation path (doctor status update, patient cancel, admin
// cancel, treatment auto-complete, doctor cascade) must consult it rather
// than re-deriving the rule inline.
func CanTransition(from, to AppointmentStatus) bool {
	if from != StatusBooked {
		return false
	}
	return to == StatusCompleted || to == StatusCancelled
}

// IsTerminal reports whether no further transition is permitted from s.
func IsTerminal(s AppointmentStatus) bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ValidStatus(s AppointmentStatus) bool {
	switch s {
	case StatusBooked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
