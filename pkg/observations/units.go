package observations

// MMAsCM converts millimetres to centimetres.
func MMAsCM(mm float64) float64 {
	return mm / 10
}

// MMAsM converts millimetres to metres.
func MMAsM(mm float64) float64 {
	return mm / 1000
}

// Rangify returns the integers around v offered in count pickers: from
// max(v-5, 1) up to but excluding max(v+5, 10).
func Rangify(v int) []int {
	lo, hi := max(v-5, 1), max(v+5, 10)
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// Presence values used by na/absent/present fields.
const (
	PresenceNA      = "na"
	PresenceAbsent  = "absent"
	PresencePresent = "present"
)

// PresenceLabel renders a presence value.
func PresenceLabel(v string) string {
	switch v {
	case PresencePresent:
		return "Confirmed present"
	case PresenceAbsent:
		return "Confirmed absent"
	default:
		return "NA"
	}
}
