package domain

// WorkloadLevel classifies a technician's current load.
type WorkloadLevel string

const (
	WorkloadAvailable  WorkloadLevel = "AVAILABLE"
	WorkloadNormal     WorkloadLevel = "NORMAL"
	WorkloadBusy       WorkloadLevel = "BUSY"
	WorkloadOverloaded WorkloadLevel = "OVERLOADED"
)

// ClassifyWorkload buckets an active-assignment count.
func ClassifyWorkload(activeAssignments int) WorkloadLevel {
	switch {
	case activeAssignments <= 0:
		return WorkloadAvailable
	case activeAssignments <= 2:
		return WorkloadNormal
	case activeAssignments < TechnicianDailyCapacity:
		return WorkloadBusy
	default:
		return WorkloadOverloaded
	}
}

// WorkloadPercentage expresses an active count against the fixed capacity.
func WorkloadPercentage(activeAssignments int) float64 {
	return float64(activeAssignments) / float64(TechnicianDailyCapacity) * 100
}
