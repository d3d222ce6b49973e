package document

// RiskLevel is the category derived from the 5x5 risk matrix.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Score multiplies severity by likelihood on the 5x5 matrix.
func Score(severity, likelihood int) int {
	return severity * likelihood
}

// LevelForScore maps a matrix score to its category: >=15 HIGH, >=9 MEDIUM,
// otherwise LOW.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 15:
		return RiskHigh
	case score >= 9:
		return RiskMedium
	default:
		return RiskLow
	}
}
