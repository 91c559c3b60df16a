package models

// AnomalyFlags are the review flags attached to a stored audit record
type AnomalyFlags struct {
	FlaggedForReview   bool `json:"flagged_for_review" db:"flagged_for_review"`
	XSSDetected        bool `json:"xss_patterns_detected" db:"xss_patterns_detected"`
	SQLInjectionFound  bool `json:"sql_injection_patterns_detected" db:"sql_injection_patterns_detected"`
	TraversalDetected  bool `json:"directory_traversal_detected" db:"directory_traversal_detected"`
	ExcessiveFailures  bool `json:"excessive_failed_logins" db:"excessive_failed_logins"`
	ExcessiveFrequency bool `json:"excessive_request_frequency" db:"excessive_request_frequency"`
}

// Any reports whether at least one anomaly was detected
func (f AnomalyFlags) Any() bool {
	return f.XSSDetected || f.SQLInjectionFound || f.TraversalDetected || f.ExcessiveFailures || f.ExcessiveFrequency
}

// Kinds returns the names of the detected anomalies
func (f AnomalyFlags) Kinds() []string {
	var kinds []string
	if f.XSSDetected {
		kinds = append(kinds, "xss")
	}
	if f.SQLInjectionFound {
		kinds = append(kinds, "sql_injection")
	}
	if f.TraversalDetected {
		kinds = append(kinds, "directory_traversal")
	}
	if f.ExcessiveFailures {
		kinds = append(kinds, "excessive_failed_logins")
	}
	if f.ExcessiveFrequency {
		kinds = append(kinds, "excessive_frequency")
	}
	return kinds
}

// Normalize sets FlaggedForReview from the individual detections
func (f AnomalyFlags) Normalize() AnomalyFlags {
	f.FlaggedForReview = f.Any()
	return f
}
