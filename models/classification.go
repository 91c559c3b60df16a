package models

import "time"

// ClassificationResult represents the outcome of one classifier run
type ClassificationResult struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	Since        time.Time      `json:"since"`
	Scanned      int            `json:"scanned"`
	Updated      int            `json:"updated"`
	NewlyFlagged int            `json:"newly_flagged"`
	Cleared      int            `json:"cleared"`
	Kinds        map[string]int `json:"kinds"`
	Duration     time.Duration  `json:"duration_ns"`
}
