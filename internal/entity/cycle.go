package entity

import "time"

// CycleSummary condenses one completed sync cycle for streaming consumers.
// String fields avoid precision issues when rendered in UI layers.
type CycleSummary struct {
	Timestamp       time.Time `json:"ts"`
	Instance        string    `json:"instance"`
	Block           uint64    `json:"block"`
	Borrowers       int       `json:"borrowers"`
	RiskiestPercent string    `json:"riskiest_percent,omitempty"`
}

// CycleSummaryRecord bundles a summary with the journal index it originated from.
type CycleSummaryRecord struct {
	Index   uint64
	Summary CycleSummary
}
