package models

import "time"

// ConsentStatus is the lifecycle state of a visitor's cookie consent.
type ConsentStatus string

const (
	ConsentUndetermined ConsentStatus = "UNDETERMINED"
	ConsentDecided      ConsentStatus = "DECIDED"
)

// ConsentRecord holds the three cookie categories. Essential is always true
// in any record this service persists.
type ConsentRecord struct {
	Essential   bool `json:"essential"`
	Analytics   bool `json:"analytics"`
	Preferences bool `json:"preferences"`
}

// ConsentState is what the page shell needs to render the banner.
type ConsentState struct {
	Status     ConsentStatus  `json:"status"`
	Record     *ConsentRecord `json:"record,omitempty"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	ShowBanner bool           `json:"show_banner"`
}

// AnalyticsAllowed reports whether analytics cookies were granted.
func (s ConsentState) AnalyticsAllowed() bool {
	return s.Status == ConsentDecided && s.Record != nil && s.Record.Analytics
}
