package models

import "strings"

// Normalized injury statuses
const (
	InjuryOut          = "Out"
	InjuryDayToDay     = "Day-To-Day"
	InjuryQuestionable = "Questionable"
)

// InjuryReportInput is one entry of the scraped injury feed
type InjuryReportInput struct {
	Name       string `json:"name"`
	Team       string `json:"team"`
	Status     string `json:"status"`
	ReturnDate string `json:"return_date"`
	Details    string `json:"details"`
}

// InjuryReport is a normalized injury feed entry
type InjuryReport struct {
	Name       string
	Team       string
	Status     string
	ReturnDate string
	Details    string
}

// NormalizeInjuryStatus maps free-text statuses onto the stored vocabulary
func NormalizeInjuryStatus(status string) string {
	lower := strings.ToLower(strings.TrimSpace(status))
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "out"):
		return InjuryOut
	case strings.Contains(lower, "day"):
		return InjuryDayToDay
	case strings.Contains(lower, "question"):
		return InjuryQuestionable
	default:
		return strings.TrimSpace(status)
	}
}

// ToInjuryReport normalizes a feed entry. Details that merely repeat the
// status text carry no information and are dropped.
func (in *InjuryReportInput) ToInjuryReport() InjuryReport {
	status := NormalizeInjuryStatus(in.Status)
	details := strings.TrimSpace(in.Details)
	if strings.EqualFold(details, strings.TrimSpace(in.Status)) || strings.EqualFold(details, status) {
		details = ""
	}

	return InjuryReport{
		Name:       strings.TrimSpace(in.Name),
		Team:       strings.TrimSpace(in.Team),
		Status:     status,
		ReturnDate: strings.TrimSpace(in.ReturnDate),
		Details:    details,
	}
}

// ToInjury converts the report to the stored injury fields
func (r InjuryReport) ToInjury() Injury {
	return Injury{
		Status:     nullString(r.Status),
		ReturnDate: nullString(r.ReturnDate),
		Details:    nullString(r.Details),
	}
}
