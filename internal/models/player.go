package models

import "database/sql"

// Player represents an NBA player tracked for fantasy scoring
type Player struct {
	ID         int    `db:"id"`
	ExternalID int    `db:"nba_player_id"`
	Name       string `db:"name"`
	TeamID     int    `db:"team_id"`
	IsActive   bool   `db:"is_active"`

	Injury
}

// Injury is the mutable injury state stored on a player row.
// All three fields are null when the player is healthy.
type Injury struct {
	Status     sql.NullString `db:"injury_status"`
	ReturnDate sql.NullString `db:"injury_return_date"`
	Details    sql.NullString `db:"injury_details"`
}

// HasInjury reports whether any injury field is set
func (i Injury) HasInjury() bool {
	return i.Status.Valid || i.ReturnDate.Valid || i.Details.Valid
}

// Equal compares two injury states field by field
func (i Injury) Equal(other Injury) bool {
	return i.Status == other.Status &&
		i.ReturnDate == other.ReturnDate &&
		i.Details == other.Details
}

// nullString maps "" to a null value
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// stringPtr exposes a nullable string for JSON responses
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// InjuryView is the JSON shape of an injury on read paths
type InjuryView struct {
	Status     *string `json:"injury_status"`
	ReturnDate *string `json:"injury_return_date"`
	Details    *string `json:"injury_details"`
}

// View converts the stored injury to its JSON shape
func (i Injury) View() InjuryView {
	return InjuryView{
		Status:     stringPtr(i.Status),
		ReturnDate: stringPtr(i.ReturnDate),
		Details:    stringPtr(i.Details),
	}
}
