package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// GameLogDateLayout is the date format used by player game logs ("Jan 15, 2025")
const GameLogDateLayout = "Jan 02, 2006"

// StatLine is one player's counting stats for one game
type StatLine struct {
	Points    int
	Rebounds  int
	Assists   int
	Steals    int
	Blocks    int
	Turnovers int
	FGM       int
	FGA       int
	FG3M      int
	FG3A      int
	FTM       int
	FTA       int
}

// Minutes decodes the provider's minutes field, which arrives either as
// "MM:SS", a bare number, or null.
type Minutes struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Minutes) UnmarshalJSON(data []byte) error {
	*m = Minutes{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode minutes: %w", err)
		}
		v, ok := ParseMinutes(s)
		*m = Minutes{Value: v, Valid: ok}
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to decode minutes: %w", err)
	}
	*m = Minutes{Value: int(f), Valid: true}
	return nil
}

// ParseMinutes parses "MM:SS", "PT32M15.00S" or a plain number into whole minutes.
// Seconds are truncated.
func ParseMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if strings.HasPrefix(s, "PT") {
		rest := strings.TrimPrefix(s, "PT")
		idx := strings.Index(rest, "M")
		if idx < 0 {
			return 0, false
		}
		v, err := strconv.Atoi(rest[:idx])
		if err != nil {
			return 0, false
		}
		return v, true
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		v, err := strconv.Atoi(s[:idx])
		if err != nil {
			return 0, false
		}
		return v, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

// statFields are the counting stats shared by box score and game log rows.
// Absent fields decode to nil and are treated as 0.
type statFields struct {
	PTS  *int `json:"PTS"`
	REB  *int `json:"REB"`
	AST  *int `json:"AST"`
	STL  *int `json:"STL"`
	BLK  *int `json:"BLK"`
	TOV  *int `json:"TOV"`
	FGM  *int `json:"FGM"`
	FGA  *int `json:"FGA"`
	FG3M *int `json:"FG3M"`
	FG3A *int `json:"FG3A"`
	FTM  *int `json:"FTM"`
	FTA  *int `json:"FTA"`
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// ToStatLine converts decoded stat fields into a StatLine
func (sf statFields) ToStatLine() StatLine {
	return StatLine{
		Points:    intOrZero(sf.PTS),
		Rebounds:  intOrZero(sf.REB),
		Assists:   intOrZero(sf.AST),
		Steals:    intOrZero(sf.STL),
		Blocks:    intOrZero(sf.BLK),
		Turnovers: intOrZero(sf.TOV),
		FGM:       intOrZero(sf.FGM),
		FGA:       intOrZero(sf.FGA),
		FG3M:      intOrZero(sf.FG3M),
		FG3A:      intOrZero(sf.FG3A),
		FTM:       intOrZero(sf.FTM),
		FTA:       intOrZero(sf.FTA),
	}
}

// BoxScoreLineInput is one player row of a game's box score
type BoxScoreLineInput struct {
	GameID   string  `json:"GAME_ID"`
	TeamID   int     `json:"TEAM_ID"`
	PlayerID int     `json:"PLAYER_ID"`
	Player   string  `json:"PLAYER_NAME"`
	Minutes  Minutes `json:"MIN"`
	statFields
}

// GameLogInput is one game of a player's season game log
type GameLogInput struct {
	GameID   string  `json:"Game_ID"`
	GameDate string  `json:"GAME_DATE"`
	Matchup  string  `json:"MATCHUP"`
	Minutes  Minutes `json:"MIN"`
	statFields
}

// Date parses GameDate ("Jan 15, 2025")
func (gl *GameLogInput) Date() (time.Time, error) {
	d, err := time.Parse(GameLogDateLayout, strings.TrimSpace(gl.GameDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse game log date %q: %w", gl.GameDate, err)
	}
	return d, nil
}
