// Package scoring computes the TTFL composite fantasy score.
package scoring

import "ttfl_tracker/ingestion/internal/models"

// Calculate returns the composite score of a stat line: every positive
// contribution minus turnovers and each category of missed shots.
// The result is not floored and may be negative.
func Calculate(line models.StatLine) int {
	positive := line.Points + line.Rebounds + line.Assists + line.Steals + line.Blocks +
		line.FGM + line.FG3M + line.FTM

	missedFG := line.FGA - line.FGM
	missed3PT := line.FG3A - line.FG3M
	missedFT := line.FTA - line.FTM

	negative := line.Turnovers + missedFG + missed3PT + missedFT

	return positive - negative
}
