// Package stats computes rolling fantasy averages from score history.
package stats

import (
	"math"
	"time"

	"ttfl_tracker/ingestion/internal/models"
)

const (
	recentGames = 15
	shortWindow = 10
	windowDays  = 30
)

// Round1 rounds half away from zero to one decimal
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

type accumulator struct {
	n      int
	sum15  int
	sum10  int
	sum30d int
	n30d   int
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return Round1(float64(sum) / float64(n))
}

// Compute derives the three rolling averages for every requested player in a
// single pass. history must be ordered by game date descending within each
// player and already exclude unplayed games. Players without history get zeros.
func Compute(history []models.ScoreHistoryRow, playerIDs []int, today time.Time) map[int]models.Averages {
	cutoff := today.AddDate(0, 0, -windowDays)

	accs := make(map[int]*accumulator, len(playerIDs))
	for _, id := range playerIDs {
		accs[id] = &accumulator{}
	}

	for _, row := range history {
		acc, ok := accs[row.PlayerID]
		if !ok {
			continue
		}
		acc.n++
		if acc.n <= recentGames {
			acc.sum15 += row.Score
		}
		if acc.n <= shortWindow {
			acc.sum10 += row.Score
		}
		if !row.GameDate.Before(cutoff) {
			acc.sum30d += row.Score
			acc.n30d++
		}
	}

	result := make(map[int]models.Averages, len(accs))
	for id, acc := range accs {
		result[id] = models.Averages{
			Last15:     mean(acc.sum15, min(acc.n, recentGames)),
			Last10:     mean(acc.sum10, min(acc.n, shortWindow)),
			Last30Days: mean(acc.sum30d, acc.n30d),
		}
	}
	return result
}
