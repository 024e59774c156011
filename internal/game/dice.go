package game

import "math/rand"

// DiceDuelRounds is the default best-of for a dice duel.
const DiceDuelRounds = 3

// DiceDuel is a best-of-N high-roll duel. Each round both players roll a
// value in [0, 100) (two decimal places, the portal's roll scale); the higher
// roll takes the round.
type DiceDuel struct {
	BestOf int                  `json:"bestOf"`
	Rolls  map[string][]float64 `json:"rolls"`
	Wins   map[string]int       `json:"wins"`
}

// NewDiceDuel sets up an empty duel for the two players.
func NewDiceDuel(players [2]string) *DiceDuel {
	d := &DiceDuel{
		BestOf: DiceDuelRounds,
		Rolls:  make(map[string][]float64, 2),
		Wins:   make(map[string]int, 2),
	}
	for _, p := range players {
		d.Rolls[p] = []float64{}
		d.Wins[p] = 0
	}
	return d
}

// Roll records a roll for player and returns it. Outcomes are client-trusted,
// like every other RNG in the portal.
func (d *DiceDuel) Roll(player string) float64 {
	roll := float64(int(rand.Float64()*10000)) / 100
	d.Rolls[player] = append(d.Rolls[player], roll)
	return roll
}

// RoundDone reports whether both players have rolled in the current round.
func (d *DiceDuel) RoundDone() bool {
	var counts []int
	for _, rolls := range d.Rolls {
		counts = append(counts, len(rolls))
	}
	if len(counts) != 2 {
		return false
	}
	return counts[0] == counts[1] && counts[0] > 0
}

// ScoreRound credits the latest round to its higher roller and returns the
// winner ("" for a tied round).
func (d *DiceDuel) ScoreRound() string {
	if !d.RoundDone() {
		return ""
	}
	var best string
	var bestRoll float64 = -1
	tied := false
	for p, rolls := range d.Rolls {
		r := rolls[len(rolls)-1]
		switch {
		case r > bestRoll:
			best, bestRoll, tied = p, r, false
		case r == bestRoll:
			tied = true
		}
	}
	if tied {
		return ""
	}
	d.Wins[best]++
	return best
}

// Winner returns the player holding a majority of rounds, or "" while the
// duel is still open.
func (d *DiceDuel) Winner() string {
	need := d.BestOf/2 + 1
	for p, w := range d.Wins {
		if w >= need {
			return p
		}
	}
	return ""
}
