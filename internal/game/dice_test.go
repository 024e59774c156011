package game

import "testing"

func TestDiceRollRange(t *testing.T) {
	d := NewDiceDuel([2]string{"p1", "p2"})
	for i := 0; i < 100; i++ {
		roll := d.Roll("p1")
		if roll < 0 || roll >= 100 {
			t.Fatalf("Roll out of range: %v", roll)
		}
	}
}

func TestScoreRoundPicksHigherRoll(t *testing.T) {
	d := NewDiceDuel([2]string{"p1", "p2"})

	d.Rolls["p1"] = []float64{70.25}
	d.Rolls["p2"] = []float64{12.50}
	if w := d.ScoreRound(); w != "p1" {
		t.Errorf("Expected p1 to take the round, got %q", w)
	}
	if d.Wins["p1"] != 1 {
		t.Errorf("Round win not recorded: %v", d.Wins)
	}

	// Tied round credits nobody
	d.Rolls["p1"] = append(d.Rolls["p1"], 50.0)
	d.Rolls["p2"] = append(d.Rolls["p2"], 50.0)
	if w := d.ScoreRound(); w != "" {
		t.Errorf("Tied round credited %q", w)
	}
}

func TestScoreRoundWaitsForBothRolls(t *testing.T) {
	d := NewDiceDuel([2]string{"p1", "p2"})
	d.Roll("p1")
	if d.RoundDone() {
		t.Errorf("Round reported done after one roll")
	}
	if w := d.ScoreRound(); w != "" {
		t.Errorf("Incomplete round scored: %q", w)
	}
}

func TestWinnerNeedsMajority(t *testing.T) {
	d := NewDiceDuel([2]string{"p1", "p2"})
	if w := d.Winner(); w != "" {
		t.Errorf("Fresh duel has winner %q", w)
	}

	d.Wins["p1"] = 1
	if w := d.Winner(); w != "" {
		t.Errorf("One round win declared winner %q", w)
	}

	d.Wins["p1"] = 2
	if w := d.Winner(); w != "p1" {
		t.Errorf("Majority holder not declared, got %q", w)
	}
}
