package match

import "time"

// ComputeMatchStats aggregates the completed legs into per-player totals.
// Every visit counts as 3 darts except a leg winner's final visit, which counts the recorded
// checkout darts. Leg counts come from the live player records, not from legs.
func ComputeMatchStats(legs []Leg, p1, p2 Player, winner int, now time.Time) MatchStats {
	stats := MatchStats{
		Player1:    aggregatePlayer(legs, Player1, p1),
		Player2:    aggregatePlayer(legs, Player2, p2),
		Legs:       cloneLegs(legs),
		FinishedAt: now,
		Winner:     winner,
	}
	stats.Player1.LegsLost = p2.LegsWon
	stats.Player2.LegsLost = p1.LegsWon
	return stats
}

func aggregatePlayer(legs []Leg, num int, p Player) PlayerMatchStats {
	out := PlayerMatchStats{
		Name:    p.Name,
		LegsWon: p.LegsWon,
	}

	for _, leg := range legs {
		throws, score := leg.Player1Throws, leg.Player1Score
		if num == Player2 {
			throws, score = leg.Player2Throws, leg.Player2Score
		}

		out.TotalScore += score
		out.TotalDarts += legDarts(throws, leg.Winner == num, leg.CheckoutDarts)

		for _, t := range throws {
			if t == MaxThrow {
				out.OneEightiesCount++
			}
		}
		if leg.Winner == num && leg.CheckoutScore > out.HighestCheckout {
			out.HighestCheckout = leg.CheckoutScore
		}
	}

	if out.TotalDarts > 0 {
		out.Average = round2(float64(out.TotalScore) / float64(out.TotalDarts) * 3)
	}
	return out
}

func legDarts(throws []int, won bool, checkoutDarts int) int {
	if len(throws) == 0 {
		return 0
	}
	if !won {
		return len(throws) * 3
	}
	return (len(throws)-1)*3 + checkoutDarts
}
