package service

import (
	"fmt"
	"math"
	"math/rand"

	"wagerbot/models"
)

// categoryOrder fixes the tie-break priority for rounding-drift correction
var categoryOrder = []models.Outcome{models.OutcomeWin, models.OutcomeLoss, models.OutcomeDraw}

// GenerateWagerPlans produces the ordered batch of N wager plans for one
// cycle. The aggregate amount equals the configured cycle total exactly and
// every slot index in 0..N-1 is used exactly once.
func GenerateWagerPlans(botID, cycleNumber int64, cfg models.BotCycleConfig) ([]*models.WagerPlan, error) {
	return generateWagerPlans(botID, cycleNumber, cfg, rand.New(rand.NewSource(rand.Int63())))
}

func generateWagerPlans(botID, cycleNumber int64, cfg models.BotCycleConfig, rng *rand.Rand) ([]*models.WagerPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cycle configuration: %w", err)
	}

	total := cfg.CycleTotal()

	sums, err := splitCategorySums(total, cfg)
	if err != nil {
		return nil, err
	}

	counts := splitCategoryCounts(cfg)

	// Every category batch must be splittable within the per-wager bounds
	// before anything is generated; partial batches are never produced.
	type slot struct {
		amount  int64
		outcome models.Outcome
	}
	var slots []slot

	for _, outcome := range categoryOrder {
		count := counts[outcome]
		sum := sums[outcome]

		amounts, err := splitAmounts(sum, count, cfg.MinAmount, cfg.MaxAmount, rng)
		if err != nil {
			return nil, fmt.Errorf("cannot split %s sum %d across %d games within [%d, %d]: %w",
				outcome, sum, count, cfg.MinAmount, cfg.MaxAmount, err)
		}

		for _, amount := range amounts {
			slots = append(slots, slot{amount: amount, outcome: outcome})
		}
	}

	// Shuffle so outcome order is not predictable by position
	rng.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})

	plans := make([]*models.WagerPlan, len(slots))
	for i, s := range slots {
		plans[i] = &models.WagerPlan{
			BotID:           botID,
			CycleNumber:     cycleNumber,
			SlotIndex:       i,
			Amount:          s.amount,
			IntendedOutcome: s.outcome,
		}
	}

	return plans, nil
}

// splitCategorySums divides the cycle total into win/loss/draw sums using
// half-up rounding, then pushes any rounding drift onto the category with the
// largest fractional remainder so the three sums add up to the total exactly.
func splitCategorySums(total int64, cfg models.BotCycleConfig) (map[models.Outcome]int64, error) {
	pcts := map[models.Outcome]float64{
		models.OutcomeWin:  cfg.WinPct,
		models.OutcomeLoss: cfg.LossPct,
		models.OutcomeDraw: cfg.DrawPct,
	}

	sums := make(map[models.Outcome]int64, 3)
	fractions := make(map[models.Outcome]float64, 3)

	var rounded int64
	for _, outcome := range categoryOrder {
		raw := float64(total) * pcts[outcome] / 100
		sums[outcome] = int64(math.Floor(raw + 0.5))
		fractions[outcome] = raw - math.Floor(raw)
		rounded += sums[outcome]
	}

	if drift := total - rounded; drift != 0 {
		target := categoryOrder[0]
		for _, outcome := range categoryOrder[1:] {
			if fractions[outcome] > fractions[target] {
				target = outcome
			}
		}
		sums[target] += drift
		if sums[target] < 0 {
			return nil, fmt.Errorf("drift correction produced negative %s sum %d", target, sums[target])
		}
	}

	return sums, nil
}

// splitCategoryCounts divides the target game count into per-category counts
// with the same half-up rounding and drift correction as the sums, so the
// counts always add up to N.
func splitCategoryCounts(cfg models.BotCycleConfig) map[models.Outcome]int {
	pcts := map[models.Outcome]float64{
		models.OutcomeWin:  cfg.WinPct,
		models.OutcomeLoss: cfg.LossPct,
		models.OutcomeDraw: cfg.DrawPct,
	}

	counts := make(map[models.Outcome]int, 3)
	fractions := make(map[models.Outcome]float64, 3)

	rounded := 0
	for _, outcome := range categoryOrder {
		raw := float64(cfg.TargetGameCount) * pcts[outcome] / 100
		counts[outcome] = int(math.Floor(raw + 0.5))
		fractions[outcome] = raw - math.Floor(raw)
		rounded += counts[outcome]
	}

	if drift := cfg.TargetGameCount - rounded; drift != 0 {
		target := categoryOrder[0]
		for _, outcome := range categoryOrder[1:] {
			if fractions[outcome] > fractions[target] {
				target = outcome
			}
		}
		counts[target] += drift
	}

	return counts
}

// splitAmounts divides sum into count amounts, each within [min, max]. Each
// draw is random but leaves enough headroom for the remaining slots to stay
// within bounds; the final slot absorbs the exact remainder.
func splitAmounts(sum int64, count int, min, max int64, rng *rand.Rand) ([]int64, error) {
	if count == 0 {
		if sum != 0 {
			return nil, fmt.Errorf("sum %d left over with no games to carry it", sum)
		}
		return nil, nil
	}

	n := int64(count)
	if sum < n*min || sum > n*max {
		return nil, fmt.Errorf("sum %d outside feasible range [%d, %d]", sum, n*min, n*max)
	}

	amounts := make([]int64, 0, count)
	remaining := sum

	for i := count; i > 1; i-- {
		rest := int64(i - 1)

		low := remaining - rest*max
		if low < min {
			low = min
		}
		high := remaining - rest*min
		if high > max {
			high = max
		}

		amount := low + rng.Int63n(high-low+1)
		amounts = append(amounts, amount)
		remaining -= amount
	}

	amounts = append(amounts, remaining)
	return amounts, nil
}
