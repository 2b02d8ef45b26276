package service

import (
	"math/rand"
	"testing"

	"wagerbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestGenerateWagerPlans_ReferenceConfig(t *testing.T) {
	cfg := models.BotCycleConfig{
		MinAmount:        1,
		MaxAmount:        100,
		TargetGameCount:  16,
		WinPct:           44,
		LossPct:          36,
		DrawPct:          20,
		CycleTotalAmount: int64Ptr(809),
	}

	plans, err := generateWagerPlans(7, 1, cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, plans, 16)

	sums := map[models.Outcome]int64{}
	counts := map[models.Outcome]int{}
	seenSlots := map[int]bool{}
	var total int64

	for _, p := range plans {
		assert.Equal(t, int64(7), p.BotID)
		assert.Equal(t, int64(1), p.CycleNumber)
		assert.GreaterOrEqual(t, p.Amount, cfg.MinAmount)
		assert.LessOrEqual(t, p.Amount, cfg.MaxAmount)
		assert.False(t, seenSlots[p.SlotIndex], "slot %d assigned twice", p.SlotIndex)
		seenSlots[p.SlotIndex] = true

		sums[p.IntendedOutcome] += p.Amount
		counts[p.IntendedOutcome]++
		total += p.Amount
	}

	// Half-up rounding of 44/36/20 over 809 and 16
	assert.Equal(t, int64(809), total)
	assert.Equal(t, int64(356), sums[models.OutcomeWin])
	assert.Equal(t, int64(291), sums[models.OutcomeLoss])
	assert.Equal(t, int64(162), sums[models.OutcomeDraw])
	assert.Equal(t, 7, counts[models.OutcomeWin])
	assert.Equal(t, 6, counts[models.OutcomeLoss])
	assert.Equal(t, 3, counts[models.OutcomeDraw])

	// Every slot index 0..15 used exactly once
	for i := 0; i < 16; i++ {
		assert.True(t, seenSlots[i], "slot %d missing", i)
	}

	// The batch locks in its intended margin up front
	assert.Equal(t, int64(65), sums[models.OutcomeWin]-sums[models.OutcomeLoss])
	pool := sums[models.OutcomeWin] + sums[models.OutcomeLoss]
	assert.Equal(t, int64(647), pool)
	assert.InDelta(t, 10.046, float64(sums[models.OutcomeWin]-sums[models.OutcomeLoss])/float64(pool)*100, 0.01)
}

func TestGenerateWagerPlans_DefaultCycleTotal(t *testing.T) {
	cfg := models.BotCycleConfig{
		MinAmount:       1,
		MaxAmount:       100,
		TargetGameCount: 16,
		WinPct:          44,
		LossPct:         36,
		DrawPct:         20,
	}

	// 16*1 + 16*100/2
	require.Equal(t, int64(816), cfg.CycleTotal())

	plans, err := generateWagerPlans(7, 1, cfg, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	var total int64
	for _, p := range plans {
		total += p.Amount
	}
	assert.Equal(t, int64(816), total)
}

func TestGenerateWagerPlans_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.BotCycleConfig
	}{
		{
			name: "zero min amount",
			cfg:  models.BotCycleConfig{MinAmount: 0, MaxAmount: 10, TargetGameCount: 4, WinPct: 50, LossPct: 30, DrawPct: 20},
		},
		{
			name: "max below min",
			cfg:  models.BotCycleConfig{MinAmount: 10, MaxAmount: 5, TargetGameCount: 4, WinPct: 50, LossPct: 30, DrawPct: 20},
		},
		{
			name: "zero game count",
			cfg:  models.BotCycleConfig{MinAmount: 1, MaxAmount: 10, TargetGameCount: 0, WinPct: 50, LossPct: 30, DrawPct: 20},
		},
		{
			name: "percentages do not sum to 100",
			cfg:  models.BotCycleConfig{MinAmount: 1, MaxAmount: 10, TargetGameCount: 4, WinPct: 50, LossPct: 30, DrawPct: 10},
		},
		{
			name: "negative percentage",
			cfg:  models.BotCycleConfig{MinAmount: 1, MaxAmount: 10, TargetGameCount: 4, WinPct: 120, LossPct: -40, DrawPct: 20},
		},
		{
			name: "non-positive cycle total",
			cfg:  models.BotCycleConfig{MinAmount: 1, MaxAmount: 10, TargetGameCount: 4, WinPct: 50, LossPct: 30, DrawPct: 20, CycleTotalAmount: int64Ptr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := GenerateWagerPlans(1, 1, tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, plans)
		})
	}
}

func TestGenerateWagerPlans_InfeasibleTotal(t *testing.T) {
	// Win share of 1000 is 500 across 2 games, far above 2*max
	cfg := models.BotCycleConfig{
		MinAmount:        1,
		MaxAmount:        10,
		TargetGameCount:  4,
		WinPct:           50,
		LossPct:          30,
		DrawPct:          20,
		CycleTotalAmount: int64Ptr(1000),
	}

	plans, err := GenerateWagerPlans(1, 1, cfg)
	assert.Error(t, err)
	assert.Nil(t, plans)
}

func TestSplitAmounts_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		amounts, err := splitAmounts(250, 5, 10, 100, rng)
		require.NoError(t, err)
		require.Len(t, amounts, 5)

		var sum int64
		for _, a := range amounts {
			assert.GreaterOrEqual(t, a, int64(10))
			assert.LessOrEqual(t, a, int64(100))
			sum += a
		}
		assert.Equal(t, int64(250), sum)
	}
}

func TestSplitAmounts_TightBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	// Only one assignment possible when sum pins every slot to min
	amounts, err := splitAmounts(30, 3, 10, 100, rng)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 10, 10}, amounts)

	// Or to max
	amounts, err = splitAmounts(300, 3, 10, 100, rng)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 100, 100}, amounts)

	_, err = splitAmounts(29, 3, 10, 100, rng)
	assert.Error(t, err)
	_, err = splitAmounts(301, 3, 10, 100, rng)
	assert.Error(t, err)
}

func TestGenerateWagerPlans_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		min := rapid.Int64Range(1, 50).Draw(rt, "min")
		max := min + rapid.Int64Range(0, 200).Draw(rt, "span")
		n := rapid.IntRange(1, 60).Draw(rt, "games")
		winPct := rapid.IntRange(0, 100).Draw(rt, "winPct")
		lossPct := rapid.IntRange(0, 100-winPct).Draw(rt, "lossPct")

		cfg := models.BotCycleConfig{
			MinAmount:       min,
			MaxAmount:       max,
			TargetGameCount: n,
			WinPct:          float64(winPct),
			LossPct:         float64(lossPct),
			DrawPct:         float64(100 - winPct - lossPct),
		}

		seed := rapid.Int64().Draw(rt, "seed")
		plans, err := generateWagerPlans(1, 1, cfg, rand.New(rand.NewSource(seed)))
		if err != nil {
			// Rounding can make a category share unsatisfiable within the
			// per-wager bounds. Rejecting such configs whole is correct;
			// the property under test is that successes are exact.
			return
		}

		if len(plans) != n {
			rt.Fatalf("got %d plans, want %d", len(plans), n)
		}

		var total int64
		seen := make(map[int]bool, n)
		for _, p := range plans {
			if p.Amount < min || p.Amount > max {
				rt.Fatalf("amount %d outside [%d, %d]", p.Amount, min, max)
			}
			if seen[p.SlotIndex] {
				rt.Fatalf("slot %d assigned twice", p.SlotIndex)
			}
			seen[p.SlotIndex] = true
			total += p.Amount
		}

		if total != cfg.CycleTotal() {
			rt.Fatalf("total %d does not match cycle total %d", total, cfg.CycleTotal())
		}
	})
}
