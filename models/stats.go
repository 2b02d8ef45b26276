package models

// BotStats aggregates a bot's completed cycle history
type BotStats struct {
	BotID           int64
	CyclesCompleted int
	TotalBets       int
	TotalWins       int
	TotalLosses     int
	TotalDraws      int
	TotalBetAmount  int64
	TotalNetProfit  int64
	AverageROI      float64
}
