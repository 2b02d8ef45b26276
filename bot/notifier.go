package bot

import (
	"context"
	"fmt"

	"wagerbot/events"
	"wagerbot/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	colorSuccess = 0x2ECC71
	colorDanger  = 0xE74C3C
	colorNeutral = 0x95A5A6
)

// Notifier posts game and cycle results to a Discord channel
type Notifier struct {
	session   *discordgo.Session
	channelID string
	stats     service.StatsService
}

// NewNotifier connects a Discord session for outbound notifications
func NewNotifier(token, channelID string, stats service.StatsService) (*Notifier, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}

	return &Notifier{
		session:   dg,
		channelID: channelID,
		stats:     stats,
	}, nil
}

// Subscribe registers the notifier's handlers on the event bus
func (n *Notifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeGameCompleted, n.handleGameCompleted)
	bus.Subscribe(events.EventTypeCycleCompleted, n.handleCycleCompleted)
}

// Close shuts down the Discord session
func (n *Notifier) Close() error {
	return n.session.Close()
}

func (n *Notifier) handleGameCompleted(ctx context.Context, event events.Event) {
	e, ok := event.(events.GameCompletedEvent)
	if !ok {
		return
	}

	var description string
	color := colorNeutral
	if e.WinnerID == nil {
		description = fmt.Sprintf("Game #%d ended in a draw. Both stakes of **%d** returned.", e.GameID, e.BetAmount)
	} else if *e.WinnerID == e.CreatorID {
		description = fmt.Sprintf("Game #%d: creator <@%d> takes the pot of **%d**.", e.GameID, e.CreatorID, e.BetAmount*2)
		color = colorSuccess
	} else {
		description = fmt.Sprintf("Game #%d: challenger <@%d> takes the pot of **%d**.", e.GameID, e.OpponentID, e.BetAmount*2)
		color = colorDanger
	}

	n.send(&discordgo.MessageEmbed{
		Title:       "Game Resolved",
		Description: description,
		Color:       color,
	})
}

func (n *Notifier) handleCycleCompleted(ctx context.Context, event events.Event) {
	e, ok := event.(events.CycleCompletedEvent)
	if !ok {
		return
	}

	color := colorSuccess
	if e.NetProfit < 0 {
		color = colorDanger
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Net Profit", Value: fmt.Sprintf("%d", e.NetProfit), Inline: true},
		{Name: "ROI", Value: fmt.Sprintf("%.2f%%", e.ROIPercent), Inline: true},
	}

	if stats, err := n.stats.GetBotStats(ctx, e.BotID); err != nil {
		log.WithError(err).WithField("botID", e.BotID).Warn("Failed to load bot stats for notification")
	} else if stats.CyclesCompleted > 0 {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Lifetime Profit", Value: fmt.Sprintf("%d", stats.TotalNetProfit), Inline: true},
			&discordgo.MessageEmbedField{Name: "Avg ROI", Value: fmt.Sprintf("%.2f%% over %d cycles", stats.AverageROI, stats.CyclesCompleted), Inline: true},
		)
	}

	n.send(&discordgo.MessageEmbed{
		Title:       "Cycle Complete",
		Description: fmt.Sprintf("Bot %d finished cycle %d.", e.BotID, e.CycleNumber),
		Color:       color,
		Fields:      fields,
	})
}

func (n *Notifier) send(embed *discordgo.MessageEmbed) {
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		log.Errorf("Error sending Discord notification: %v", err)
	}
}
