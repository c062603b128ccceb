// Package stats periodically snapshots market activity and pushes the
// aggregate onto the event feed.
package stats

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-scribe/derivative-market/derivative-market-backend/internal/events"
	"carbon-scribe/derivative-market/derivative-market-backend/internal/market"
)

// Collector runs the market snapshot on a cron schedule.
type Collector struct {
	market *market.Service
	events events.Publisher
	logger *zap.Logger
	cron   *cron.Cron
}

// NewCollector creates a collector; Start schedules it.
func NewCollector(m *market.Service, publisher events.Publisher, logger *zap.Logger) *Collector {
	return &Collector{
		market: m,
		events: publisher,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start begins publishing snapshots on the given cron expression
// (standard five-field format, e.g. "*/5 * * * *").
func (c *Collector) Start(schedule string) error {
	if _, err := c.cron.AddFunc(schedule, c.publish); err != nil {
		return fmt.Errorf("schedule stats collection: %w", err)
	}
	c.cron.Start()
	c.logger.Info("Market stats collection scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running snapshot to finish.
func (c *Collector) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *Collector) publish() {
	snapshot := c.market.Snapshot()
	c.events.Publish(events.New(events.TypeMarketStats, map[string]any{
		"active_items":  snapshot.ActiveItems,
		"listed_amount": snapshot.ListedAmount,
		"trade_count":   snapshot.TradeCount,
		"volume":        snapshot.Volume,
	}))
	c.logger.Debug("Published market stats snapshot",
		zap.Int("active_items", snapshot.ActiveItems),
		zap.Uint64("trade_count", snapshot.TradeCount))
}
