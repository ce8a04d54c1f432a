package message

import (
	"context"
	"io"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/rs/zerolog/log"
)

// Scheduler transmits SCHEDULED messages once their send time has passed.
type Scheduler struct {
	globalShutdown    chan bool // Closes when Courier needs to shut down
	schedulerShutdown chan bool // Closed after the scheduler has shut down
	manager           *StoreManager
	interval          time.Duration
}

// NewScheduler configures a new Scheduler.
func NewScheduler(cfg config.Scheduler, sm *StoreManager, shutdownChannel chan bool) *Scheduler {
	return &Scheduler{
		globalShutdown:    shutdownChannel,
		schedulerShutdown: make(chan bool),
		manager:           sm,
		interval:          cfg.Interval,
	}
}

// Start the scheduler if the interval is positive.
func (sc *Scheduler) Start(ctx context.Context) {
	slog := log.With().Str("module", "message").Logger()
	if sc.interval <= 0 {
		slog.Info().Str("phase", "startup").Msg("Scheduled sending disabled")
		close(sc.schedulerShutdown)
		return
	}
	slog.Info().Str("phase", "startup").Msgf("Scheduled mail scan every %v", sc.interval)
	go sc.run(ctx)
}

func (sc *Scheduler) run(ctx context.Context) {
	slog := log.With().Str("module", "message").Logger()
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
schedulerLoop:
	for {
		select {
		case <-sc.globalShutdown:
			break schedulerLoop
		case <-ctx.Done():
			break schedulerLoop
		case <-ticker.C:
		}
		if _, err := sc.DoScan(ctx); err != nil {
			slog.Error().Err(err).Msg("Error during scheduled mail scan")
		}
	}
	slog.Debug().Str("phase", "shutdown").Msg("Scheduler shut down")
	close(sc.schedulerShutdown)
}

// DoScan sends every due message, returning the number sent.  Messages that fail to send stay
// scheduled and are retried on the next scan.
func (sc *Scheduler) DoScan(ctx context.Context) (int, error) {
	now := sc.manager.now()
	var due []storage.Message
	err := sc.manager.Store.VisitMailboxes(func(messages []storage.Message) bool {
		for _, m := range messages {
			if storage.HasLabel(m, storage.LabelScheduled) && !m.ScheduledAt().After(now) {
				due = append(due, m)
			}
		}
		return ctx.Err() == nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		slog := log.With().Str("module", "message").Str("mailbox", m.Mailbox()).
			Str("id", m.ID()).Logger()
		if err := sc.transmit(ctx, m); err != nil {
			slog.Warn().Err(err).Msg("Scheduled send failed")
			expCounters.Add("send_failed", 1)
			continue
		}
		slog.Debug().Msg("Scheduled message sent")
		sent++
	}
	return sent, nil
}

// transmit hands a scheduled message to the transport and marks it sent.
func (sc *Scheduler) transmit(ctx context.Context, m storage.Message) error {
	r, err := m.Source()
	if err != nil {
		return err
	}
	source, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return err
	}
	sm := sc.manager
	sentAt := sm.now()
	meta := storage.MakeMetadata(m)
	meta.Date = sentAt
	if err := sm.Transport.Deliver(ctx, outboundFrom(meta, source)); err != nil {
		return err
	}
	if err := sm.Store.MarkSent(m.Mailbox(), m.ID(), sentAt); err != nil {
		return err
	}
	if updated, err := sm.Store.GetMessage(m.Mailbox(), m.ID()); err == nil {
		meta = storage.MakeMetadata(updated)
	}
	expCounters.Add("sent", 1)
	sm.ExtHost.Events.AfterMessageSent.Emit(meta)
	return nil
}

// Join does not return until the scheduler has shut down.
func (sc *Scheduler) Join() {
	if sc.schedulerShutdown != nil {
		<-sc.schedulerShutdown
	}
}
