package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/BioHazard786/warpchat/internal/chat"
	"github.com/BioHazard786/warpchat/internal/config"
)

// Janitor periodically disconnects idle clients and drops rooms that have
// been closed for longer than the room TTL.
type Janitor struct {
	hub      *chat.Hub
	idle     time.Duration
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(hub *chat.Hub, cfg *config.Config, logger *slog.Logger) *Janitor {
	return &Janitor{
		hub:      hub,
		idle:     cfg.ClientIdle,
		ttl:      cfg.RoomTTL,
		interval: cfg.SweepInterval,
		logger:   logger,
	}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one pass and reports how many clients and rooms it removed.
func (j *Janitor) Sweep() (reaped, swept int) {
	reaped = j.hub.ReapIdle(j.idle)
	swept = j.hub.SweepRooms(j.ttl)
	if reaped > 0 || swept > 0 {
		j.logger.Info("Janitor pass",
			slog.Int("clients_reaped", reaped),
			slog.Int("rooms_swept", swept),
		)
	}
	return reaped, swept
}
