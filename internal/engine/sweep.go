package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"discord-guardian-bot/internal/metrics"
	"discord-guardian-bot/internal/models"
)

const (
	sweepInterval     = 60 * time.Second
	joinPruneInterval = 30 * time.Second
)

// Run drives the background maintenance loops until ctx is cancelled:
// strike decay, window pruning and the persistence flush every minute,
// join-window pruning every 30s. A final flush runs on shutdown.
func (e *Engine) Run(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	joinPrune := time.NewTicker(joinPruneInterval)
	defer sweep.Stop()
	defer joinPrune.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Flush()
			return
		case <-sweep.C:
			e.Sweep(time.Now().UnixMilli())
			e.Flush()
		case <-joinPrune.C:
			now := time.Now().UnixMilli()
			e.guilds.Range(func(_, val interface{}) bool {
				val.(*guildState).joins.Prune(now)
				return true
			})
		}
	}
}

// Sweep runs one decay + prune pass. Exported so tests and the
// simulator can drive it directly.
func (e *Engine) Sweep(nowMs int64) {
	pruned := e.detector.Prune(nowMs)

	decayed := 0
	e.guilds.Range(func(_, val interface{}) bool {
		gs := val.(*guildState)
		cfg, _ := gs.snapshotConfig()
		decayed += gs.ledger.Decay(nowMs, cfg.StrikeDecayWindowMs())
		return true
	})

	// Locks for users gone quiet hold no state worth keeping. TryLock
	// skips any lock a pipeline goroutine is holding right now.
	cutoff := nowMs - userLockIdleMs
	e.userLocks.Range(func(key, val interface{}) bool {
		ul := val.(*userLock)
		if ul.lastUsed.Load() < cutoff && ul.mu.TryLock() {
			e.userLocks.Delete(key)
			ul.mu.Unlock()
		}
		return true
	})

	metrics.SweepRuns.Inc()
	if pruned > 0 || decayed > 0 {
		e.log.Debug("sweep pass",
			zap.Int("windows_pruned", pruned), zap.Int("strikes_decayed", decayed))
	}
}

// Flush writes a point-in-time snapshot of every guild to the store
// and rotates its audit logs. Failures are logged and retried on the
// next pass; in-memory state is never dropped.
func (e *Engine) Flush() {
	if e.store == nil {
		return
	}
	nowMs := time.Now().UnixMilli()

	e.guilds.Range(func(key, val interface{}) bool {
		guildID := key.(string)
		gs := val.(*guildState)

		snap := &models.GuildSnapshot{
			GuildID:    guildID,
			Raid:       gs.raid.Status(),
			JoinWindow: gs.joins.Snapshot(),
			Strikes:    gs.ledger.Snapshot(),
			SavedAtMs:  nowMs,
		}
		if err := e.store.SaveSnapshot(snap); err != nil {
			e.log.Warn("snapshot flush failed, will retry next sweep",
				zap.String("guild", guildID), zap.Error(err))
			return true
		}
		if err := e.store.RotateLogs(guildID); err != nil {
			e.log.Warn("audit rotation failed",
				zap.String("guild", guildID), zap.Error(err))
		}
		return true
	})
}

// Restore reloads persisted guild configs and snapshots. A raid that
// was active at crash time resumes with its recorded locked-channel
// set and a freshly armed deactivation timer.
func (e *Engine) Restore() error {
	if e.store == nil {
		return nil
	}

	configs, err := e.store.LoadGuildConfigs()
	if err != nil {
		return err
	}
	for guildID, cfg := range configs {
		e.SetGuildConfig(guildID, *cfg)
	}

	snaps, err := e.store.LoadSnapshots()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		gs := e.guild(snap.GuildID)
		gs.ledger.Restore(snap.Strikes)
		gs.joins.Restore(snap.JoinWindow)

		if snap.Raid.Active {
			guildID := snap.GuildID
			cfg, _ := gs.snapshotConfig()
			gs.raid.Restore(snap.Raid, cfg.RaidDuration(), func() {
				e.deactivateRaid(guildID, gs, "timer expired")
			})
			e.log.Warn("resumed active raid episode from snapshot",
				zap.String("guild", guildID),
				zap.Int("locked_channels", len(snap.Raid.LockedChannels)))
		}
	}

	e.log.Info("state restored",
		zap.Int("configs", len(configs)), zap.Int("snapshots", len(snaps)))
	return nil
}
