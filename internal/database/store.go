package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"discord-guardian-bot/internal/config"
	"discord-guardian-bot/internal/models"
)

// Audit log caps; when a guild exceeds a cap the oldest half is
// dropped to bound storage growth
const (
	violationLogCap = 1000
	raidLogCap      = 500
)

// SaveSnapshot upserts a guild's point-in-time state
func (d *Database) SaveSnapshot(snap *models.GuildSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO guard_state (guild_id, snapshot, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id) DO UPDATE
		SET snapshot = $2, saved_at = $3
	`, snap.GuildID, payload, snap.SavedAtMs)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}
	return nil
}

// LoadSnapshots returns every persisted guild snapshot
func (d *Database) LoadSnapshots() ([]*models.GuildSnapshot, error) {
	rows, err := d.db.Query(`SELECT snapshot FROM guard_state`)
	if err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	defer rows.Close()

	var snaps []*models.GuildSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		snap := &models.GuildSnapshot{}
		if err := json.Unmarshal(payload, snap); err != nil {
			// A corrupt row loses one guild's snapshot, not the boot
			d.log.Warn("skipping corrupt snapshot row")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// AppendViolation writes one violation audit entry
func (d *Database) AppendViolation(entry *models.ViolationLogEntry) error {
	_, err := d.db.Exec(`
		INSERT INTO violation_log (guild_id, user_id, types, action, strikes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.GuildID, entry.UserID, pq.Array(entry.Types), entry.Action, entry.Strikes, entry.CreatedAt)
	return err
}

// AppendRaidEvent writes one raid audit entry
func (d *Database) AppendRaidEvent(entry *models.RaidLogEntry) error {
	_, err := d.db.Exec(`
		INSERT INTO raid_log (guild_id, event, level, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.GuildID, entry.Event, entry.Level, entry.Details, entry.CreatedAt)
	return err
}

// RotateLogs enforces the per-guild caps on both audit logs, dropping
// the oldest half when a cap is exceeded
func (d *Database) RotateLogs(guildID string) error {
	if err := d.rotate("violation_log", guildID, violationLogCap); err != nil {
		return err
	}
	return d.rotate("raid_log", guildID, raidLogCap)
}

func (d *Database) rotate(table, guildID string, limit int) error {
	var count int
	err := d.db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE guild_id = $1`, table),
		guildID).Scan(&count)
	if err != nil {
		return fmt.Errorf("%s count: %w", table, err)
	}
	if count <= limit {
		return nil
	}

	_, err = d.db.Exec(fmt.Sprintf(`
		DELETE FROM %s WHERE guild_id = $1 AND id IN (
			SELECT id FROM %s WHERE guild_id = $1 ORDER BY id ASC LIMIT $2
		)`, table, table), guildID, count/2)
	if err != nil {
		return fmt.Errorf("%s rotate: %w", table, err)
	}
	return nil
}

// RecentViolations returns the newest violation entries for a guild
func (d *Database) RecentViolations(guildID string, limit int) ([]*models.ViolationLogEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, guild_id, user_id, types, action, strikes, created_at
		FROM violation_log WHERE guild_id = $1
		ORDER BY id DESC LIMIT $2
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ViolationLogEntry
	for rows.Next() {
		entry := &models.ViolationLogEntry{}
		var types pq.StringArray
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.UserID, &types,
			&entry.Action, &entry.Strikes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Types = types
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveGuildConfig upserts a guild's effective config
func (d *Database) SaveGuildConfig(guildID string, cfg *config.Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO guard_config (guild_id, settings, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id) DO UPDATE
		SET settings = $2, updated_at = $3
	`, guildID, payload, time.Now().Unix())
	return err
}

// LoadGuildConfigs returns every persisted guild config. A malformed
// row falls back to defaults with a warning (never fatal).
func (d *Database) LoadGuildConfigs() (map[string]*config.Config, error) {
	rows, err := d.db.Query(`SELECT guild_id, settings FROM guard_config`)
	if err != nil {
		if err == sql.ErrNoRows {
			return map[string]*config.Config{}, nil
		}
		return nil, fmt.Errorf("config load: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]*config.Config)
	for rows.Next() {
		var guildID string
		var payload []byte
		if err := rows.Scan(&guildID, &payload); err != nil {
			return nil, err
		}

		cfg := config.Defaults()
		if err := json.Unmarshal(payload, &cfg); err != nil {
			d.log.Warn("malformed persisted config, using defaults")
			cfg = config.Defaults()
		}
		if err := cfg.Validate(); err != nil {
			d.log.Warn("invalid persisted config, using defaults")
			cfg = config.Defaults()
		}
		configs[guildID] = &cfg
	}
	return configs, rows.Err()
}

// ExemptionRow is one allowlist entry loaded for the exemption cache
type ExemptionRow struct {
	TargetID   string
	TargetType string // "user", "role" or "channel"
}

// LoadExemptions returns the allowlist ids for a guild from its
// persisted config
func (d *Database) LoadExemptions(guildID string) ([]ExemptionRow, error) {
	configs, err := d.LoadGuildConfigs()
	if err != nil {
		return nil, err
	}
	cfg, ok := configs[guildID]
	if !ok {
		return nil, nil
	}

	var rows []ExemptionRow
	for _, id := range cfg.ExemptUsers {
		rows = append(rows, ExemptionRow{TargetID: id, TargetType: "user"})
	}
	for _, id := range cfg.ExemptRoles {
		rows = append(rows, ExemptionRow{TargetID: id, TargetType: "role"})
	}
	for _, id := range cfg.ExemptChans {
		rows = append(rows, ExemptionRow{TargetID: id, TargetType: "channel"})
	}
	return rows, nil
}
