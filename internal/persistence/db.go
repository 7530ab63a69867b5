// Package persistence provides SQLite-backed storage for world state. The
// core components hold state in memory; this layer snapshots and restores
// them through narrow per-entity accessors, never raw queries from callers.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"hollowsim/internal/agents"
	"hollowsim/internal/memory"
	"hollowsim/internal/message"
	"hollowsim/internal/soul"
	"hollowsim/internal/world"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		energy INTEGER NOT NULL,
		satiety INTEGER NOT NULL,
		social INTEGER NOT NULL,
		soul_version INTEGER NOT NULL,
		born_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS souls (
		agent_id TEXT PRIMARY KEY,
		soul_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		agent_id TEXT PRIMARY KEY,
		episodic_json TEXT NOT NULL,
		social_json TEXT NOT NULL,
		summary TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT,
		location TEXT,
		channel TEXT NOT NULL,
		content TEXT NOT NULL,
		read INTEGER NOT NULL,
		sent_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS location_events (
		id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		description TEXT NOT NULL,
		importance INTEGER NOT NULL,
		starts_at INTEGER NOT NULL,
		ends_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient);
	CREATE INDEX IF NOT EXISTS idx_events_location ON location_events(location);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveAgents writes the full roster (full replace).
func (db *DB) SaveAgents(roster []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, name, location, energy, satiety, social, soul_version, born_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range roster {
		_, err := stmt.Exec(string(a.ID), a.Name, string(a.Location),
			a.Stats.Energy, a.Stats.Satiety, a.Stats.Social, a.SoulVersion, a.BornAt)
		if err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// LoadAgents reads the full roster.
func (db *DB) LoadAgents() ([]*agents.Agent, error) {
	rows, err := db.conn.Queryx("SELECT id, name, location, energy, satiety, social, soul_version, born_at FROM agents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*agents.Agent
	for rows.Next() {
		var (
			id, name, loc                    string
			energy, satiety, social, soulVer int
			bornAt                           int64
		)
		if err := rows.Scan(&id, &name, &loc, &energy, &satiety, &social, &soulVer, &bornAt); err != nil {
			return nil, err
		}
		out = append(out, &agents.Agent{
			ID:          agents.AgentID(id),
			Name:        name,
			Location:    world.LocationID(loc),
			Stats:       agents.Stats{Energy: energy, Satiety: satiety, Social: social},
			SoulVersion: soulVer,
			BornAt:      bornAt,
		})
	}
	return out, rows.Err()
}

// SaveSouls writes every soul as JSON (full replace).
func (db *DB) SaveSouls(souls map[string]*soul.Soul) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM souls"); err != nil {
		return err
	}
	for agentID, s := range souls {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal soul %s: %w", agentID, err)
		}
		if _, err := tx.Exec("INSERT INTO souls (agent_id, soul_json) VALUES (?, ?)", agentID, string(b)); err != nil {
			return fmt.Errorf("insert soul %s: %w", agentID, err)
		}
	}
	return tx.Commit()
}

// LoadSouls reads every soul.
func (db *DB) LoadSouls() (map[string]*soul.Soul, error) {
	rows, err := db.conn.Queryx("SELECT agent_id, soul_json FROM souls")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*soul.Soul)
	for rows.Next() {
		var agentID, raw string
		if err := rows.Scan(&agentID, &raw); err != nil {
			return nil, err
		}
		var s soul.Soul
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("unmarshal soul %s: %w", agentID, err)
		}
		out[agentID] = &s
	}
	return out, rows.Err()
}

// SaveMemories writes all memory layers (full replace).
func (db *DB) SaveMemories(episodic map[string][]memory.Episodic, social map[string][]memory.Social, summaries map[string]string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM memories"); err != nil {
		return err
	}

	ids := make(map[string]bool)
	for id := range episodic {
		ids[id] = true
	}
	for id := range social {
		ids[id] = true
	}
	for id := range summaries {
		ids[id] = true
	}

	for id := range ids {
		epJSON, _ := json.Marshal(episodic[id])
		soJSON, _ := json.Marshal(social[id])
		_, err := tx.Exec(
			"INSERT INTO memories (agent_id, episodic_json, social_json, summary) VALUES (?, ?, ?, ?)",
			id, string(epJSON), string(soJSON), summaries[id],
		)
		if err != nil {
			return fmt.Errorf("insert memories %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadMemories reads all memory layers.
func (db *DB) LoadMemories() (map[string][]memory.Episodic, map[string][]memory.Social, map[string]string, error) {
	rows, err := db.conn.Queryx("SELECT agent_id, episodic_json, social_json, summary FROM memories")
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	episodic := make(map[string][]memory.Episodic)
	social := make(map[string][]memory.Social)
	summaries := make(map[string]string)
	for rows.Next() {
		var id, epRaw, soRaw, summary string
		if err := rows.Scan(&id, &epRaw, &soRaw, &summary); err != nil {
			return nil, nil, nil, err
		}
		var ep []memory.Episodic
		var so []memory.Social
		if err := json.Unmarshal([]byte(epRaw), &ep); err != nil {
			return nil, nil, nil, fmt.Errorf("unmarshal episodic %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(soRaw), &so); err != nil {
			return nil, nil, nil, fmt.Errorf("unmarshal social %s: %w", id, err)
		}
		episodic[id] = ep
		social[id] = so
		if summary != "" {
			summaries[id] = summary
		}
	}
	return episodic, social, summaries, rows.Err()
}

// SaveMessages writes the live message log (full replace).
func (db *DB) SaveMessages(msgs []*message.Message) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO messages
		(id, sender, recipient, location, channel, content, read, sent_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range msgs {
		read := 0
		if m.Read {
			read = 1
		}
		_, err := stmt.Exec(m.ID, m.From, m.To, string(m.LocationID), m.Channel,
			m.Content, read, m.SentAt.Unix(), m.ExpiresAt.Unix())
		if err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// LoadMessages reads the live message log.
func (db *DB) LoadMessages() ([]*message.Message, error) {
	rows, err := db.conn.Queryx("SELECT id, sender, recipient, location, channel, content, read, sent_at, expires_at FROM messages")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		var (
			id, sender, recipient, loc, channel, content string
			read                                         int
			sentAt, expiresAt                            int64
		)
		if err := rows.Scan(&id, &sender, &recipient, &loc, &channel, &content, &read, &sentAt, &expiresAt); err != nil {
			return nil, err
		}
		out = append(out, &message.Message{
			ID:         id,
			From:       sender,
			To:         recipient,
			LocationID: world.LocationID(loc),
			Channel:    channel,
			Content:    content,
			Read:       read == 1,
			SentAt:     time.Unix(sentAt, 0),
			ExpiresAt:  time.Unix(expiresAt, 0),
		})
	}
	return out, rows.Err()
}

// SaveEvents writes location events (full replace).
func (db *DB) SaveEvents(events []*world.LocationEvent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM location_events"); err != nil {
		return err
	}
	for _, ev := range events {
		_, err := tx.Exec(
			"INSERT INTO location_events (id, location, description, importance, starts_at, ends_at) VALUES (?, ?, ?, ?, ?, ?)",
			ev.ID, string(ev.LocationID), ev.Description, ev.Importance, ev.StartsAt.Unix(), ev.EndsAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

// LoadEvents reads location events.
func (db *DB) LoadEvents() ([]*world.LocationEvent, error) {
	rows, err := db.conn.Queryx("SELECT id, location, description, importance, starts_at, ends_at FROM location_events")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*world.LocationEvent
	for rows.Next() {
		var (
			id, loc, desc    string
			importance       int
			startsAt, endsAt int64
		)
		if err := rows.Scan(&id, &loc, &desc, &importance, &startsAt, &endsAt); err != nil {
			return nil, err
		}
		out = append(out, &world.LocationEvent{
			ID:          id,
			LocationID:  world.LocationID(loc),
			Description: desc,
			Importance:  importance,
			StartsAt:    time.Unix(startsAt, 0),
			EndsAt:      time.Unix(endsAt, 0),
		})
	}
	return out, rows.Err()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta retrieves a metadata value; empty string if unset.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// HasWorldState reports whether a saved roster exists.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM agents"); err != nil {
		return false
	}
	return n > 0
}

// Snapshot bundles everything one save writes.
type Snapshot struct {
	Agents    []*agents.Agent
	Souls     map[string]*soul.Soul
	Episodic  map[string][]memory.Episodic
	Social    map[string][]memory.Social
	Summaries map[string]string
	Messages  []*message.Message
	Events    []*world.LocationEvent
	Tick      uint64
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(s *Snapshot) error {
	slog.Info("saving world state", "agents", len(s.Agents), "messages", len(s.Messages))

	if err := db.SaveAgents(s.Agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveSouls(s.Souls); err != nil {
		return fmt.Errorf("save souls: %w", err)
	}
	if err := db.SaveMemories(s.Episodic, s.Social, s.Summaries); err != nil {
		return fmt.Errorf("save memories: %w", err)
	}
	if err := db.SaveMessages(s.Messages); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	if err := db.SaveEvents(s.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", s.Tick)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("world state saved")
	return nil
}
