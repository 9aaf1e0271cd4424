// Package persistence provides SQLite-based checkpoint storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/planetsim/internal/engine"
)

var (
	// ErrNoCheckpoint is returned by LoadCheckpoint on an empty database.
	ErrNoCheckpoint = errors.New("no checkpoint saved")
	// ErrNoMeta is returned by GetMeta for an unknown key.
	ErrNoMeta = errors.New("no such metadata key")
)

// DB wraps a SQLite connection for checkpoint persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; also keeps :memory: databases on a single connection.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cells (
		idx INTEGER PRIMARY KEY,
		elevation REAL NOT NULL,
		temperature REAL NOT NULL,
		rainfall REAL NOT NULL,
		humidity REAL NOT NULL,
		biomass REAL NOT NULL,
		oxygen REAL NOT NULL,
		co2 REAL NOT NULL,
		ice REAL NOT NULL,
		flood REAL NOT NULL,
		greenhouse REAL NOT NULL,
		life INTEGER NOT NULL,
		engineered INTEGER NOT NULL,
		geology_json TEXT NOT NULL,
		biome_json TEXT NOT NULL,
		weather_json TEXT NOT NULL,
		magnetic_json TEXT NOT NULL,
		deposits_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS civilizations (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		center_x INTEGER NOT NULL,
		center_y INTEGER NOT NULL,
		population INTEGER NOT NULL,
		tech REAL NOT NULL,
		stage INTEGER NOT NULL,
		aggression REAL NOT NULL,
		eco_friendliness REAL NOT NULL,
		founded REAL NOT NULL,
		cells_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS storms (
		id TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		vx REAL NOT NULL,
		vy REAL NOT NULL,
		intensity REAL NOT NULL,
		radius REAL NOT NULL,
		age REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS disasters (
		id TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		intensity REAL NOT NULL,
		vx REAL NOT NULL,
		vy REAL NOT NULL,
		age REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		year REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_cells_life ON cells(life);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveCheckpoint replaces the stored checkpoint with cp in one transaction.
func (db *DB) SaveCheckpoint(cp *engine.Checkpoint) error {
	slog.Info("saving checkpoint",
		"id", cp.ID,
		"year", cp.Year,
		"cells", len(cp.Cells),
		"civilizations", len(cp.Civilizations),
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"cells", "civilizations", "storms", "disasters", "events"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := saveCells(tx, cp); err != nil {
		return fmt.Errorf("save cells: %w", err)
	}
	if err := saveCivilizations(tx, cp); err != nil {
		return fmt.Errorf("save civilizations: %w", err)
	}
	if err := saveStorms(tx, cp); err != nil {
		return fmt.Errorf("save storms: %w", err)
	}
	if err := saveDisasters(tx, cp); err != nil {
		return fmt.Errorf("save disasters: %w", err)
	}
	if err := saveEvents(tx, cp.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := saveMeta(tx, cp); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("checkpoint saved", "id", cp.ID)
	return nil
}

// LoadCheckpoint reads the stored checkpoint.
func (db *DB) LoadCheckpoint() (*engine.Checkpoint, error) {
	cp := &engine.Checkpoint{}
	meta, err := db.allMeta()
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	if _, ok := meta["checkpoint_id"]; !ok {
		return nil, ErrNoCheckpoint
	}
	if err := decodeMeta(meta, cp); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if err := db.loadCells(cp); err != nil {
		return nil, fmt.Errorf("load cells: %w", err)
	}
	if err := db.loadCivilizations(cp); err != nil {
		return nil, fmt.Errorf("load civilizations: %w", err)
	}
	if err := db.loadStorms(cp); err != nil {
		return nil, fmt.Errorf("load storms: %w", err)
	}
	if err := db.loadDisasters(cp); err != nil {
		return nil, fmt.Errorf("load disasters: %w", err)
	}
	if cp.Events, err = db.loadEvents(); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return cp, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNoMeta, key)
	}
	return value, err
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT tick, year, description, category, meta_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	return eventsFromRows(rows), nil
}

func (db *DB) allMeta() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM world_meta"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	return meta, nil
}

func saveMeta(tx *sqlx.Tx, cp *engine.Checkpoint) error {
	values := map[string]any{
		"options":       cp.Options,
		"globals":       cp.Globals,
		"outbreaks":     cp.Outbreaks,
		"waves":         cp.Waves,
		"magnetosphere": cp.Magnetosphere,
	}
	meta := map[string]string{
		"checkpoint_id": cp.ID.String(),
		"created":       cp.Created.Format(time.RFC3339Nano),
		"year":          strconv.FormatFloat(cp.Year, 'g', -1, 64),
		"last_tick":     strconv.FormatUint(cp.Tick, 10),
		"water_level":   strconv.FormatFloat(cp.WaterLevel, 'g', -1, 64),
	}
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		meta[k] = string(b)
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}
	return nil
}

func decodeMeta(meta map[string]string, cp *engine.Checkpoint) error {
	var err error
	if cp.ID, err = uuid.Parse(meta["checkpoint_id"]); err != nil {
		return fmt.Errorf("checkpoint id: %w", err)
	}
	if cp.Created, err = time.Parse(time.RFC3339Nano, meta["created"]); err != nil {
		return fmt.Errorf("created: %w", err)
	}
	if cp.Year, err = strconv.ParseFloat(meta["year"], 64); err != nil {
		return fmt.Errorf("year: %w", err)
	}
	if cp.Tick, err = strconv.ParseUint(meta["last_tick"], 10, 64); err != nil {
		return fmt.Errorf("last tick: %w", err)
	}
	if cp.WaterLevel, err = strconv.ParseFloat(meta["water_level"], 64); err != nil {
		return fmt.Errorf("water level: %w", err)
	}
	targets := map[string]any{
		"options":       &cp.Options,
		"globals":       &cp.Globals,
		"outbreaks":     &cp.Outbreaks,
		"waves":         &cp.Waves,
		"magnetosphere": &cp.Magnetosphere,
	}
	for k, dst := range targets {
		raw, ok := meta[k]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}
