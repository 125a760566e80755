package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS seu_units (
	seu_id        TEXT PRIMARY KEY,
	ts_start      TEXT NOT NULL DEFAULT '',
	ts_end        TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	device_id     TEXT NOT NULL DEFAULT '',
	privacy_level TEXT NOT NULL DEFAULT 'raw_first',
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS channel_raws (
	raw_id              TEXT PRIMARY KEY,
	seu_id              TEXT NOT NULL,
	channel_id          TEXT NOT NULL,
	ts_start            TEXT NOT NULL,
	ts_end              TEXT NOT NULL,
	raw_ref             TEXT NOT NULL,
	raw_hash            TEXT NOT NULL,
	encryption_key_id   TEXT NOT NULL,
	retention_policy_id TEXT NOT NULL,
	consent_policy_id   TEXT NOT NULL,
	quality_flags       TEXT NOT NULL,
	extra_json          TEXT NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_pointers (
	seu_id     TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	raw_id     TEXT NOT NULL,
	PRIMARY KEY (seu_id, channel_id)
);

CREATE TABLE IF NOT EXISTS channel_features (
	seu_id       TEXT NOT NULL,
	channel_id   TEXT NOT NULL,
	feature_json TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (seu_id, channel_id)
);

CREATE TABLE IF NOT EXISTS channel_metas (
	seu_id     TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	meta_json  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (seu_id, channel_id)
);

CREATE TABLE IF NOT EXISTS cubes (
	seu_id         TEXT PRIMARY KEY,
	cube_json      TEXT NOT NULL,
	input_hash     TEXT NOT NULL,
	cognitive_mode TEXT NOT NULL,
	mode_score     REAL NOT NULL,
	stale          INTEGER NOT NULL DEFAULT 0,
	raw_ids_json   TEXT NOT NULL DEFAULT 'null',
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL UNIQUE,
	event_type   TEXT NOT NULL,
	seu_id       TEXT,
	payload_json TEXT NOT NULL,
	emitted_at   TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store persists units, raws, features, metas, cubes and the event log in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region units
// CreateUnit inserts a unit, or refreshes its time bounds and device if the
// unit already exists. created_at is kept from the first insert.
func (s *Store) CreateUnit(ctx context.Context, u seu.Unit) error {
	if u.PrivacyLevel == "" {
		u.PrivacyLevel = seu.DefaultPrivacyLevel
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seu_units (seu_id, ts_start, ts_end, duration_ms, device_id, privacy_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(seu_id) DO UPDATE SET
		   ts_start = excluded.ts_start, ts_end = excluded.ts_end, duration_ms = excluded.duration_ms,
		   device_id = excluded.device_id, privacy_level = excluded.privacy_level`,
		u.SEUID, u.TsStart, u.TsEnd, u.DurationMs, u.DeviceID, u.PrivacyLevel, formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create unit %s: %w", u.SEUID, err)
	}
	return nil
}

// GetUnit reads a unit by ID.
func (s *Store) GetUnit(ctx context.Context, seuID string) (seu.Unit, error) {
	var u seu.Unit
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT seu_id, ts_start, ts_end, duration_ms, device_id, privacy_level, created_at
		 FROM seu_units WHERE seu_id = ?`, seuID,
	).Scan(&u.SEUID, &u.TsStart, &u.TsEnd, &u.DurationMs, &u.DeviceID, &u.PrivacyLevel, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return seu.Unit{}, fmt.Errorf("unit %s: %w", seuID, seu.ErrNotFound)
	}
	if err != nil {
		return seu.Unit{}, fmt.Errorf("get unit %s: %w", seuID, err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// ListUnitIDs returns every unit ID in creation order.
func (s *Store) ListUnitIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT seu_id FROM seu_units ORDER BY created_at, seu_id`)
}

// PendingUnits returns units with all eight raws registered and either no
// cube or a cube built before a raw was replaced.
func (s *Store) PendingUnits(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT u.seu_id FROM seu_units u
		 WHERE (SELECT COUNT(*) FROM raw_pointers p WHERE p.seu_id = u.seu_id) = ?
		   AND NOT EXISTS (SELECT 1 FROM cubes c WHERE c.seu_id = u.seu_id AND c.stale = 0)
		 ORDER BY u.created_at, u.seu_id`, len(seu.Channels),
	)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
// #endregion units

// #region raws
// PutRaw stores an immutable raw record and points its (SEU, channel) slot at
// it. A replaced slot drops that channel's feature and meta and marks any
// stored cube stale, all in one transaction.
func (s *Store) PutRaw(ctx context.Context, r seu.RawRecord) error {
	flags, err := json.Marshal(nonNilFlags(r.QualityFlags))
	if err != nil {
		return fmt.Errorf("marshal quality flags: %w", err)
	}
	extra, err := json.Marshal(nonNilExtra(r.Extra))
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO seu_units (seu_id, created_at) VALUES (?, ?)
		 ON CONFLICT(seu_id) DO NOTHING`,
		r.SEUID, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("ensure unit: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channel_raws (raw_id, seu_id, channel_id, ts_start, ts_end, raw_ref, raw_hash,
		   encryption_key_id, retention_policy_id, consent_policy_id, quality_flags, extra_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RawID, r.SEUID, string(r.ChannelID), r.TsStart, r.TsEnd, r.RawRef, r.RawHash,
		r.EncryptionKeyID, r.RetentionPolicyID, r.ConsentPolicyID, string(flags), string(extra),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert raw: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO raw_pointers (seu_id, channel_id, raw_id) VALUES (?, ?, ?)
		 ON CONFLICT(seu_id, channel_id) DO UPDATE SET raw_id = excluded.raw_id`,
		r.SEUID, string(r.ChannelID), r.RawID,
	)
	if err != nil {
		return fmt.Errorf("point raw: %w", err)
	}

	for _, table := range []string{"channel_features", "channel_metas"} {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE seu_id = ? AND channel_id = ?`,
			r.SEUID, string(r.ChannelID),
		)
		if err != nil {
			return fmt.Errorf("invalidate %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE cubes SET stale = 1 WHERE seu_id = ?`, r.SEUID)
	if err != nil {
		return fmt.Errorf("mark cube stale: %w", err)
	}

	return tx.Commit()
}

// GetRaw reads the current raw record for a (SEU, channel) slot.
func (s *Store) GetRaw(ctx context.Context, seuID string, ch seu.ChannelID) (seu.RawRecord, error) {
	var r seu.RawRecord
	var channel, flags, extra, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT r.raw_id, r.seu_id, r.channel_id, r.ts_start, r.ts_end, r.raw_ref, r.raw_hash,
		        r.encryption_key_id, r.retention_policy_id, r.consent_policy_id,
		        r.quality_flags, r.extra_json, r.created_at
		 FROM raw_pointers p JOIN channel_raws r ON r.raw_id = p.raw_id
		 WHERE p.seu_id = ? AND p.channel_id = ?`, seuID, string(ch),
	).Scan(&r.RawID, &r.SEUID, &channel, &r.TsStart, &r.TsEnd, &r.RawRef, &r.RawHash,
		&r.EncryptionKeyID, &r.RetentionPolicyID, &r.ConsentPolicyID, &flags, &extra, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return seu.RawRecord{}, seu.MissingRaw(seuID, ch)
	}
	if err != nil {
		return seu.RawRecord{}, fmt.Errorf("get raw %s/%s: %w", seuID, ch, err)
	}
	r.ChannelID = seu.ChannelID(channel)
	if err := json.Unmarshal([]byte(flags), &r.QualityFlags); err != nil {
		return seu.RawRecord{}, fmt.Errorf("unmarshal quality flags: %w", err)
	}
	if err := json.Unmarshal([]byte(extra), &r.Extra); err != nil {
		return seu.RawRecord{}, fmt.Errorf("unmarshal extra: %w", err)
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

// RawChannels lists the channels with a registered raw, in channel order.
func (s *Store) RawChannels(ctx context.Context, seuID string) ([]seu.ChannelID, error) {
	ids, err := s.queryIDs(ctx,
		`SELECT channel_id FROM raw_pointers WHERE seu_id = ? ORDER BY channel_id`, seuID,
	)
	if err != nil {
		return nil, err
	}
	out := make([]seu.ChannelID, len(ids))
	for i, id := range ids {
		out[i] = seu.ChannelID(id)
	}
	return out, nil
}
// #endregion raws

// #region features-metas
// PutFeature stores the feature record for one channel, replacing any prior.
func (s *Store) PutFeature(ctx context.Context, seuID string, ch seu.ChannelID, f seu.Feature) error {
	return s.putChannelJSON(ctx, "channel_features", "feature_json", seuID, ch, f)
}

// GetFeature reads the feature record for one channel.
func (s *Store) GetFeature(ctx context.Context, seuID string, ch seu.ChannelID) (seu.Feature, error) {
	var f seu.Feature
	err := s.getChannelJSON(ctx, "channel_features", "feature_json", seuID, ch, &f)
	return f, err
}

// PutMeta stores the meta for its channel, replacing any prior.
func (s *Store) PutMeta(ctx context.Context, seuID string, m seu.ChannelMeta) error {
	return s.putChannelJSON(ctx, "channel_metas", "meta_json", seuID, m.ChannelID, m)
}

// GetMeta reads the meta for one channel.
func (s *Store) GetMeta(ctx context.Context, seuID string, ch seu.ChannelID) (seu.ChannelMeta, error) {
	var m seu.ChannelMeta
	err := s.getChannelJSON(ctx, "channel_metas", "meta_json", seuID, ch, &m)
	return m, err
}

func (s *Store) putChannelJSON(ctx context.Context, table, column, seuID string, ch seu.ChannelID, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (seu_id, channel_id, `+column+`, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(seu_id, channel_id) DO UPDATE SET `+column+` = excluded.`+column+`, created_at = excluded.created_at`,
		seuID, string(ch), string(b), formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("put %s %s/%s: %w", column, seuID, ch, err)
	}
	return nil
}

func (s *Store) getChannelJSON(ctx context.Context, table, column, seuID string, ch seu.ChannelID, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM `+table+` WHERE seu_id = ? AND channel_id = ?`, seuID, string(ch),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s/%s: %w", column, seuID, ch, seu.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s %s/%s: %w", column, seuID, ch, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return nil
}
// #endregion features-metas

// #region cubes
// PutCube stores a cube as the current, fresh cube for its SEU. When the cube
// names the raws it was built from, every one must still be the current raw
// of its channel, otherwise nothing is written and seu.ErrInputsChanged is
// returned.
func (s *Store) PutCube(ctx context.Context, c cube.Cube) error {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cube: %w", err)
	}
	ids, err := json.Marshal(c.RawIDs)
	if err != nil {
		return fmt.Errorf("marshal raw ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if len(c.RawIDs) > 0 {
		current, err := rawPointers(ctx, tx, c.SEUID)
		if err != nil {
			return err
		}
		for ch, id := range c.RawIDs {
			if current[ch] != id {
				return fmt.Errorf("put cube %s: %w: %s now points at %q", c.SEUID, seu.ErrInputsChanged, ch, current[ch])
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cubes (seu_id, cube_json, input_hash, cognitive_mode, mode_score, stale, raw_ids_json, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(seu_id) DO UPDATE SET
		   cube_json = excluded.cube_json, input_hash = excluded.input_hash,
		   cognitive_mode = excluded.cognitive_mode, mode_score = excluded.mode_score,
		   stale = 0, raw_ids_json = excluded.raw_ids_json, created_at = excluded.created_at`,
		c.SEUID, string(b), c.InputHash, string(c.M.CognitiveMode), c.M.ModeScore, string(ids), formatTime(c.PAI.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put cube %s: %w", c.SEUID, err)
	}
	return tx.Commit()
}

func rawPointers(ctx context.Context, tx *sql.Tx, seuID string) (map[seu.ChannelID]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT channel_id, raw_id FROM raw_pointers WHERE seu_id = ?`, seuID)
	if err != nil {
		return nil, fmt.Errorf("query raw pointers: %w", err)
	}
	defer rows.Close()

	out := make(map[seu.ChannelID]string)
	for rows.Next() {
		var ch, id string
		if err := rows.Scan(&ch, &id); err != nil {
			return nil, fmt.Errorf("scan raw pointer: %w", err)
		}
		out[seu.ChannelID(ch)] = id
	}
	return out, rows.Err()
}

// GetCube reads the stored cube for an SEU.
func (s *Store) GetCube(ctx context.Context, seuID string) (cube.Cube, error) {
	var raw, ids string
	err := s.db.QueryRowContext(ctx,
		`SELECT cube_json, raw_ids_json FROM cubes WHERE seu_id = ?`, seuID,
	).Scan(&raw, &ids)
	if errors.Is(err, sql.ErrNoRows) {
		return cube.Cube{}, fmt.Errorf("cube %s: %w", seuID, seu.ErrNotFound)
	}
	if err != nil {
		return cube.Cube{}, fmt.Errorf("get cube %s: %w", seuID, err)
	}
	var c cube.Cube
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return cube.Cube{}, fmt.Errorf("unmarshal cube: %w", err)
	}
	if err := json.Unmarshal([]byte(ids), &c.RawIDs); err != nil {
		return cube.Cube{}, fmt.Errorf("unmarshal raw ids: %w", err)
	}
	return c, nil
}

// ListCubes returns the most recently built cubes first.
func (s *Store) ListCubes(ctx context.Context, limit int) ([]CubeSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seu_id, cognitive_mode, mode_score, input_hash, stale, created_at
		 FROM cubes ORDER BY created_at DESC, seu_id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list cubes: %w", err)
	}
	defer rows.Close()

	var out []CubeSummary
	for rows.Next() {
		var cs CubeSummary
		var modeStr, created string
		var stale int
		if err := rows.Scan(&cs.SEUID, &modeStr, &cs.ModeScore, &cs.InputHash, &stale, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		cs.CognitiveMode = mode.Mode(modeStr)
		cs.Stale = stale != 0
		cs.CreatedAt = parseTime(created)
		out = append(out, cs)
	}
	return out, rows.Err()
}
// #endregion cubes

// #region helpers
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nonNilFlags(f []string) []string {
	if f == nil {
		return []string{}
	}
	return f
}

func nonNilExtra(e map[string]any) map[string]any {
	if e == nil {
		return map[string]any{}
	}
	return e
}
// #endregion helpers
