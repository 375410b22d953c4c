package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	dbutil "github.com/rbenyoussef/wird/internal/db"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

const (
	appName    = "wird"
	dbFileName = "wird.db"
)

// Store persists the entity arena in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the store in the XDG data directory, creating it if needed.
func Open() (*Store, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the store at an explicit path (":memory:" for tests).
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reciters (
			id        TEXT PRIMARY KEY,
			name      TEXT NOT NULL,
			tradition TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recordings (
			id         TEXT PRIMARY KEY,
			reciter_id TEXT NOT NULL REFERENCES reciters(id) ON DELETE CASCADE,
			path       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS segments (
			id                  TEXT PRIMARY KEY,
			recording_id        TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			start_ms            INTEGER NOT NULL,
			end_ms              INTEGER NOT NULL,
			join_ms             INTEGER NOT NULL DEFAULT 0,
			cover_start_chapter INTEGER NOT NULL,
			cover_start_verse   INTEGER NOT NULL,
			cover_end_chapter   INTEGER NOT NULL,
			cover_end_verse     INTEGER NOT NULL,
			tradition           TEXT NOT NULL,
			manual              INTEGER NOT NULL DEFAULT 0,
			confidence          REAL,
			rank                INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_segments_recording ON segments(recording_id);
		CREATE TABLE IF NOT EXISTS remote_sources (
			id         TEXT PRIMARY KEY,
			reciter_id TEXT NOT NULL REFERENCES reciters(id) ON DELETE CASCADE,
			tradition  TEXT NOT NULL,
			base_url   TEXT NOT NULL,
			format     TEXT NOT NULL,
			naming     TEXT NOT NULL,
			rank       INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_sources_reciter ON remote_sources(reciter_id);
	`)
	return err
}

// AddReciter inserts a reciter identity.
func (s *Store) AddReciter(r Reciter) error {
	if !r.Tradition.Valid() {
		return fmt.Errorf("reciter %q: invalid tradition %q", r.Name, r.Tradition)
	}
	_, err := s.db.Exec(
		`INSERT INTO reciters (id, name, tradition) VALUES (?, ?, ?)`,
		r.ID, r.Name, string(r.Tradition))
	return err
}

// ImportReciter inserts a reciter and its remote source atomically, so
// a failed import leaves nothing behind.
func (s *Store) ImportReciter(r Reciter, src RemoteSource) error {
	if !r.Tradition.Valid() {
		return fmt.Errorf("reciter %q: invalid tradition %q", r.Name, r.Tradition)
	}
	if src.ReciterID != r.ID {
		return fmt.Errorf("source %q does not belong to reciter %q", src.ID, r.ID)
	}
	return dbutil.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO reciters (id, name, tradition) VALUES (?, ?, ?)`,
			r.ID, r.Name, string(r.Tradition)); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO remote_sources (id, reciter_id, tradition, base_url, format, naming, rank)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			src.ID, src.ReciterID, string(src.Tradition), src.BaseURL, src.Format, src.Naming, src.Rank)
		return err
	})
}

// Reciter returns a reciter by id.
func (s *Store) Reciter(id string) (*Reciter, error) {
	row := s.db.QueryRow(`SELECT id, name, tradition FROM reciters WHERE id = ?`, id)
	var r Reciter
	var tradition string
	if err := row.Scan(&r.ID, &r.Name, &tradition); err != nil {
		return nil, err
	}
	r.Tradition = session.Tradition(tradition)
	return &r, nil
}

// Reciters returns all reciter identities ordered by name.
func (s *Store) Reciters() ([]Reciter, error) {
	rows, err := s.db.Query(`SELECT id, name, tradition FROM reciters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reciter
	for rows.Next() {
		var r Reciter
		var tradition string
		if err := rows.Scan(&r.ID, &r.Name, &tradition); err != nil {
			return nil, err
		}
		r.Tradition = session.Tradition(tradition)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRecording inserts a recording owned by a reciter.
func (s *Store) AddRecording(r Recording) error {
	_, err := s.db.Exec(
		`INSERT INTO recordings (id, reciter_id, path, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.ReciterID, r.Path, r.CreatedAt.Unix())
	return err
}

// Recording returns a recording by id.
func (s *Store) Recording(id string) (*Recording, error) {
	row := s.db.QueryRow(
		`SELECT id, reciter_id, path, created_at FROM recordings WHERE id = ?`, id)
	return scanRecording(row)
}

// AddSegment inserts a segment annotation. The segment's verse range and
// tradition are validated here so the resolver only ever sees clean rows.
func (s *Store) AddSegment(seg Segment) error {
	if err := seg.Covers.Validate(); err != nil {
		return fmt.Errorf("segment covers: %w", err)
	}
	if !seg.Tradition.Valid() {
		return fmt.Errorf("segment: invalid tradition %q", seg.Tradition)
	}
	if seg.End <= seg.Start {
		return fmt.Errorf("segment: end %v not after start %v", seg.End, seg.Start)
	}
	if seg.Join != 0 {
		if !seg.CrossBoundary() {
			return fmt.Errorf("segment: join %v on single-verse segment", seg.Join)
		}
		if seg.Join <= seg.Start || seg.Join >= seg.End {
			return fmt.Errorf("segment: join %v outside (%v, %v)", seg.Join, seg.Start, seg.End)
		}
	}
	manual := 0
	if seg.Manual {
		manual = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO segments (
			id, recording_id, start_ms, end_ms, join_ms,
			cover_start_chapter, cover_start_verse, cover_end_chapter, cover_end_verse,
			tradition, manual, confidence, rank
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.RecordingID,
		seg.Start.Milliseconds(), seg.End.Milliseconds(), seg.Join.Milliseconds(),
		seg.Covers.Start.Chapter, seg.Covers.Start.Verse,
		seg.Covers.End.Chapter, seg.Covers.End.Verse,
		string(seg.Tradition), manual,
		sql.NullFloat64{Float64: seg.Confidence, Valid: seg.Confidence > 0},
		dbutil.PtrToNullInt64(seg.Rank))
	return err
}

// AddSource registers a remote source for a reciter.
func (s *Store) AddSource(src RemoteSource) error {
	if !src.Tradition.Valid() {
		return fmt.Errorf("source: invalid tradition %q", src.Tradition)
	}
	_, err := s.db.Exec(`
		INSERT INTO remote_sources (id, reciter_id, tradition, base_url, format, naming, rank)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.ReciterID, string(src.Tradition), src.BaseURL, src.Format, src.Naming, src.Rank)
	return err
}

// SourcesFor returns a reciter's remote sources ordered by explicit rank.
func (s *Store) SourcesFor(reciterID string) ([]RemoteSource, error) {
	rows, err := s.db.Query(`
		SELECT id, reciter_id, tradition, base_url, format, naming, rank
		FROM remote_sources WHERE reciter_id = ? ORDER BY rank, id`, reciterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RemoteSource
	for rows.Next() {
		var src RemoteSource
		var tradition string
		if err := rows.Scan(&src.ID, &src.ReciterID, &tradition,
			&src.BaseURL, &src.Format, &src.Naming, &src.Rank); err != nil {
			return nil, err
		}
		src.Tradition = session.Tradition(tradition)
		out = append(out, src)
	}
	return out, rows.Err()
}

// RecordingsFor returns a reciter's recordings, newest first.
func (s *Store) RecordingsFor(reciterID string) ([]Recording, error) {
	rows, err := s.db.Query(`
		SELECT id, reciter_id, path, created_at
		FROM recordings WHERE reciter_id = ? ORDER BY created_at DESC`, reciterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// SegmentsCovering returns a reciter's segments that satisfy a verse:
// same-chapter segments containing it, plus cross-boundary segments whose
// declared end falls on it.
func (s *Store) SegmentsCovering(reciterID string, v quran.VerseRef) ([]Segment, error) {
	rows, err := s.db.Query(`
		SELECT seg.id, seg.recording_id, seg.start_ms, seg.end_ms, seg.join_ms,
		       seg.cover_start_chapter, seg.cover_start_verse,
		       seg.cover_end_chapter, seg.cover_end_verse,
		       seg.tradition, seg.manual, seg.confidence, seg.rank
		FROM segments seg
		JOIN recordings rec ON rec.id = seg.recording_id
		WHERE rec.reciter_id = ?`, reciterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		if segmentSatisfies(*seg, v) {
			out = append(out, *seg)
		}
	}
	return out, rows.Err()
}

// segmentSatisfies applies the coverage rule for one verse.
func segmentSatisfies(seg Segment, v quran.VerseRef) bool {
	if !seg.Covers.Contains(v) {
		return false
	}
	sameChapter := seg.Covers.Start.Chapter == v.Chapter && seg.Covers.End.Chapter == v.Chapter
	return sameChapter || seg.Covers.End == v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var rec Recording
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.ReciterID, &rec.Path, &createdAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

func scanSegment(row rowScanner) (*Segment, error) {
	var seg Segment
	var startMS, endMS, joinMS int64
	var tradition string
	var manual int
	var confidence sql.NullFloat64
	var rank sql.NullInt64
	if err := row.Scan(&seg.ID, &seg.RecordingID, &startMS, &endMS, &joinMS,
		&seg.Covers.Start.Chapter, &seg.Covers.Start.Verse,
		&seg.Covers.End.Chapter, &seg.Covers.End.Verse,
		&tradition, &manual, &confidence, &rank); err != nil {
		return nil, err
	}
	seg.Tradition = session.Tradition(tradition)
	seg.Start = time.Duration(startMS) * time.Millisecond
	seg.End = time.Duration(endMS) * time.Millisecond
	seg.Join = time.Duration(joinMS) * time.Millisecond
	seg.Manual = manual != 0
	seg.Confidence = dbutil.NullFloat64Value(confidence)
	seg.Rank = dbutil.NullInt64ToPtr(rank)
	return &seg, nil
}
