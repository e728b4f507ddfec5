package statestore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when a get misses its key.
var ErrNotFound = errors.New("statestore: not found")

// Store is the embedded key-value store behind every column family.
// It is safe for concurrent use: goleveldb serializes writes
// internally, and every write here is a single-key put, matching the
// "no multi-key transactions" invariant — components needing more than
// single-key atomicity compose it at a higher layer (EscalationEngine
// owns its own State and only ever persists one row per decision).
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the underlying database handle is still usable,
// for a liveness check's "state store" component.
func (s *Store) Ping() error {
	_, err := s.db.Has([]byte("health:ping"), nil)
	return err
}

func (s *Store) putJSON(key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("statestore: marshal %s: %w", key, err)
	}
	return s.db.Put([]byte(key), buf, nil)
}

func (s *Store) getJSON(key string, v any) error {
	buf, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("statestore: get %s: %w", key, err)
	}
	return json.Unmarshal(buf, v)
}

// PutSession writes rec under sess:<id>.
func (s *Store) PutSession(rec SessionRecord) error {
	return s.putJSON(SessionKey(rec.ID), rec)
}

// GetSession reads the session row for id, or ErrNotFound.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	err := s.getJSON(SessionKey(id), &rec)
	return rec, err
}

// PutTask writes rec under task:<id>.
func (s *Store) PutTask(rec TaskRecord) error {
	return s.putJSON(TaskKey(rec.ID), rec)
}

// GetTask reads the task row for id, or ErrNotFound.
func (s *Store) GetTask(id string) (TaskRecord, error) {
	var rec TaskRecord
	err := s.getJSON(TaskKey(id), &rec)
	return rec, err
}

// PutResult writes rec under result:<task>:<model>.
func (s *Store) PutResult(rec ModelResult) error {
	return s.putJSON(ResultKey(rec.TaskID, string(rec.ModelID)), rec)
}

// GetResult reads one model's result for a task, or ErrNotFound.
func (s *Store) GetResult(taskID, modelID string) (ModelResult, error) {
	var rec ModelResult
	err := s.getJSON(ResultKey(taskID, modelID), &rec)
	return rec, err
}

// ListResults scans every result row for taskID, in key order (which
// is model-id order, since the task id is a fixed prefix).
func (s *Store) ListResults(taskID string) ([]ModelResult, error) {
	prefix := ResultKey(taskID, "")
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var out []ModelResult
	for iter.Next() {
		var rec ModelResult
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("statestore: unmarshal result: %w", err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// PutVote writes rec under vote:<task>.
func (s *Store) PutVote(rec VoteRecord) error {
	return s.putJSON(VoteKey(rec.TaskID), rec)
}

// GetVote reads the voting row for a task, or ErrNotFound.
func (s *Store) GetVote(taskID string) (VoteRecord, error) {
	var rec VoteRecord
	err := s.getJSON(VoteKey(taskID), &rec)
	return rec, err
}

// PutContext writes rec under ctx:<session>.
func (s *Store) PutContext(rec SharedContext) error {
	return s.putJSON(ContextKey(rec.SessionID), rec)
}

// GetContext reads the shared-context row for a session, or
// ErrNotFound.
func (s *Store) GetContext(sessionID string) (SharedContext, error) {
	var rec SharedContext
	err := s.getJSON(ContextKey(sessionID), &rec)
	return rec, err
}

// AppendEvent assigns ev an id (if empty) and writes it under its
// time-ordered event key. Events are immutable: there is no UpdateEvent,
// only AppendEvent and range scans.
func (s *Store) AppendEvent(ev Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	key := EventKey(ev.At.UnixNano(), ev.ID)
	if err := s.putJSON(key, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// ScanEvents returns every event whose timestamp falls in the
// half-open range [fromNanos, toNanos), in chronological order. A
// zero toNanos means "no upper bound".
func (s *Store) ScanEvents(fromNanos, toNanos int64) ([]Event, error) {
	r := &util.Range{Start: []byte(EventKey(fromNanos, ""))}
	if toNanos > 0 {
		r.Limit = []byte(EventKey(toNanos, ""))
	} else {
		r.Limit = util.BytesPrefix([]byte(EventPrefix)).Limit
	}

	iter := s.db.NewIterator(r, nil)
	defer iter.Release()

	var out []Event
	for iter.Next() {
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("statestore: unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
