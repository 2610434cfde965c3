package jobs

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/pkg/file"
)

// Registry is the process-wide lookup table of dubbing jobs. It is shared
// between the HTTP-facing query path and each job's background pipeline, so
// every access goes through one mutex held only for the read or mutation,
// never across a remote call. Records are never removed during process
// lifetime; cancellation is a state transition, not removal.
type Registry struct {
	baseDir string

	mu      sync.RWMutex
	records map[string]*Record
}

func NewRegistry(baseDir string) *Registry {
	return &Registry{
		baseDir: baseDir,
		records: make(map[string]*Record),
	}
}

// Create allocates a new Record in state initializing, creates its working
// directory under the registry base dir and returns a snapshot.
func (r *Registry) Create(sourceURL, sourceLanguage, targetLanguage string) (*Record, error) {
	id := uuid.NewString()
	workDir := filepath.Join(r.baseDir, id)
	if err := file.EnsureDir(workDir); err != nil {
		return nil, errs.Wrap(err, errs.TypeUnknown, "create job directory")
	}

	now := time.Now()
	record := &Record{
		ID:             id,
		SourceURL:      sourceURL,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		State:          StateInitializing,
		Progress:       0,
		Segments:       make([]Segment, 0),
		WorkDir:        workDir,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	r.records[id] = record
	snapshot := cloneRecord(record)
	r.mu.Unlock()

	return snapshot, nil
}

// Get returns a snapshot of the record, or a NotFound error.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	record, ok := r.records[id]
	var snapshot *Record
	if ok {
		snapshot = cloneRecord(record)
	}
	r.mu.RUnlock()

	if !ok {
		return nil, errs.Newf(errs.TypeNotFound, "job %s not found", id)
	}
	return snapshot, nil
}

// List returns snapshots of all records, newest first.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	ret := make([]*Record, 0, len(r.records))
	for _, record := range r.records {
		ret = append(ret, cloneRecord(record))
	}
	r.mu.RUnlock()

	sortRecordsByCreation(ret)
	return ret
}

// Update applies mutate to the record under the registry lock and returns the
// resulting snapshot. Terminal states are final: the mutator runs against a
// working copy, and a mutation that tries to move the state away from a
// terminal state is discarded wholesale, so a finished job can never pick up
// stray progress, output paths or segments from a pipeline that lost the
// race. Discarded mutations are not an error.
func (r *Registry) Update(id string, mutate func(*Record)) (*Record, error) {
	r.mu.Lock()
	record, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return nil, errs.Newf(errs.TypeNotFound, "job %s not found", id)
	}

	prev := record.State
	working := cloneRecord(record)
	mutate(working)
	if prev.Terminal() && working.State != prev {
		snapshot := cloneRecord(record)
		r.mu.Unlock()
		return snapshot, nil
	}
	if working.Progress < 0 {
		working.Progress = 0
	}
	if working.Progress > 100 {
		working.Progress = 100
	}
	working.UpdatedAt = time.Now()
	*record = *working
	snapshot := cloneRecord(record)
	r.mu.Unlock()

	return snapshot, nil
}

// Transition moves the record into next unless the current state is already
// terminal. It reports whether the state actually changed.
func (r *Registry) Transition(id string, next State) (bool, error) {
	changed := false
	_, err := r.Update(id, func(record *Record) {
		if record.State.Terminal() || record.State == next {
			return
		}
		record.State = next
		changed = true
	})
	return changed, err
}

func sortRecordsByCreation(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

func cloneRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	tmp := *record
	tmp.Segments = make([]Segment, len(record.Segments))
	copy(tmp.Segments, record.Segments)
	return &tmp
}
