package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxlate/voxlate/internal/jobs"
	"github.com/voxlate/voxlate/pkg/log"
)

// Translator is the remote translation collaborator.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}

// Synthesizer is the remote speech synthesis collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, targetLanguage string) ([]byte, error)
}

// progressStep is how many percent each resolved unit is worth. The last 10%
// is reserved for assembly, so unit progress saturates at 90.
const (
	progressStep = 5
	progressCap  = 90
)

// Stage fans TranslationUnits out to a bounded pool of workers that translate
// and synthesize each unit. Units may resolve in any order; ordering is
// restored downstream by the assembler using sequence numbers. A failed unit
// is logged and reported as a skip rather than aborting the job.
type Stage struct {
	translator  Translator
	synthesizer Synthesizer
	registry    *jobs.Registry
	workers     int
	unitTimeout time.Duration

	completed atomic.Int64
}

func NewStage(translator Translator, synthesizer Synthesizer, registry *jobs.Registry, workers int, unitTimeout time.Duration) *Stage {
	if workers <= 0 {
		workers = 1
	}
	return &Stage{
		translator:  translator,
		synthesizer: synthesizer,
		registry:    registry,
		workers:     workers,
		unitTimeout: unitTimeout,
	}
}

// Run processes units for the given job until the input channel closes. The
// returned channel carries one Result per consumed unit and closes once all
// in-flight work has drained.
func (s *Stage) Run(ctx context.Context, job *jobs.Record, units <-chan TranslationUnit) <-chan Result {
	out := make(chan Result, unitChannelCapacity)

	go func() {
		defer close(out)

		group, groupCtx := errgroup.WithContext(ctx)
		for i := 0; i < s.workers; i++ {
			group.Go(func() error {
				for unit := range units {
					result := s.process(groupCtx, job, unit)
					select {
					case out <- result:
					case <-groupCtx.Done():
						return groupCtx.Err()
					}
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			log.Warn("Job %s: worker pool stopped early: %v", job.ID, err)
		}
	}()

	return out
}

func (s *Stage) process(ctx context.Context, job *jobs.Record, unit TranslationUnit) Result {
	unitCtx := ctx
	if s.unitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, s.unitTimeout)
		defer cancel()
	}

	translated, err := s.translator.Translate(unitCtx, unit.Text, job.SourceLanguage, job.TargetLanguage)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = fmt.Errorf("empty translation")
	}
	if err != nil {
		log.Error("Job %s: unit %d translation failed, skipping: %v", job.ID, unit.Seq, err)
		s.finishUnit(job, unit, "", nil)
		return Result{Seq: unit.Seq, Skipped: true}
	}

	audio, err := s.synthesizer.Synthesize(unitCtx, translated, job.TargetLanguage)
	if err == nil && len(audio) == 0 {
		err = fmt.Errorf("empty audio")
	}
	if err != nil {
		log.Error("Job %s: unit %d synthesis failed, skipping: %v", job.ID, unit.Seq, err)
		s.finishUnit(job, unit, "", nil)
		return Result{Seq: unit.Seq, Skipped: true}
	}

	s.finishUnit(job, unit, translated, audio)
	return Result{Seq: unit.Seq, Bytes: audio}
}

// finishUnit records the outcome of one unit: the segment log entry on
// success, the saturating progress bump in both cases, and the intermediate
// fragment file when a working directory is available.
func (s *Stage) finishUnit(job *jobs.Record, unit TranslationUnit, translated string, audio []byte) {
	completed := int(s.completed.Add(1))
	progress := completed * progressStep
	if progress > progressCap {
		progress = progressCap
	}

	_, err := s.registry.Update(job.ID, func(record *jobs.Record) {
		if translated != "" {
			record.Segments = append(record.Segments, jobs.Segment{
				OriginalText:   unit.Text,
				TranslatedText: translated,
			})
		}
		if progress > record.Progress {
			record.Progress = progress
		}
	})
	if err != nil {
		log.Error("Job %s: failed to record unit %d: %v", job.ID, unit.Seq, err)
	}

	if len(audio) > 0 && job.WorkDir != "" {
		fragmentPath := filepath.Join(job.WorkDir, fmt.Sprintf("segment_%d.mp3", unit.Seq))
		if err := os.WriteFile(fragmentPath, audio, 0o644); err != nil {
			log.Warn("Job %s: failed to write fragment %d: %v", job.ID, unit.Seq, err)
		}
	}
}
