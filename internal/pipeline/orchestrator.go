package pipeline

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/internal/jobs"
	"github.com/voxlate/voxlate/pkg/log"
)

// SourceResolver turns a media page URL into a streamable audio URL.
type SourceResolver interface {
	Resolve(ctx context.Context, sourceURL string) (string, error)
}

// LiveTranscriber is one live connection to the streaming transcription
// provider. Transcript fragments arrive on Transcripts; the channel closes
// after Finish has been called and the provider has drained.
type LiveTranscriber interface {
	Start(ctx context.Context, language string) error
	Send(chunk []byte) error
	Finish() error
	Transcripts() <-chan string
}

// TranscriberFactory creates one LiveTranscriber per job.
type TranscriberFactory interface {
	NewConnection() LiveTranscriber
}

// AudioOpener opens the resolved audio URL for chunked reading.
type AudioOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// OutputProcessor post-processes the final track in place (format/sample-rate
// conversion). Optional.
type OutputProcessor interface {
	Process(ctx context.Context, path string) error
}

// Archiver persists the segment log of a finished job. Optional.
type Archiver interface {
	ArchiveJob(ctx context.Context, record *jobs.Record) error
}

const ingestChunkSize = 8192

// Orchestrator owns the per-job dubbing pipeline: it wires the ingestion
// loop into the segmenter, the segmenter into the translate/synthesize
// stage, the stage into the assembler, drives the job record's state
// transitions, and reacts to cancellation. One Run call per job, on its own
// goroutine.
type Orchestrator struct {
	cfg         config.PipelineConfig
	registry    *jobs.Registry
	resolver    SourceResolver
	factory     TranscriberFactory
	opener      AudioOpener
	translator  Translator
	synthesizer Synthesizer
	processor   OutputProcessor
	archiver    Archiver
}

func NewOrchestrator(
	cfg config.PipelineConfig,
	registry *jobs.Registry,
	resolver SourceResolver,
	factory TranscriberFactory,
	opener AudioOpener,
	translator Translator,
	synthesizer Synthesizer,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		resolver:    resolver,
		factory:     factory,
		opener:      opener,
		translator:  translator,
		synthesizer: synthesizer,
	}
}

// WithOutputProcessor attaches an optional final-track processor.
func (o *Orchestrator) WithOutputProcessor(p OutputProcessor) *Orchestrator {
	o.processor = p
	return o
}

// WithArchiver attaches an optional segment archiver.
func (o *Orchestrator) WithArchiver(a Archiver) *Orchestrator {
	o.archiver = a
	return o
}

// Run executes the whole pipeline for one job and always leaves the record in
// a terminal state. It never panics outward and never lets an error escape
// the job boundary.
func (o *Orchestrator) Run(jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job %s: pipeline panic: %v", jobID, r)
			o.fail(jobID, errs.Newf(errs.TypeUnknown, "pipeline panic: %v", r))
		}
	}()

	if err := o.run(jobID); err != nil {
		o.fail(jobID, err)
	}
	o.archive(jobID)
}

func (o *Orchestrator) run(jobID string) error {
	job, err := o.registry.Get(jobID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := o.registry.Transition(jobID, jobs.StateExtractingAudio); err != nil {
		return err
	}

	audioURL, err := o.resolveSource(ctx, job.SourceURL)
	if err != nil {
		return err
	}

	conn := o.factory.NewConnection()
	if err := conn.Start(ctx, job.SourceLanguage); err != nil {
		return errs.Wrap(err, errs.TypeTranscriptionConnection, "start transcription connection")
	}

	if _, err := o.registry.Transition(jobID, jobs.StateTranscribing); err != nil {
		return err
	}

	// Ingestion loop: forward source audio to the transcription connection
	// until the stream ends or cancellation is observed.
	ingestDone := make(chan error, 1)
	go func() {
		ingestErr := o.ingest(ctx, jobID, audioURL, conn)
		if err := conn.Finish(); err != nil && ingestErr == nil {
			ingestErr = errs.Wrap(err, errs.TypeTranscriptionConnection, "finish transcription connection")
		}
		ingestDone <- ingestErr
	}()

	segmenter := NewSegmenter(o.cfg.FlushChars, o.cfg.FlushInterval)
	units := segmenter.Run(ctx, conn.Transcripts())

	stage := NewStage(o.translator, o.synthesizer, o.registry, o.cfg.WorkerCount, o.cfg.UnitTimeout)
	results := stage.Run(ctx, job, units)

	assembler := NewAssembler()
	for result := range results {
		assembler.Accept(result)
	}

	if ingestErr := <-ingestDone; ingestErr != nil {
		return ingestErr
	}
	if o.cancelled(jobID) {
		log.Info("Job %s: cancelled after %d assembled fragments", jobID, assembler.FragmentCount())
		return nil
	}
	return o.finalize(ctx, jobID, job.WorkDir, assembler)
}

func (o *Orchestrator) resolveSource(ctx context.Context, sourceURL string) (string, error) {
	resolveCtx := ctx
	if o.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, o.cfg.ExtractTimeout)
		defer cancel()
	}

	audioURL, err := o.resolver.Resolve(resolveCtx, sourceURL)
	if err != nil {
		if errs.IsType(err, errs.TypeExtraction) {
			return "", err
		}
		return "", errs.Wrap(err, errs.TypeExtraction, "resolve source audio")
	}
	if audioURL == "" {
		return "", errs.New(errs.TypeExtraction, "resolver returned empty audio URL")
	}
	return audioURL, nil
}

// ingest streams the resolved audio URL to the transcription connection in
// chunks, checking for cancellation on every iteration.
func (o *Orchestrator) ingest(ctx context.Context, jobID, audioURL string, conn LiveTranscriber) error {
	body, err := o.opener.Open(ctx, audioURL)
	if err != nil {
		return errs.Wrap(err, errs.TypeTranscriptionConnection, "open source audio stream")
	}
	defer body.Close()

	buf := make([]byte, ingestChunkSize)
	for {
		if o.cancelled(jobID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if sendErr := conn.Send(buf[:n]); sendErr != nil {
				return errs.Wrap(sendErr, errs.TypeTranscriptionConnection, "send audio chunk")
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return errs.Wrap(readErr, errs.TypeTranscriptionConnection, "read source audio stream")
		}

		if o.cfg.ChunkDelay > 0 {
			time.Sleep(o.cfg.ChunkDelay)
		}
	}
}

func (o *Orchestrator) finalize(ctx context.Context, jobID, workDir string, assembler *Assembler) error {
	if assembler.Empty() {
		log.Info("Job %s: finished with no audio", jobID)
		_, err := o.registry.Update(jobID, func(record *jobs.Record) {
			record.State = jobs.StateCompletedNoAudio
			record.ErrorDetail = "no audio segments were produced"
		})
		return err
	}

	outputPath := filepath.Join(workDir, OutputFileName)
	if err := assembler.WriteTo(outputPath); err != nil {
		return errs.Wrap(err, errs.TypeUnknown, "write output track")
	}
	if o.processor != nil {
		if err := o.processor.Process(ctx, outputPath); err != nil {
			return errs.Wrap(err, errs.TypeUnknown, "post-process output track")
		}
	}

	log.Info("Job %s: assembled %d fragments into %s", jobID, assembler.FragmentCount(), outputPath)
	_, err := o.registry.Update(jobID, func(record *jobs.Record) {
		record.State = jobs.StateCompleted
		record.OutputPath = outputPath
		record.Progress = 100
	})
	return err
}

// cancelled reports whether the job has been moved to the cancelled state by
// an outside caller.
func (o *Orchestrator) cancelled(jobID string) bool {
	record, err := o.registry.Get(jobID)
	if err != nil {
		return false
	}
	return record.State == jobs.StateCancelled
}

func (o *Orchestrator) fail(jobID string, cause error) {
	if cause == nil {
		return
	}
	_, err := o.registry.Update(jobID, func(record *jobs.Record) {
		if record.State.Terminal() {
			return
		}
		record.State = jobs.StateFailed
		record.ErrorDetail = cause.Error()
	})
	if err != nil {
		log.Error("Job %s: failed to record failure %v: %v", jobID, cause, err)
		return
	}
	log.Error("Job %s: pipeline failed: %v", jobID, cause)
}

func (o *Orchestrator) archive(jobID string) {
	if o.archiver == nil {
		return
	}
	record, err := o.registry.Get(jobID)
	if err != nil {
		return
	}
	if !record.State.Terminal() {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.archiver.ArchiveJob(archiveCtx, record); err != nil {
		log.Warn("Job %s: failed to archive segments: %v", jobID, err)
	}
}
