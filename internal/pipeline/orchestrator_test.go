package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/internal/jobs"
)

type fakeResolver struct {
	audioURL string
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, sourceURL string) (string, error) {
	return f.audioURL, f.err
}

// fakeConn emits one scripted transcript fragment per received audio chunk and
// drains the remainder when the stream is finished.
type fakeConn struct {
	startErr error

	mu          sync.Mutex
	language    string
	fragments   []string
	transcripts chan string
	finishOnce  sync.Once
}

func newFakeConn(fragments ...string) *fakeConn {
	return &fakeConn{
		fragments:   fragments,
		transcripts: make(chan string, 32),
	}
}

func (f *fakeConn) Start(ctx context.Context, language string) error {
	f.mu.Lock()
	f.language = language
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeConn) Send(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fragments) > 0 {
		f.transcripts <- f.fragments[0]
		f.fragments = f.fragments[1:]
	}
	return nil
}

func (f *fakeConn) Finish() error {
	f.finishOnce.Do(func() {
		f.mu.Lock()
		for _, fragment := range f.fragments {
			f.transcripts <- fragment
		}
		f.fragments = nil
		f.mu.Unlock()
		close(f.transcripts)
	})
	return nil
}

func (f *fakeConn) Transcripts() <-chan string {
	return f.transcripts
}

func (f *fakeConn) startedLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.language
}

type fakeFactory struct {
	conn *fakeConn
}

func (f *fakeFactory) NewConnection() LiveTranscriber {
	return f.conn
}

type fakeOpener struct {
	data []byte
	err  error
}

func (f *fakeOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// endlessOpener serves an audio stream that never ends, for cancellation
// tests.
type endlessOpener struct{}

type endlessReader struct{}

func (endlessReader) Read(p []byte) (int, error) {
	time.Sleep(time.Millisecond)
	n := len(p)
	if n > 64 {
		n = 64
	}
	return n, nil
}

func (endlessOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return io.NopCloser(endlessReader{}), nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []*jobs.Record
}

func (r *recordingArchiver) ArchiveJob(ctx context.Context, record *jobs.Record) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return nil
}

func (r *recordingArchiver) archived() []*jobs.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*jobs.Record(nil), r.records...)
}

type markingProcessor struct{}

func (markingProcessor) Process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, []byte("[processed]")...), 0o644)
}

func pipelineTestConfig() config.PipelineConfig {
	return config.PipelineConfig{
		FlushChars:     10,
		FlushInterval:  time.Minute,
		WorkerCount:    2,
		UnitTimeout:    5 * time.Second,
		ExtractTimeout: 5 * time.Second,
		ChunkDelay:     0,
	}
}

type orchestratorFixture struct {
	registry *jobs.Registry
	job      *jobs.Record
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T, resolver SourceResolver, conn *fakeConn, opener AudioOpener) *orchestratorFixture {
	t.Helper()

	registry := jobs.NewRegistry(t.TempDir())
	job, err := registry.Create("https://example.com/watch?v=abc", "en", "de")
	require.NoError(t, err)

	orch := NewOrchestrator(
		pipelineTestConfig(),
		registry,
		resolver,
		&fakeFactory{conn: conn},
		opener,
		&fakeTranslator{},
		&fakeSynthesizer{},
	)
	return &orchestratorFixture{registry: registry, job: job, orch: orch}
}

func (f *orchestratorFixture) waitTerminal(t *testing.T) *jobs.Record {
	t.Helper()

	var record *jobs.Record
	require.Eventually(t, func() bool {
		var err error
		record, err = f.registry.Get(f.job.ID)
		return err == nil && record.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond, "job never reached a terminal state")
	return record
}

func TestOrchestrator_CompletesAndWritesTrack(t *testing.T) {
	conn := newFakeConn("hello there", "general kenobi")
	fx := newOrchestratorFixture(t,
		&fakeResolver{audioURL: "https://cdn.example.com/a.m4a"},
		conn,
		&fakeOpener{data: bytes.Repeat([]byte{0x01}, ingestChunkSize*3)},
	)
	archiver := &recordingArchiver{}
	fx.orch.WithOutputProcessor(markingProcessor{}).WithArchiver(archiver)

	go fx.orch.Run(fx.job.ID)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateCompleted, record.State)
	assert.Equal(t, 100, record.Progress)
	assert.Empty(t, record.ErrorDetail)
	require.Len(t, record.Segments, 2)

	expectedPath := filepath.Join(fx.job.WorkDir, OutputFileName)
	assert.Equal(t, expectedPath, record.OutputPath)
	data, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	assert.Equal(t, "A:T:hello there;A:T:general kenobi;[processed]", string(data))

	require.Eventually(t, func() bool {
		return len(archiver.archived()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, jobs.StateCompleted, archiver.archived()[0].State)
	assert.Equal(t, "en", conn.startedLanguage())
}

func TestOrchestrator_SilentSourceCompletesWithoutAudio(t *testing.T) {
	fx := newOrchestratorFixture(t,
		&fakeResolver{audioURL: "https://cdn.example.com/silence.m4a"},
		newFakeConn(),
		&fakeOpener{data: make([]byte, 256)},
	)

	go fx.orch.Run(fx.job.ID)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateCompletedNoAudio, record.State)
	assert.Equal(t, "no audio segments were produced", record.ErrorDetail)
	assert.Empty(t, record.OutputPath)
	assert.NoFileExists(t, filepath.Join(fx.job.WorkDir, OutputFileName))
}

func TestOrchestrator_ResolverFailureFailsJob(t *testing.T) {
	fx := newOrchestratorFixture(t,
		&fakeResolver{err: errs.New(errs.TypeExtraction, "no playable formats found")},
		newFakeConn(),
		&fakeOpener{},
	)

	go fx.orch.Run(fx.job.ID)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateFailed, record.State)
	assert.Contains(t, record.ErrorDetail, "no playable formats found")
}

func TestOrchestrator_TranscriberStartFailureFailsJob(t *testing.T) {
	conn := newFakeConn()
	conn.startErr = fmt.Errorf("dial refused")
	fx := newOrchestratorFixture(t,
		&fakeResolver{audioURL: "https://cdn.example.com/a.m4a"},
		conn,
		&fakeOpener{data: make([]byte, 64)},
	)

	go fx.orch.Run(fx.job.ID)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateFailed, record.State)
	assert.Contains(t, record.ErrorDetail, "dial refused")
}

func TestOrchestrator_StreamOpenFailureFailsJob(t *testing.T) {
	fx := newOrchestratorFixture(t,
		&fakeResolver{audioURL: "https://cdn.example.com/a.m4a"},
		newFakeConn(),
		&fakeOpener{err: fmt.Errorf("403 forbidden")},
	)

	go fx.orch.Run(fx.job.ID)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateFailed, record.State)
	assert.Contains(t, record.ErrorDetail, "403 forbidden")
}

func TestOrchestrator_CancellationStopsIngestion(t *testing.T) {
	fx := newOrchestratorFixture(t,
		&fakeResolver{audioURL: "https://cdn.example.com/live"},
		newFakeConn(),
		endlessOpener{},
	)

	go fx.orch.Run(fx.job.ID)

	require.Eventually(t, func() bool {
		record, err := fx.registry.Get(fx.job.ID)
		return err == nil && record.State == jobs.StateTranscribing
	}, 5*time.Second, 10*time.Millisecond)

	changed, err := fx.registry.Transition(fx.job.ID, jobs.StateCancelled)
	require.NoError(t, err)
	require.True(t, changed)

	record := fx.waitTerminal(t)
	assert.Equal(t, jobs.StateCancelled, record.State)
	assert.Empty(t, record.OutputPath)
	assert.NoFileExists(t, filepath.Join(fx.job.WorkDir, OutputFileName))
}
