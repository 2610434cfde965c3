package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlate/voxlate/internal/jobs"
)

func writeFragment(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestJanitor_SweepRemovesFragmentsOfTerminalJobs(t *testing.T) {
	registry := jobs.NewRegistry(t.TempDir())

	done, err := registry.Create("https://example.com/1", "en", "de")
	require.NoError(t, err)
	_, err = registry.Update(done.ID, func(r *jobs.Record) { r.State = jobs.StateCompleted })
	require.NoError(t, err)

	running, err := registry.Create("https://example.com/2", "en", "de")
	require.NoError(t, err)
	_, err = registry.Update(running.ID, func(r *jobs.Record) { r.State = jobs.StateTranscribing })
	require.NoError(t, err)

	doneFragment := writeFragment(t, done.WorkDir, "segment_0.mp3")
	doneOutput := writeFragment(t, done.WorkDir, "dubbed_audio.mp3")
	runningFragment := writeFragment(t, running.WorkDir, "segment_0.mp3")

	NewJanitor(registry, cron.New(), "@hourly").Sweep()

	assert.NoFileExists(t, doneFragment)
	assert.FileExists(t, doneOutput, "the final track must survive cleanup")
	assert.FileExists(t, runningFragment, "running jobs must not be swept")
}

func TestJanitor_ScheduleAcceptsCronExpr(t *testing.T) {
	registry := jobs.NewRegistry(t.TempDir())
	c := cron.New()

	require.NoError(t, NewJanitor(registry, c, "@hourly").Schedule())
	require.Error(t, NewJanitor(registry, c, "not a schedule").Schedule())
}
