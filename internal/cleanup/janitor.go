package cleanup

import (
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/voxlate/voxlate/internal/jobs"
	"github.com/voxlate/voxlate/pkg/log"
)

// Janitor periodically removes the intermediate segment_<n>.mp3 fragments
// from the working directories of terminal jobs. The final output track and
// the registry entry are left alone.
type Janitor struct {
	registry *jobs.Registry
	cron     *cron.Cron
	cronExpr string
}

func NewJanitor(registry *jobs.Registry, c *cron.Cron, cronExpr string) *Janitor {
	return &Janitor{
		registry: registry,
		cron:     c,
		cronExpr: cronExpr,
	}
}

// Schedule registers the sweep on the cron instance. The caller owns starting
// and stopping the cron.
func (j *Janitor) Schedule() error {
	_, err := j.cron.AddFunc(j.cronExpr, j.Sweep)
	return err
}

// Sweep runs one cleanup pass over all terminal jobs.
func (j *Janitor) Sweep() {
	removed := 0
	for _, record := range j.registry.List() {
		if !record.State.Terminal() || record.WorkDir == "" {
			continue
		}
		removed += removeFragments(record.WorkDir)
	}
	if removed > 0 {
		log.Info("Cleanup: removed %d intermediate fragments", removed)
	}
}

func removeFragments(workDir string) int {
	matches, err := filepath.Glob(filepath.Join(workDir, "segment_*.mp3"))
	if err != nil {
		log.Warn("Cleanup: bad fragment pattern in %s: %v", workDir, err)
		return 0
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			log.Warn("Cleanup: failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
