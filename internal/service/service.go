package service

import (
	"context"
	"strings"

	"golang.org/x/text/language"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/internal/jobs"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/pkg/log"
)

// Service is the job-facing interface of the dubbing core, consumed by the
// HTTP layer. It owns the registry and spawns one background pipeline per
// started job. The translator is shared with the pipeline so one-shot
// translation requests go through the same provider client.
type Service struct {
	cfg          *config.Config
	registry     *jobs.Registry
	orchestrator *pipeline.Orchestrator
	translator   pipeline.Translator
}

func New(cfg *config.Config, registry *jobs.Registry, orchestrator *pipeline.Orchestrator, translator pipeline.Translator) *Service {
	return &Service{
		cfg:          cfg,
		registry:     registry,
		orchestrator: orchestrator,
		translator:   translator,
	}
}

// Registry exposes the job registry for read-only listing by the HTTP layer.
func (s *Service) Registry() *jobs.Registry {
	return s.registry
}

// StartJob creates a job record and schedules its pipeline, returning the job
// id immediately.
func (s *Service) StartJob(sourceURL, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", errs.New(errs.TypeExtraction, "source URL is required")
	}

	sourceLanguage = s.defaultSourceLanguage(sourceLanguage)
	if sourceLanguage != "auto" {
		if _, err := language.Parse(sourceLanguage); err != nil {
			return "", errs.Wrap(err, errs.TypeInvalidInput, "invalid source language")
		}
	}
	targetLanguage, err := s.normalizeTargetLanguage(targetLanguage)
	if err != nil {
		return "", err
	}

	record, err := s.registry.Create(sourceURL, sourceLanguage, targetLanguage)
	if err != nil {
		return "", err
	}

	log.Info("Job %s: dubbing %s (%s -> %s)", record.ID, sourceURL, sourceLanguage, targetLanguage)
	go s.orchestrator.Run(record.ID)

	return record.ID, nil
}

// GetStatus returns a consistent snapshot of the job record.
func (s *Service) GetStatus(jobID string) (*jobs.Record, error) {
	return s.registry.Get(jobID)
}

// RequestCancel moves the job to cancelled. Requests against a job that is
// already terminal are acknowledged without effect.
func (s *Service) RequestCancel(jobID string) error {
	changed, err := s.registry.Transition(jobID, jobs.StateCancelled)
	if err != nil {
		return err
	}
	if changed {
		log.Info("Job %s: cancellation requested", jobID)
	}
	return nil
}

// Translate performs one standalone translation outside any job, using the
// same provider client and language defaults as the pipeline.
func (s *Service) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errs.New(errs.TypeInvalidInput, "text is required")
	}

	sourceLanguage = s.defaultSourceLanguage(sourceLanguage)
	if sourceLanguage != "auto" {
		if _, err := language.Parse(sourceLanguage); err != nil {
			return "", errs.Wrap(err, errs.TypeInvalidInput, "invalid source language")
		}
	}
	targetLanguage, err := s.normalizeTargetLanguage(targetLanguage)
	if err != nil {
		return "", err
	}

	return s.translator.Translate(ctx, text, sourceLanguage, targetLanguage)
}

// GetOutputPath returns the final track path once the job has completed.
func (s *Service) GetOutputPath(jobID string) (string, error) {
	record, err := s.registry.Get(jobID)
	if err != nil {
		return "", err
	}
	if record.State != jobs.StateCompleted {
		return "", errs.Newf(errs.TypeNotReady, "job %s is %s, output not ready", jobID, record.State)
	}
	return record.OutputPath, nil
}

func (s *Service) defaultSourceLanguage(sourceLanguage string) string {
	sourceLanguage = strings.TrimSpace(sourceLanguage)
	if sourceLanguage == "" {
		sourceLanguage = s.cfg.Language.Source
	}
	return sourceLanguage
}

func (s *Service) normalizeTargetLanguage(targetLanguage string) (string, error) {
	targetLanguage = strings.TrimSpace(targetLanguage)
	if targetLanguage == "" {
		targetLanguage = s.cfg.Language.Target
	}
	if _, err := language.Parse(targetLanguage); err != nil {
		return "", errs.Wrap(err, errs.TypeInvalidInput, "invalid target language")
	}
	return targetLanguage, nil
}
