package jobs

import "time"

type State string

const (
	StateInitializing     State = "initializing"
	StateExtractingAudio  State = "extracting_audio"
	StateTranscribing     State = "transcribing"
	StateCompleted        State = "completed"
	StateCompletedNoAudio State = "completed_no_audio"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// Terminal reports whether no further state transition is permitted.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCompletedNoAudio, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Segment is one completed translation unit, appended as work finishes.
type Segment struct {
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
}

// Record is the state of one dubbing job. ID, SourceURL and the language
// pair are immutable after creation; everything else is mutated through the
// Registry so reads always observe a consistent snapshot.
type Record struct {
	ID             string    `json:"id"`
	SourceURL      string    `json:"source_url"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	State          State     `json:"state"`
	Progress       int       `json:"progress"`
	Segments       []Segment `json:"segments"`
	OutputPath     string    `json:"output_path,omitempty"`
	ErrorDetail    string    `json:"error,omitempty"`
	WorkDir        string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
