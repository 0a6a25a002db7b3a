package constants

// ExtractionStatus is the canonical status for rows in extractions.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ExtractionStatus = "pending"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusFailed     ExtractionStatus = "failed"
)

// Terminal reports whether no further transition happens without a re-extract.
func (s ExtractionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranslationStatus tracks the cloud viewer translation of a BIM model.
type TranslationStatus string

const (
	TranslationPending    TranslationStatus = "pending"
	TranslationInProgress TranslationStatus = "in_progress"
	TranslationSuccess    TranslationStatus = "success"
	TranslationFailed     TranslationStatus = "failed"
)

// MaxErrorMessageLen caps error_message on failed extractions.
const MaxErrorMessageLen = 2000
