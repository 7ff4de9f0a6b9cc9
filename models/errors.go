package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLaunch       = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation   = "NAVIGATION_TIMEOUT"
	ErrCodeSelector     = "SELECTOR_TIMEOUT"
	ErrCodeBotChallenge = "BOT_CHALLENGE"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
