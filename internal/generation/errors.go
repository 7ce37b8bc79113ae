package generation

import (
	"fmt"

	"pbassistant/backend/internal/domain"
)

// ProviderError is returned for any failed or unusable provider call.
// It matches domain.ErrProvider under errors.Is.
type ProviderError struct {
	StatusCode int    // 0 when no HTTP response was received
	Body       string // response body, capped
	Message    string
	Err        error // transport or decode cause, if any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "generation provider error"
	}
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("generation provider request failed with status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("generation provider request failed with status %d", e.StatusCode)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("generation provider: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("generation provider: %v", e.Err)
	default:
		return "generation provider: " + e.Message
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == domain.ErrProvider }
