package nav

import (
	"errors"
	"fmt"
)

// ErrBlocked marks a navigation that completed but landed on an anti-bot
// block page. Callers surface it so the retry engine can treat the load as
// transient.
var ErrBlocked = errors.New("soft block detected")

// StructuralError reports a page that loaded but no longer carries the
// shape the extraction logic expects. It is never retried: the same page
// will keep coming back without the expected container.
type StructuralError struct {
	Expected string
	URL      string
}

func (e *StructuralError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("page structure mismatch: %s not found", e.Expected)
	}
	return fmt.Sprintf("page structure mismatch: %s not found at %s", e.Expected, e.URL)
}

// ExtractionError is the terminal failure for one unit of work, carrying
// the stage that gave up and how many attempts it spent.
type ExtractionError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
