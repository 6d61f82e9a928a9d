package tracksource

import "fmt"

// Fetch stages, used to label FetchError and the unavailable-sample log line.
const (
	StageRequest = "request"
	StageStatus  = "status"
	StageDecode  = "decode"
)

// FetchError explains why a poll produced KindUnavailable. It never leaves this package
// except through logs.
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("now-playing %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
