package source

import (
	"errors"
	"fmt"

	"github.com/jpalmerr/sensorboard/internal/merge"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrSourceUnavailable matches every [SourceUnavailableError].
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedResponse matches every [MalformedResponseError].
	ErrMalformedResponse = errors.New("malformed response")
)

// SourceUnavailableError reports that a sensor's source could not be read:
// network failure, timeout, or a non-success HTTP status.
//
// A sensor that answers with a null reading is not unavailable; that is a
// valid absent value.
type SourceUnavailableError struct {
	SensorID merge.SensorID
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s: source unavailable: %v", subject(e.SensorID), e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSourceUnavailable) hold.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// MalformedResponseError reports a response body that does not have the
// expected shape.
type MalformedResponseError struct {
	SensorID merge.SensorID
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", subject(e.SensorID), e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedResponse) hold.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// Kind names the failure category of err for logs and metrics:
// "unavailable", "malformed" or "other".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "other"
	}
}

// subject names what failed; errors from the shared live snapshot carry no
// sensor until a per-sensor read claims them.
func subject(id merge.SensorID) string {
	if id == "" {
		return "live snapshot"
	}
	return "sensor " + string(id)
}

func unavailable(id merge.SensorID, format string, args ...any) error {
	return &SourceUnavailableError{SensorID: id, Err: fmt.Errorf(format, args...)}
}

func malformed(id merge.SensorID, format string, args ...any) error {
	return &MalformedResponseError{SensorID: id, Err: fmt.Errorf(format, args...)}
}
