package protocol

import "fmt"

// Status is the single-byte device phase code delivered on the status
// characteristic. Only StatusTestComplete triggers a result read; codes
// outside the documented set are vendor-specific and are ignored rather
// than guessed at.
type Status uint8

const (
	StatusInitializing Status = 0x01
	StatusReady        Status = 0x02
	StatusTesting      Status = 0x03
	StatusTestComplete Status = 0x04
	StatusError        Status = 0x05
	StatusIdle         Status = 0x06
)

var statusNames = map[Status]string{
	StatusInitializing: "initializing",
	StatusReady:        "ready",
	StatusTesting:      "testing",
	StatusTestComplete: "test_complete",
	StatusError:        "error",
	StatusIdle:         "idle",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("vendor(0x%02X)", uint8(s))
}

// Known reports whether the code belongs to the documented set.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}
