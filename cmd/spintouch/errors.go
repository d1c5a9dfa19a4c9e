package main

import (
	"errors"
	"fmt"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

// FormatUserError turns internal errors into actionable messages. Errors
// without a known mapping pass through unchanged.
func FormatUserError(err error) string {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.Kind {
		case transport.Unavailable:
			return fmt.Sprintf("%s\nCheck that Bluetooth is enabled and try again.", terr.Msg)
		case transport.Timeout, transport.ConnectFailed:
			return fmt.Sprintf("%v\nMake sure the instrument is powered on and within range. "+
				"A SpinTouch only advertises for a short period after a test completes.", err)
		case transport.NotConnected:
			return fmt.Sprintf("%v\nThe instrument may have been claimed by the vendor app; retry in a moment.", err)
		}
	}

	var derr *protocol.DecodeError
	if errors.As(err, &derr) {
		return fmt.Sprintf("received a malformed result record: %v", err)
	}

	return err.Error()
}
