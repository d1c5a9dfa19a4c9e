package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

// GOAL: Verify each transport failure maps to an actionable hint and
// everything else passes through unchanged.
func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "bluetooth unavailable",
			err:  transport.Errorf(transport.Unavailable, "bluetooth is powered off"),
			want: "Check that Bluetooth is enabled",
		},
		{
			name: "connect timeout",
			err:  transport.Errorf(transport.Timeout, "dial AA:BB:CC:DD:EE:FF"),
			want: "powered on and within range",
		},
		{
			name: "connect failed",
			err:  transport.Errorf(transport.ConnectFailed, "dial refused"),
			want: "only advertises for a short period",
		},
		{
			name: "not connected",
			err:  transport.Errorf(transport.NotConnected, "link lost"),
			want: "claimed by the vendor app",
		},
		{
			name: "wrapped transport error",
			err:  fmt.Errorf("read cycle: %w", transport.Errorf(transport.Timeout, "read")),
			want: "powered on and within range",
		},
		{
			name: "decode error",
			err:  protocol.ErrBadStartSignature,
			want: "malformed result record",
		},
		{
			name: "plain error passes through",
			err:  errors.New("something else entirely"),
			want: "something else entirely",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			assert.Contains(t, got, tt.want, "message MUST include the expected hint")
		})
	}
}
