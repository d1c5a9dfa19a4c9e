package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyfulhouse/lamotte-spintouch/internal/testutils"
)

func TestDecodeHexString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "plain hex", input: "01020305", want: []byte{0x01, 0x02, 0x03, 0x05}},
		{name: "0x prefix", input: "0x01020305", want: []byte{0x01, 0x02, 0x03, 0x05}},
		{name: "colon separated", input: "01:02:03:05", want: []byte{0x01, 0x02, 0x03, 0x05}},
		{name: "whitespace and newlines", input: "01 02\n03\t05", want: []byte{0x01, 0x02, 0x03, 0x05}},
		{name: "odd length", input: "0102030", wantErr: true},
		{name: "non-hex characters", input: "zz020305", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeHexString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// GOAL: Verify the decode command handles arguments, files and
// malformed records the way a user would hit them.
func TestDecodeCommand(t *testing.T) {
	record := testutils.NewRecordBuilder().Build()

	resetFlags := func() {
		decodeFile = ""
		decodeDiskSeries = ""
	}

	t.Run("decodes a hex string argument", func(t *testing.T) {
		resetFlags()
		err := runDecode(decodeCmd, []string{hex.EncodeToString(record)})
		assert.NoError(t, err, "a valid record MUST decode")
	})

	t.Run("decodes a binary file", func(t *testing.T) {
		resetFlags()
		path := filepath.Join(t.TempDir(), "result.bin")
		require.NoError(t, os.WriteFile(path, record, 0o644))
		decodeFile = path
		err := runDecode(decodeCmd, nil)
		assert.NoError(t, err)
	})

	t.Run("decodes a hex dump file", func(t *testing.T) {
		resetFlags()
		path := filepath.Join(t.TempDir(), "result.hex")
		require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(record)+"\n"), 0o644))
		decodeFile = path
		err := runDecode(decodeCmd, nil)
		assert.NoError(t, err)
	})

	t.Run("rejects a malformed record", func(t *testing.T) {
		resetFlags()
		err := runDecode(decodeCmd, []string{"deadbeef"})
		require.Error(t, err, "a malformed record MUST be rejected")
	})

	t.Run("requires an input source", func(t *testing.T) {
		resetFlags()
		err := runDecode(decodeCmd, nil)
		require.Error(t, err, "missing input MUST be reported")
	})
}
