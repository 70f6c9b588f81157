package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/noisecancel/pkg/container"
)

func TestVerifyAll(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.wav")
	require.NoError(t, container.Write(context.Background(), good, 16000, 1, 16, make([]int16, 480)))
	bad := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not RIFF"), 0o644))

	var buf bytes.Buffer
	require.Equal(t, 1, verifyAll(&buf, []string{good, bad}))

	out := buf.String()
	require.Contains(t, out, "File: "+good+"\n - Channels: 1\n - Sample Width: 2 bytes\n - Frame Rate: 16000 Hz\n - Frames: 480\nFile is a valid WAV file.\n")
	require.Contains(t, out, bad+" is not a valid WAV file.\n")
}
