package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTraceNPYFloat64(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []float64{0.1, 0.2, 0.3}))

	trace, err := readTraceNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, trace.Samples)
	assert.Empty(t, trace.ParseErrors)
}

func TestReadTraceNPYWidensIntegers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []int16{-3, 0, 1200}))

	trace, err := readTraceNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{-3, 0, 1200}, trace.Samples)
}

func TestReadTraceNPYFloat32(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, npyio.Write(&buf, []float32{0.5, -0.25}))

	trace, err := readTraceNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25}, trace.Samples)
}

func TestReadTraceNPYRejectsGarbage(t *testing.T) {
	_, err := readTraceNPY(bytes.NewReader([]byte("not a numpy file")))
	assert.Error(t, err)
}

func TestLoadTraceFileNPY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.npy")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(f, []float64{1, 2, 3, 4}))
	require.NoError(t, f.Close())

	trace, err := LoadTraceFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, trace.Source)
	assert.Equal(t, 4, trace.Len())
}
