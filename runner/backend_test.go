package runner

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/TopOpt/linalg"
)

// ============================================================================
// Backend selection
// ============================================================================

func TestReferenceBackend(t *testing.T) {
	b := Reference()
	assert.Equal(t, "pcg-workspace", b.Name)
	assert.False(t, b.Accelerated)
	s := b.New(3)
	_, ok := s.(*linalg.WorkspaceSolver)
	assert.True(t, ok)
}

func TestSelectorDefaultsToReference(t *testing.T) {
	var s Selector
	b := s.Backend()
	assert.Equal(t, Reference().Name, b.Name)
	assert.False(t, b.Accelerated)
}

// The accelerated request must always yield a working backend, whether or not
// a device exists.
func TestSelectorAcceleratedRequest(t *testing.T) {
	var buf bytes.Buffer
	s := &Selector{
		PreferAccelerated: true,
		Logger:            slog.New(slog.NewTextHandler(&buf, nil)),
	}
	first := s.Backend()
	second := s.Backend()
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, 1, strings.Count(buf.String(), "solver backend selected"), "probe runs once")

	A, err := linalg.NewCSRMatrix(2, []uint32{0, 2, 4}, []uint32{0, 1, 0, 1}, []float64{4, 1, 1, 3})
	require.NoError(t, err)
	solver := first.New(2)
	if f, ok := solver.(interface{ Free() }); ok {
		defer f.Free()
	}
	res := solver.Solve(A, []float64{1, 2}, nil, 1e-12, 100)
	assert.InDeltaSlice(t, []float64{1.0 / 11, 7.0 / 11}, res.X, 1e-6)
}

// ============================================================================
// Kernel program
// ============================================================================

func TestLaunchShape(t *testing.T) {
	blocks, reduce := launchShape(1)
	assert.Equal(t, 1, blocks)
	assert.Equal(t, 1, reduce)

	blocks, reduce = launchShape(blockSize + 1)
	assert.Equal(t, 2, blocks)
	assert.Equal(t, 2, reduce)

	blocks, reduce = launchShape(blockSize * (maxReduceBlocks + 10))
	assert.Equal(t, maxReduceBlocks+10, blocks)
	assert.Equal(t, maxReduceBlocks, reduce)
}

func TestProgramSource(t *testing.T) {
	src := programSource(2562)
	assert.Contains(t, src, "#define NROWS 2562\n")
	assert.Contains(t, src, "#define NBLOCKS 11\n")
	assert.Contains(t, src, "typedef unsigned int index_t;")
	for _, name := range kernelNames {
		assert.Contains(t, src, "@kernel void "+name+"(")
	}
}
