package ringbuffer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MdSalmanTd/noiceguard/pkg/ringbuffer"
)

func TestCapacityInvariant(t *testing.T) {
	r := ringbuffer.New(16)
	require.Equal(t, 16, r.Capacity())
	require.Equal(t, 0, r.AvailableRead())
	require.Equal(t, 16, r.AvailableWrite())

	n := r.Write([]float32{1, 2, 3, 4, 5})
	require.Equal(t, 5, n)
	require.Equal(t, 5, r.AvailableRead())
	require.Equal(t, 11, r.AvailableWrite())
	require.Equal(t, r.Capacity(), r.AvailableRead()+r.AvailableWrite())
}

func TestFIFOOrder(t *testing.T) {
	r := ringbuffer.New(8)
	r.Write([]float32{1, 2, 3})
	out := make([]float32, 3)
	n := r.Read(out)
	require.Equal(t, 3, n)
	require.Equal(t, []float32{1, 2, 3}, out)
}

func TestOverflowDropsOnlyOverflow(t *testing.T) {
	r := ringbuffer.New(4)
	n := r.Write([]float32{1, 2, 3, 4, 5, 6})
	require.Equal(t, 4, n)

	out := make([]float32, 4)
	require.Equal(t, 4, r.Read(out))
	require.Equal(t, []float32{1, 2, 3, 4}, out)
}

func TestUnderrunShortRead(t *testing.T) {
	r := ringbuffer.New(8)
	r.Write([]float32{1, 2})

	out := make([]float32, 5)
	n := r.Read(out)
	require.Equal(t, 2, n)
	require.Equal(t, []float32{1, 2}, out[:n])
}

func TestInterleavedWriteRead(t *testing.T) {
	r := ringbuffer.New(4)
	r.Write([]float32{1, 2, 3})

	out := make([]float32, 2)
	require.Equal(t, 2, r.Read(out))
	require.Equal(t, []float32{1, 2}, out)

	require.Equal(t, 3, r.Write([]float32{4, 5, 6}))

	rest := make([]float32, 4)
	n := r.Read(rest)
	require.Equal(t, 4, n)
	require.Equal(t, []float32{3, 4, 5, 6}, rest)
}

func TestResetEmpties(t *testing.T) {
	r := ringbuffer.New(4)
	r.Write([]float32{1, 2, 3})
	r.Reset()
	require.Equal(t, 0, r.AvailableRead())
	require.Equal(t, 4, r.AvailableWrite())
}
