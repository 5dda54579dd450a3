package buffered

import (
	"testing"

	"github.com/i5heu/GoMonitorQueue/internal/queue"
	"github.com/stretchr/testify/assert"
)

var _ queue.Interface[int] = (*Queue[int])(nil)

func TestTryOps(t *testing.T) {
	q := New[int](1)
	assert.True(t, q.TryPut(7))
	assert.False(t, q.TryPut(8))
	assert.Equal(t, 1, q.Len())

	v, ok := q.TryGet()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = q.TryGet()
	assert.False(t, ok)
	assert.Panics(t, func() { New[int](0) })
}
