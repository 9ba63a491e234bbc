package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseStackUnwindsInReverse(t *testing.T) {
	var order []string
	stack := releaseStack{}
	for _, name := range []string{"layout", "pool", "pipeline"} {
		name := name
		stack.push(name, func() { order = append(order, name) })
	}
	assert.Equal(t, 3, stack.Len())

	stack.unwind()
	assert.Equal(t, []string{"pipeline", "pool", "layout"}, order)
	assert.Zero(t, stack.Len())

	stack.unwind()
	assert.Len(t, order, 3, "unwinding an empty stack does nothing")
}
