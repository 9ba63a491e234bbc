package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestTranslateKey(t *testing.T) {
	tests := []struct {
		key  glfw.Key
		want core.KeyCode
		ok   bool
	}{
		{glfw.KeyF, core.KEY_F, true},
		{glfw.KeyLeft, core.KEY_LEFT, true},
		{glfw.KeyEscape, core.KEY_ESCAPE, true},
		{glfw.KeyQ, 0, false},
	}
	for _, tt := range tests {
		got, ok := translateKey(tt.key)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestResizeContext(t *testing.T) {
	ctx := ResizeContext(1280, 720)
	assert.Equal(t, uint32(1280), ctx.Data.U32[0])
	assert.Equal(t, uint32(720), ctx.Data.U32[1])
}

func TestKeyCallbackFiresEvents(t *testing.T) {
	assert.True(t, core.EventInitialize())
	defer core.EventShutdown()

	var pressed, released []core.KeyCode
	listener := &struct{}{}
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, listener, func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
		pressed = append(pressed, core.KeyFromContext(data))
		return true
	})
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, listener, func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
		released = append(released, core.KeyFromContext(data))
		return true
	})

	keyCallback(nil, glfw.KeyF, 0, glfw.Press, 0)
	keyCallback(nil, glfw.KeyF, 0, glfw.Release, 0)
	keyCallback(nil, glfw.KeyQ, 0, glfw.Press, 0)

	assert.Equal(t, []core.KeyCode{core.KEY_F}, pressed)
	assert.Equal(t, []core.KeyCode{core.KEY_F}, released)
}
