package core

// Key code definitions
type KeyCode uint16

const (
	KEY_ENTER  KeyCode = 0x0D
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_UP     KeyCode = 0x26
	KEY_RIGHT  KeyCode = 0x27
	KEY_DOWN   KeyCode = 0x28
	KEY_F      KeyCode = 0x46
	KEY_P      KeyCode = 0x50
	KEY_R      KeyCode = 0x52

	KEYS_MAX_KEYS KeyCode = 0xFF
)

// KeyContext packs a key code into an event context.
func KeyContext(key KeyCode) EventContext {
	ctx := EventContext{}
	ctx.Data.U16[0] = uint16(key)
	return ctx
}

// KeyFromContext is the inverse of KeyContext.
func KeyFromContext(ctx EventContext) KeyCode {
	return KeyCode(ctx.Data.U16[0])
}
