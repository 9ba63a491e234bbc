package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrSetupFailed      = errors.New("renderer setup failed")
	ErrNeedsRebuild     = errors.New("command sequences are stale and need a rebuild")
	ErrPoolExhausted    = errors.New("descriptor pool exhausted")
	ErrInvalidBinding   = errors.New("invalid resource binding")
	ErrNotInitialized   = errors.New("renderer not initialized")
)
