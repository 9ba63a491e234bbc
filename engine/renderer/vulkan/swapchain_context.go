package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

// SwapchainContext is what the backend shares with the texture renderer. The backend
// updates it in place when the swapchain is recreated and bumps Generation.
type SwapchainContext struct {
	Device       Device
	RenderPass   vk.RenderPass
	Framebuffers []vk.Framebuffer
	// FramesInFlight * len(Framebuffers), slot major.
	CommandBuffers []vk.CommandBuffer
	PipelineCache  vk.PipelineCache
	Queue          vk.Queue
	Extent         vk.Extent2D
	FramesInFlight uint32

	// One per frame slot.
	ImageAvailable []vk.Semaphore
	RenderComplete []vk.Semaphore
	InFlight       []vk.Fence

	Generation uint64
}

func (c *SwapchainContext) ImageCount() uint32 {
	return uint32(len(c.Framebuffers))
}

func (c *SwapchainContext) Validate() error {
	if c == nil || c.Device == nil {
		return fmt.Errorf("%w: no device in swapchain context", core.ErrInvalidBinding)
	}
	if len(c.Framebuffers) == 0 {
		return fmt.Errorf("%w: swapchain context has no framebuffers", core.ErrInvalidBinding)
	}
	if c.FramesInFlight == 0 {
		return fmt.Errorf("%w: frames in flight must be at least 1", core.ErrInvalidBinding)
	}
	if want := int(c.FramesInFlight) * len(c.Framebuffers); len(c.CommandBuffers) != want {
		return fmt.Errorf("%w: %d command buffers for %d frames in flight and %d framebuffers",
			core.ErrInvalidBinding, len(c.CommandBuffers), c.FramesInFlight, len(c.Framebuffers))
	}
	for name, n := range map[string]int{
		"image available semaphores": len(c.ImageAvailable),
		"render complete semaphores": len(c.RenderComplete),
		"in flight fences":           len(c.InFlight),
	} {
		if n != int(c.FramesInFlight) {
			return fmt.Errorf("%w: %d %s for %d frames in flight", core.ErrInvalidBinding, n, name, c.FramesInFlight)
		}
	}
	return nil
}

// RenderTarget snapshots what command recording needs from the context.
func (c *SwapchainContext) RenderTarget() RenderTarget {
	return RenderTarget{
		RenderPass:     c.RenderPass,
		Framebuffers:   append([]vk.Framebuffer(nil), c.Framebuffers...),
		CommandBuffers: append([]vk.CommandBuffer(nil), c.CommandBuffers...),
		Extent:         c.Extent,
		FramesInFlight: c.FramesInFlight,
		Generation:     c.Generation,
	}
}
