package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

// FrameSubmitter hands the pre-recorded sequence of a frame to the graphics queue. It
// never waits; fences and semaphores belong to the backend's frame loop.
type FrameSubmitter struct {
	device    Device
	ctx       *SwapchainContext
	Sequences *CommandSequences
}

func NewFrameSubmitter(device Device, ctx *SwapchainContext) *FrameSubmitter {
	return &FrameSubmitter{device: device, ctx: ctx}
}

func (f *FrameSubmitter) Submit(frame renderer.FrameInfo) error {
	if f.Sequences == nil {
		return fmt.Errorf("%w: no command sequences recorded", core.ErrNotInitialized)
	}
	if f.Sequences.Stale(f.ctx.Generation, f.ctx.Extent) {
		return fmt.Errorf("%w: sequences recorded for swapchain generation %d, current is %d",
			core.ErrNeedsRebuild, f.Sequences.Generation, f.ctx.Generation)
	}
	if int(frame.Slot) >= len(f.ctx.InFlight) {
		return fmt.Errorf("%w: frame slot %d out of %d", core.ErrNeedsRebuild, frame.Slot, len(f.ctx.InFlight))
	}
	cb, err := f.Sequences.At(frame.Slot, frame.ImageIndex)
	if err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{f.ctx.ImageAvailable[frame.Slot]},
		// Color writes wait for the image; earlier stages may start right away.
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{f.ctx.RenderComplete[frame.Slot]},
	}
	if err := f.device.QueueSubmit(f.ctx.Queue, []vk.SubmitInfo{submit}, f.ctx.InFlight[frame.Slot]); err != nil {
		if errors.Is(err, core.ErrNeedsRebuild) {
			return fmt.Errorf("submitting frame slot %d image %d: %w", frame.Slot, frame.ImageIndex, err)
		}
		core.LogError("vkQueueSubmit failed for slot %d image %d: %s", frame.Slot, frame.ImageIndex, err)
		return fmt.Errorf("submitting frame slot %d image %d: %w", frame.Slot, frame.ImageIndex, err)
	}
	return nil
}
