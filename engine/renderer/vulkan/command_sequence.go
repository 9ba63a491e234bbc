package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

/**
 * @brief The swapchain state a set of command sequences is recorded against.
 */
type RenderTarget struct {
	RenderPass   vk.RenderPass
	Framebuffers []vk.Framebuffer
	// FramesInFlight * len(Framebuffers), slot major.
	CommandBuffers []vk.CommandBuffer
	Extent         vk.Extent2D
	FramesInFlight uint32
	Generation     uint64
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

func DefaultClearValues(color [4]float32) ClearValues {
	return ClearValues{Color: color, Depth: 1.0, Stencil: 0}
}

func (c ClearValues) values() []vk.ClearValue {
	return []vk.ClearValue{
		vk.NewClearValue(c.Color[:]),
		vk.NewClearDepthStencil(c.Depth, c.Stencil),
	}
}

/**
 * @brief Pre-recorded draws, one per swapchain image for every frame slot.
 */
type CommandSequences struct {
	// Slot major: Buffers[slot*ImageCount+image].
	Buffers        []vk.CommandBuffer
	ImageCount     uint32
	FramesInFlight uint32
	// Swapchain generation and extent the sequences were recorded for.
	Generation uint64
	Extent     vk.Extent2D
	Clear      ClearValues
}

func (s *CommandSequences) Count() int {
	return len(s.Buffers)
}

// At returns the sequence for a frame slot and swapchain image.
func (s *CommandSequences) At(slot, image uint32) (vk.CommandBuffer, error) {
	if slot >= s.FramesInFlight || image >= s.ImageCount {
		return nil, fmt.Errorf("%w: no sequence for slot %d image %d (%d slots, %d images)",
			core.ErrNeedsRebuild, slot, image, s.FramesInFlight, s.ImageCount)
	}
	return s.Buffers[slot*s.ImageCount+image], nil
}

// Stale reports whether the sequences no longer match the swapchain.
func (s *CommandSequences) Stale(generation uint64, extent vk.Extent2D) bool {
	return s.Generation != generation ||
		s.Extent.Width != extent.Width || s.Extent.Height != extent.Height
}

// RecordCommandSequences records the full draw of scene into every command buffer of target.
// Sequences of slot s bind descriptor set s.
func RecordCommandSequences(device Device, target RenderTarget, layout *DescriptorLayout, sets []vk.DescriptorSet, scene *Scene, clear ClearValues) (*CommandSequences, error) {
	imageCount := uint32(len(target.Framebuffers))
	if imageCount == 0 {
		return nil, fmt.Errorf("%w: render target has no framebuffers", core.ErrInvalidBinding)
	}
	if uint32(len(sets)) != target.FramesInFlight {
		return nil, fmt.Errorf("%w: %d descriptor sets for %d frames in flight", core.ErrInvalidBinding, len(sets), target.FramesInFlight)
	}
	if uint32(len(target.CommandBuffers)) != imageCount*target.FramesInFlight {
		return nil, fmt.Errorf("%w: %d command buffers for %d images and %d frames in flight",
			core.ErrInvalidBinding, len(target.CommandBuffers), imageCount, target.FramesInFlight)
	}

	sequences := &CommandSequences{
		Buffers:        make([]vk.CommandBuffer, 0, len(target.CommandBuffers)),
		ImageCount:     imageCount,
		FramesInFlight: target.FramesInFlight,
		Generation:     target.Generation,
		Extent:         target.Extent,
		Clear:          clear,
	}

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(target.Extent.Width),
		Height:   float32(target.Extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: target.Extent,
	}
	clearValues := clear.values()

	for slot := uint32(0); slot < target.FramesInFlight; slot++ {
		for image := uint32(0); image < imageCount; image++ {
			cb := target.CommandBuffers[slot*imageCount+image]

			if err := device.BeginCommandBuffer(cb, &vk.CommandBufferBeginInfo{
				SType: vk.StructureTypeCommandBufferBeginInfo,
			}); err != nil {
				return nil, setupError(fmt.Sprintf("vkBeginCommandBuffer (slot %d image %d)", slot, image), err)
			}

			device.CmdBeginRenderPass(cb, &vk.RenderPassBeginInfo{
				SType:           vk.StructureTypeRenderPassBeginInfo,
				RenderPass:      target.RenderPass,
				Framebuffer:     target.Framebuffers[image],
				RenderArea:      scissor,
				ClearValueCount: uint32(len(clearValues)),
				PClearValues:    clearValues,
			}, vk.SubpassContentsInline)

			device.CmdSetViewport(cb, []vk.Viewport{viewport})
			device.CmdSetScissor(cb, []vk.Rect2D{scissor})
			device.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, layout.PipelineLayout, 0, []vk.DescriptorSet{sets[slot]})

			for _, mesh := range scene.Meshes {
				mesh.Record(device, cb)
			}

			device.CmdEndRenderPass(cb)

			if err := device.EndCommandBuffer(cb); err != nil {
				return nil, setupError(fmt.Sprintf("vkEndCommandBuffer (slot %d image %d)", slot, image), err)
			}
			sequences.Buffers = append(sequences.Buffers, cb)
		}
	}

	core.LogDebug("Recorded %d command sequences (%d frames in flight x %d images).",
		len(sequences.Buffers), target.FramesInFlight, imageCount)
	return sequences, nil
}
