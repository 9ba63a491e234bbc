package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// a new one should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	LockPool *VulkanLockPool

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass
	PipelineCache  vk.PipelineCache

	// Number of frames the host may prepare while the device still works on earlier ones.
	FramesInFlight uint32

	// FramesInFlight * image count, slot major.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	// One per frame slot.
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore
	InFlightFences           []*VulkanFence

	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// CommandBufferHandles flattens the graphics command buffers for the swapchain context.
func (vc *VulkanContext) CommandBufferHandles() []vk.CommandBuffer {
	handles := make([]vk.CommandBuffer, len(vc.GraphicsCommandBuffers))
	for i, cb := range vc.GraphicsCommandBuffers {
		handles[i] = cb.Handle
	}
	return handles
}

func (vc *VulkanContext) InFlightFenceHandles() []vk.Fence {
	handles := make([]vk.Fence, len(vc.InFlightFences))
	for i, f := range vc.InFlightFences {
		handles[i] = f.Handle
	}
	return handles
}
