package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, device Device, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	return createSwapchain(context, device, width, height, vsync)
}

// Recreate destroys the swapchain and builds a new one at the given size. Framebuffers are
// left to the caller since they depend on the render pass.
func (vs *VulkanSwapchain) Recreate(context *VulkanContext, device Device, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	if err := device.WaitIdle(); err != nil {
		return nil, err
	}
	vs.destroySwapchain(context, device)
	return createSwapchain(context, device, width, height, vsync)
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext, device Device) {
	vs.destroySwapchain(context, device)
}

// AcquireNextImageIndex returns an error matching core.ErrNeedsRebuild when the swapchain is
// out of date. A suboptimal swapchain still hands out the image.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, checkResult("vkAcquireNextImage", result)
	}
	err := checkResult("vkAcquireNextImage", result)
	core.LogError("Failed to acquire swapchain image: %s", err)
	return 0, err
}

// Present returns the image to the swapchain. An out of date or suboptimal swapchain is
// reported with an error matching core.ErrNeedsRebuild.
func (vs *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	return context.LockPool.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result := vk.QueuePresent(presentQueue, &presentInfo)
		if result != vk.Success && result != vk.Suboptimal && result != vk.ErrorOutOfDate {
			core.LogError("Failed to present swap chain image: %s", VulkanResultString(result, true))
		}
		return checkResult("vkQueuePresent", result)
	})
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func chooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != vk.MaxUint32 {
		return capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	low, high := capabilities.MinImageExtent, capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  math.Clamp(width, low.Width, high.Width),
		Height: math.Clamp(height, low.Height, high.Height),
	}
}

func createSwapchain(context *VulkanContext, device Device, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	// Capabilities change with the window size.
	support := &context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, support); err != nil {
		return nil, setupError("swapchain support", err)
	}
	if len(support.Formats) == 0 {
		return nil, setupError("swapchain", fmt.Errorf("surface reports no formats"))
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		Extent:      chooseExtent(support.Capabilities, width, height),
	}
	presentMode := choosePresentMode(support.PresentModes, vsync)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	}

	var handle vk.Swapchain
	err := context.LockPool.SafeCall(SwapchainManagement, func() error {
		return checkResult("vkCreateSwapchain", vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle))
	})
	if err != nil {
		return nil, setupError("swapchain", err)
	}
	swapchain.Handle = handle

	if err := checkResult("vkGetSwapchainImages", vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, nil)); err != nil {
		swapchain.destroySwapchain(context, device)
		return nil, setupError("swapchain images", err)
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := checkResult("vkGetSwapchainImages", vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images)); err != nil {
		swapchain.destroySwapchain(context, device)
		return nil, setupError("swapchain images", err)
	}

	// Views
	swapchain.Views = make([]vk.ImageView, 0, swapchain.ImageCount)
	for _, image := range swapchain.Images {
		view, err := device.CreateImageView(&vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			swapchain.destroySwapchain(context, device)
			return nil, setupError("swapchain image view", err)
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	// Depth resources
	if !DeviceDetectDepthFormat(context.Device) {
		context.Device.DepthFormat = vk.FormatUndefined
		swapchain.destroySwapchain(context, device)
		return nil, setupError("depth format", fmt.Errorf("no supported depth format"))
	}

	depthAttachment, err := ImageCreate(
		device,
		swapchain.Extent.Width,
		swapchain.Extent.Height,
		context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		swapchain.destroySwapchain(context, device)
		return nil, setupError("depth attachment", err)
	}
	swapchain.DepthAttachment = depthAttachment

	core.LogInfo("Swapchain created with %d images at %dx%d.", swapchain.ImageCount, swapchain.Extent.Width, swapchain.Extent.Height)
	return swapchain, nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext, device Device) {
	for _, framebuffer := range vs.Framebuffers {
		framebuffer.Destroy(context)
	}
	vs.Framebuffers = nil

	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(device)
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		device.DestroyImageView(view)
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0

	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
