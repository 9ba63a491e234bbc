package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanImage is an image owned by the backend, such as the swapchain depth attachment.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// ImageCreate creates a 2D optimal tiled image with its memory and, when createView is set, a view.
func ImageCreate(device Device, width, height uint32, format vk.Format, usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags, createView bool, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	info := &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	handle, memory, err := device.CreateImage(info, memoryFlags)
	if err != nil {
		return nil, err
	}
	image := &VulkanImage{
		Handle: handle,
		Memory: memory,
		Width:  width,
		Height: height,
	}
	if createView {
		if err := image.CreateView(device, format, aspect); err != nil {
			image.Destroy(device)
			return nil, err
		}
	}
	return image, nil
}

func (vi *VulkanImage) CreateView(device Device, format vk.Format, aspect vk.ImageAspectFlags) error {
	view, err := device.CreateImageView(&vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	})
	if err != nil {
		return err
	}
	vi.View = view
	return nil
}

func (vi *VulkanImage) Destroy(device Device) {
	if vi.View != nil {
		device.DestroyImageView(vi.View)
		vi.View = nil
	}
	if vi.Handle != vk.NullImage {
		device.DestroyImage(vi.Handle, vi.Memory)
		vi.Handle = vk.NullImage
		vi.Memory = vk.NullDeviceMemory
	}
}
