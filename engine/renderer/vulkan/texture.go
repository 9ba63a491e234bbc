package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

const TextureFormat = vk.FormatR8g8b8a8Unorm

/**
 * @brief A sampled RGBA texture: image, memory, view and sampler.
 */
type Texture struct {
	Name    string
	Width   uint32
	Height  uint32
	Image   vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Sampler vk.Sampler
}

// NewTexture uploads data through a staging buffer and builds the view and sampler.
// Anisotropic filtering is enabled when maxAnisotropy is above 1, capped at the device limit.
func NewTexture(device Device, data renderer.TextureData, maxAnisotropy float32) (*Texture, error) {
	size := int(data.Width) * int(data.Height) * 4
	if size == 0 || len(data.Pixels) != size {
		return nil, fmt.Errorf("texture %q: expected %dx%d RGBA pixels (%d bytes), got %d bytes",
			data.Name, data.Width, data.Height, size, len(data.Pixels))
	}

	texture := &Texture{
		Name:   data.Name,
		Width:  data.Width,
		Height: data.Height,
	}

	staging, err := NewBuffer(device, vk.DeviceSize(size), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(device)
	if err := staging.Load(device, 0, data.Pixels); err != nil {
		return nil, err
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    TextureFormat,
		Extent: vk.Extent3D{
			Width:  data.Width,
			Height: data.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	texture.Image, texture.Memory, err = device.CreateImage(&imageInfo, deviceLocal)
	if err != nil {
		return nil, err
	}

	err = device.SubmitImmediate(func(cb vk.CommandBuffer) {
		transitionLayout(device, cb, texture.Image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		device.CmdCopyBufferToImage(cb, staging.Handle, texture.Image, vk.ImageLayoutTransferDstOptimal, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: imageInfo.Extent,
		}})
		transitionLayout(device, cb, texture.Image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		texture.Destroy(device)
		return nil, err
	}

	texture.View, err = device.CreateImageView(&vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    texture.Image,
		ViewType: vk.ImageViewType2d,
		Format:   TextureFormat,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	})
	if err != nil {
		texture.Destroy(device)
		return nil, err
	}

	texture.Sampler, err = device.CreateSampler(samplerInfo(maxAnisotropy, device.MaxSamplerAnisotropy()))
	if err != nil {
		texture.Destroy(device)
		return nil, err
	}
	return texture, nil
}

func samplerInfo(requested, limit float32) *vk.SamplerCreateInfo {
	info := &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if requested > 1 && limit > 1 {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = min(requested, limit)
	}
	return info
}

func transitionLayout(device Device, cb vk.CommandBuffer, image vk.Image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	if from == vk.ImageLayoutUndefined {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	device.CmdPipelineBarrier(cb, srcStage, dstStage, []vk.ImageMemoryBarrier{barrier})
}

// DescriptorImageInfo is the combined image sampler written into binding 1.
func (t *Texture) DescriptorImageInfo() vk.DescriptorImageInfo {
	return vk.DescriptorImageInfo{
		Sampler:     t.Sampler,
		ImageView:   t.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
}

func (t *Texture) Destroy(device Device) {
	if t.Sampler != vk.NullSampler {
		device.DestroySampler(t.Sampler)
		t.Sampler = vk.NullSampler
	}
	if t.View != nil {
		device.DestroyImageView(t.View)
		t.View = nil
	}
	if t.Image != vk.NullImage || t.Memory != vk.NullDeviceMemory {
		device.DestroyImage(t.Image, t.Memory)
		t.Image = vk.NullImage
		t.Memory = vk.NullDeviceMemory
	}
}
