package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Device is the slice of the logical device the texture renderer drives. Every vk call made
// by the scene, texture, descriptor, pipeline and command code goes through it.
type Device interface {
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateGraphicsPipelines(cache vk.PipelineCache, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
	CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)

	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	// CreateBuffer creates the buffer, allocates memory with the given properties and binds it.
	CreateBuffer(info *vk.BufferCreateInfo, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error)
	DestroyBuffer(buffer vk.Buffer, memory vk.DeviceMemory)
	// WriteMemory maps host visible memory, copies data at offset and unmaps it.
	WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error
	CreateImage(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error)
	DestroyImage(image vk.Image, memory vk.DeviceMemory)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error)
	DestroySampler(sampler vk.Sampler)
	MaxSamplerAnisotropy() float32

	// SubmitImmediate records a one-shot command buffer, submits it and waits for the queue.
	SubmitImmediate(record func(cb vk.CommandBuffer)) error

	BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(cb vk.CommandBuffer) error
	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdPipelineBarrier(cb vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	CmdCopyBufferToImage(cb vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy)
	CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)

	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
	WaitIdle() error
}

// vulkanDevice implements Device on top of the context's logical device.
type vulkanDevice struct {
	context *VulkanContext
	locks   *VulkanLockPool
}

// NewDevice wraps the logical device of context.
func NewDevice(context *VulkanContext) Device {
	return &vulkanDevice{
		context: context,
		locks:   context.LockPool,
	}
}

func (d *vulkanDevice) handle() vk.Device {
	return d.context.Device.LogicalDevice
}

func (d *vulkanDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.handle(), info, d.context.Allocator, &layout))
	})
	return layout, err
}

func (d *vulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorSetLayout(d.handle(), layout, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return checkResult("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.handle(), info, d.context.Allocator, &layout))
	})
	return layout, err
}

func (d *vulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(d.handle(), layout, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) CreateGraphicsPipelines(cache vk.PipelineCache, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, len(infos))
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return checkResult("vkCreateGraphicsPipelines",
			vk.CreateGraphicsPipelines(d.handle(), cache, uint32(len(infos)), infos, d.context.Allocator, pipelines))
	})
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (d *vulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(d.handle(), pipeline, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	err := d.locks.SafeCall(ShaderManagement, func() error {
		return checkResult("vkCreateShaderModule", vk.CreateShaderModule(d.handle(), info, d.context.Allocator, &module))
	})
	return module, err
}

func (d *vulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	_ = d.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(d.handle(), module, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.handle(), info, d.context.Allocator, &pool))
	})
	return pool, err
}

func (d *vulkanDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(d.handle(), pool, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	if info.DescriptorSetCount == 0 {
		return nil, nil
	}
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return checkResult("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.handle(), info, &sets[0]))
	})
	if err != nil {
		return nil, err
	}
	return sets, nil
}

func (d *vulkanDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.handle(), uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

func (d *vulkanDevice) allocate(requirements vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	requirements.Deref()
	index := d.context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(properties))
	if index == -1 {
		return vk.NullDeviceMemory, fmt.Errorf("no memory type matches properties %#x", uint32(properties))
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	err := d.locks.SafeCall(MemoryManagement, func() error {
		return checkResult("vkAllocateMemory", vk.AllocateMemory(d.handle(), &allocateInfo, d.context.Allocator, &memory))
	})
	return memory, err
}

func (d *vulkanDevice) CreateBuffer(info *vk.BufferCreateInfo, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	var buffer vk.Buffer
	err := d.locks.SafeCall(BufferManagement, func() error {
		return checkResult("vkCreateBuffer", vk.CreateBuffer(d.handle(), info, d.context.Allocator, &buffer))
	})
	if err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle(), buffer, &requirements)
	memory, err := d.allocate(requirements, properties)
	if err != nil {
		vk.DestroyBuffer(d.handle(), buffer, d.context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	if err := checkResult("vkBindBufferMemory", vk.BindBufferMemory(d.handle(), buffer, memory, 0)); err != nil {
		d.DestroyBuffer(buffer, memory)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	return buffer, memory, nil
}

func (d *vulkanDevice) DestroyBuffer(buffer vk.Buffer, memory vk.DeviceMemory) {
	_ = d.locks.SafeCall(BufferManagement, func() error {
		if buffer != vk.NullBuffer {
			vk.DestroyBuffer(d.handle(), buffer, d.context.Allocator)
		}
		if memory != vk.NullDeviceMemory {
			vk.FreeMemory(d.handle(), memory, d.context.Allocator)
		}
		return nil
	})
}

func (d *vulkanDevice) WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return d.locks.SafeCall(MemoryManagement, func() error {
		var mapped unsafe.Pointer
		if err := checkResult("vkMapMemory", vk.MapMemory(d.handle(), memory, offset, vk.DeviceSize(len(data)), 0, &mapped)); err != nil {
			return err
		}
		copy(unsafe.Slice((*byte)(mapped), len(data)), data)
		vk.UnmapMemory(d.handle(), memory)
		return nil
	})
}

func (d *vulkanDevice) CreateImage(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	var image vk.Image
	err := d.locks.SafeCall(ImageManagement, func() error {
		return checkResult("vkCreateImage", vk.CreateImage(d.handle(), info, d.context.Allocator, &image))
	})
	if err != nil {
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle(), image, &requirements)
	memory, err := d.allocate(requirements, properties)
	if err != nil {
		vk.DestroyImage(d.handle(), image, d.context.Allocator)
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	if err := checkResult("vkBindImageMemory", vk.BindImageMemory(d.handle(), image, memory, 0)); err != nil {
		d.DestroyImage(image, memory)
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	return image, memory, nil
}

func (d *vulkanDevice) DestroyImage(image vk.Image, memory vk.DeviceMemory) {
	_ = d.locks.SafeCall(ImageManagement, func() error {
		if image != vk.NullImage {
			vk.DestroyImage(d.handle(), image, d.context.Allocator)
		}
		if memory != vk.NullDeviceMemory {
			vk.FreeMemory(d.handle(), memory, d.context.Allocator)
		}
		return nil
	})
}

func (d *vulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	err := d.locks.SafeCall(ImageManagement, func() error {
		return checkResult("vkCreateImageView", vk.CreateImageView(d.handle(), info, d.context.Allocator, &view))
	})
	return view, err
}

func (d *vulkanDevice) DestroyImageView(view vk.ImageView) {
	_ = d.locks.SafeCall(ImageManagement, func() error {
		vk.DestroyImageView(d.handle(), view, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	var sampler vk.Sampler
	err := d.locks.SafeCall(SamplerManagement, func() error {
		return checkResult("vkCreateSampler", vk.CreateSampler(d.handle(), info, d.context.Allocator, &sampler))
	})
	return sampler, err
}

func (d *vulkanDevice) DestroySampler(sampler vk.Sampler) {
	_ = d.locks.SafeCall(SamplerManagement, func() error {
		vk.DestroySampler(d.handle(), sampler, d.context.Allocator)
		return nil
	})
}

func (d *vulkanDevice) MaxSamplerAnisotropy() float32 {
	if d.context.Device.Features.SamplerAnisotropy == vk.False {
		return 1
	}
	limits := d.context.Device.Properties.Limits
	limits.Deref()
	return limits.MaxSamplerAnisotropy
}

func (d *vulkanDevice) SubmitImmediate(record func(cb vk.CommandBuffer)) error {
	cb, err := AllocateAndBeginSingleUse(d.context, d.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	record(cb.Handle)
	return cb.EndSingleUse(d.context, d.context.Device.GraphicsCommandPool, d.context.Device.GraphicsQueue)
}

func (d *vulkanDevice) BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb, info))
}

func (d *vulkanDevice) EndCommandBuffer(cb vk.CommandBuffer) error {
	return checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(cb))
}

func (d *vulkanDevice) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(cb, info, contents)
}

func (d *vulkanDevice) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func (d *vulkanDevice) CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(cb, 0, uint32(len(viewports)), viewports)
}

func (d *vulkanDevice) CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(cb, 0, uint32(len(scissors)), scissors)
}

func (d *vulkanDevice) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb, bindPoint, pipeline)
}

func (d *vulkanDevice) CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (d *vulkanDevice) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cb, 0, uint32(len(buffers)), buffers, offsets)
}

func (d *vulkanDevice) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cb, buffer, offset, indexType)
}

func (d *vulkanDevice) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *vulkanDevice) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *vulkanDevice) CmdPipelineBarrier(cb vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (d *vulkanDevice) CmdCopyBufferToImage(cb vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(cb, buffer, image, layout, uint32(len(regions)), regions)
}

func (d *vulkanDevice) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cb, src, dst, uint32(len(regions)), regions)
}

func (d *vulkanDevice) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return d.locks.SafeQueueCall(uint32(d.context.Device.GraphicsQueueIndex), func() error {
		return checkResult("vkQueueSubmit", vk.QueueSubmit(queue, uint32(len(submits)), submits, fence))
	})
}

func (d *vulkanDevice) WaitIdle() error {
	return d.locks.SafeCall(DeviceManagement, func() error {
		return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.handle()))
	})
}
