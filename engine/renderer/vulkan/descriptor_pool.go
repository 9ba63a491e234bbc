package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

/**
 * @brief A fixed capacity pool: one uniform buffer and one combined image
 * sampler descriptor per set.
 */
type DescriptorPool struct {
	Handle    vk.DescriptorPool
	MaxSets   uint32
	Allocated uint32
}

func NewDescriptorPool(device Device, sets uint32) (*DescriptorPool, error) {
	if sets == 0 {
		return nil, setupError("vkCreateDescriptorPool", fmt.Errorf("pool needs room for at least one set"))
	}
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: sets},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: sets},
	}
	handle, err := device.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       sets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	})
	if err != nil {
		return nil, setupError("vkCreateDescriptorPool", err)
	}
	return &DescriptorPool{Handle: handle, MaxSets: sets}, nil
}

// Allocate takes count sets of layout from the pool. Asking for more than the pool has
// left fails with an error matching core.ErrPoolExhausted.
func (p *DescriptorPool) Allocate(device Device, layout *DescriptorLayout, count uint32) ([]vk.DescriptorSet, error) {
	if p.Allocated+count > p.MaxSets {
		return nil, fmt.Errorf("allocating %d descriptor sets with %d of %d in use: %w",
			count, p.Allocated, p.MaxSets, &ResultError{Op: "vkAllocateDescriptorSets", Result: vk.ErrorOutOfPoolMemory})
	}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout.SetLayout
	}
	sets, err := device.AllocateDescriptorSets(&vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("allocating %d descriptor sets: %w", count, err)
	}
	p.Allocated += count
	return sets, nil
}

// Destroy frees the pool and, with it, every set allocated from it.
func (p *DescriptorPool) Destroy(device Device) {
	if p.Handle != vk.NullDescriptorPool {
		device.DestroyDescriptorPool(p.Handle)
		p.Handle = vk.NullDescriptorPool
	}
	p.Allocated = 0
}

// BindDescriptorSets allocates one set per transform buffer and points each at its buffer
// and at texture, in a single update.
func BindDescriptorSets(device Device, pool *DescriptorPool, layout *DescriptorLayout, transforms []*Buffer, texture *Texture) ([]vk.DescriptorSet, error) {
	if len(transforms) == 0 {
		return nil, fmt.Errorf("%w: no transform buffers to bind", core.ErrInvalidBinding)
	}
	if texture == nil {
		return nil, fmt.Errorf("%w: no texture to bind", core.ErrInvalidBinding)
	}
	for i, buffer := range transforms {
		if buffer.Size < TransformDataSize {
			return nil, fmt.Errorf("%w: transform buffer %d holds %d bytes, need %d",
				core.ErrInvalidBinding, i, buffer.Size, TransformDataSize)
		}
	}

	sets, err := pool.Allocate(device, layout, uint32(len(transforms)))
	if err != nil {
		return nil, setupError("vkAllocateDescriptorSets", err)
	}

	imageInfo := []vk.DescriptorImageInfo{texture.DescriptorImageInfo()}
	writes := make([]vk.WriteDescriptorSet, 0, 2*len(sets))
	for i, set := range sets {
		writes = append(writes,
			vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      TransformBinding,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: transforms[i].Handle,
					Offset: 0,
					Range:  TransformDataSize,
				}},
			},
			vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      TextureBinding,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
				PImageInfo:      imageInfo,
			},
		)
	}
	device.UpdateDescriptorSets(writes)
	return sets, nil
}
