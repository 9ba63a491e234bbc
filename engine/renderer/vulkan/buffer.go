package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

const (
	hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)

/**
 * @brief A vk buffer together with the memory bound to it.
 */
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags
}

func NewBuffer(device Device, size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	handle, memory, err := device.CreateBuffer(&info, properties)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		Handle: handle,
		Memory: memory,
		Size:   size,
		Usage:  usage,
	}, nil
}

// NewDeviceLocalBuffer creates a device local buffer and fills it with data through a
// temporary staging buffer.
func NewDeviceLocalBuffer(device Device, usage vk.BufferUsageFlags, data []byte) (*Buffer, error) {
	size := vk.DeviceSize(len(data))
	if size == 0 {
		return nil, fmt.Errorf("cannot upload an empty buffer")
	}

	staging, err := NewBuffer(device, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostVisible)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(device)

	if err := staging.Load(device, 0, data); err != nil {
		return nil, err
	}

	buffer, err := NewBuffer(device, size, usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), deviceLocal)
	if err != nil {
		return nil, err
	}

	err = device.SubmitImmediate(func(cb vk.CommandBuffer) {
		device.CmdCopyBuffer(cb, staging.Handle, buffer.Handle, []vk.BufferCopy{{Size: size}})
	})
	if err != nil {
		buffer.Destroy(device)
		return nil, err
	}
	return buffer, nil
}

// Load copies data into host visible memory at offset.
func (b *Buffer) Load(device Device, offset vk.DeviceSize, data []byte) error {
	if offset+vk.DeviceSize(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, b.Size)
	}
	return device.WriteMemory(b.Memory, offset, data)
}

func (b *Buffer) Destroy(device Device) {
	if b.Handle == vk.NullBuffer && b.Memory == vk.NullDeviceMemory {
		return
	}
	device.DestroyBuffer(b.Handle, b.Memory)
	b.Handle = vk.NullBuffer
	b.Memory = vk.NullDeviceMemory
}
