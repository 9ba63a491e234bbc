package vulkan

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

// Vertex3DStride is the size of math.Vertex3D on the GPU: position, normal, texcoord.
const Vertex3DStride = uint32(unsafe.Sizeof(math.Vertex3D{}))

/**
 * @brief Vertex bindings and attributes a pipeline needs to read a mesh.
 */
type VertexInputDescription struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

func Vertex3DInputDescription() VertexInputDescription {
	return VertexInputDescription{
		Bindings: []vk.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    Vertex3DStride,
				InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
			},
		},
		Attributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Position))},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Normal))},
			{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(math.Vertex3D{}.Texcoord))},
		},
	}
}

/**
 * @brief A drawable uploaded to the device. Each mesh owns the pipelines it records with.
 */
type Mesh struct {
	ID   uuid.UUID
	Name string

	VertexBuffer *Buffer
	IndexBuffer  *Buffer
	VertexCount  uint32
	IndexCount   uint32

	Pipeline          vk.Pipeline
	WireframePipeline vk.Pipeline
	Wireframe         bool
}

func NewMesh(device Device, data renderer.MeshData) (*Mesh, error) {
	if len(data.Vertices) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices", data.Name)
	}
	for _, index := range data.Indices {
		if int(index) >= len(data.Vertices) {
			return nil, fmt.Errorf("mesh %q: index %d out of range of %d vertices", data.Name, index, len(data.Vertices))
		}
	}

	mesh := &Mesh{
		ID:          uuid.New(),
		Name:        data.Name,
		VertexCount: uint32(len(data.Vertices)),
		IndexCount:  uint32(len(data.Indices)),
	}

	vertexBytes, err := encodeLittleEndian(data.Vertices)
	if err != nil {
		return nil, err
	}
	mesh.VertexBuffer, err = NewDeviceLocalBuffer(device, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), vertexBytes)
	if err != nil {
		return nil, err
	}

	if mesh.IndexCount > 0 {
		indexBytes, err := encodeLittleEndian(data.Indices)
		if err != nil {
			mesh.Destroy(device)
			return nil, err
		}
		mesh.IndexBuffer, err = NewDeviceLocalBuffer(device, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), indexBytes)
		if err != nil {
			mesh.Destroy(device)
			return nil, err
		}
	}
	return mesh, nil
}

func (m *Mesh) VertexInputDescription() VertexInputDescription {
	return Vertex3DInputDescription()
}

// ActivePipeline is the pipeline the next recording binds.
func (m *Mesh) ActivePipeline() vk.Pipeline {
	if m.Wireframe && m.WireframePipeline != vk.NullPipeline {
		return m.WireframePipeline
	}
	return m.Pipeline
}

// Record binds the mesh pipeline and buffers and issues its draw.
func (m *Mesh) Record(device Device, cb vk.CommandBuffer) {
	device.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, m.ActivePipeline())
	device.CmdBindVertexBuffers(cb, []vk.Buffer{m.VertexBuffer.Handle}, []vk.DeviceSize{0})
	if m.IndexBuffer != nil {
		device.CmdBindIndexBuffer(cb, m.IndexBuffer.Handle, 0, vk.IndexTypeUint32)
		device.CmdDrawIndexed(cb, m.IndexCount, 1, 0, 0, 0)
		return
	}
	device.CmdDraw(cb, m.VertexCount, 1, 0, 0)
}

// Destroy frees the geometry. Pipelines belong to the PipelineSet.
func (m *Mesh) Destroy(device Device) {
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy(device)
		m.IndexBuffer = nil
	}
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy(device)
		m.VertexBuffer = nil
	}
	m.Pipeline = vk.NullPipeline
	m.WireframePipeline = vk.NullPipeline
}

func encodeLittleEndian(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", data, err)
	}
	return buf.Bytes(), nil
}
