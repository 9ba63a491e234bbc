package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

var _ Device = (*fakeDevice)(nil)

var fakeHandles uintptr

// fakeHandle mints a distinct non-nil handle outside the Go heap. Handle types are C
// pointers, so they must never point at Go memory.
func fakeHandle() unsafe.Pointer {
	fakeHandles++
	return unsafe.Add(unsafe.Pointer(nil), 0x1000+fakeHandles*16)
}

type fakeSubmit struct {
	commandBuffer vk.CommandBuffer
	wait          []vk.Semaphore
	signal        []vk.Semaphore
	fence         vk.Fence
}

// fakeDevice records every call the renderer makes and tracks which objects are alive.
type fakeDevice struct {
	kinds     map[unsafe.Pointer]string
	created   map[string]int
	destroyed map[string]int
	// Destroys of handles that were never created or already gone.
	invalid []string

	calls    map[string]int
	failures map[string]fakeFailure

	poolMax       map[vk.DescriptorPool]uint32
	poolAllocated map[vk.DescriptorPool]uint32
	updateCalls   int
	writes        []vk.WriteDescriptorSet
	setBuffers    map[vk.DescriptorSet]vk.Buffer

	bufferMemory map[vk.Buffer]vk.DeviceMemory
	memory       map[vk.DeviceMemory][]byte
	busy         map[vk.DeviceMemory]vk.Fence
	hazards      int

	shaderSizes []uint64

	pipelineModes map[vk.Pipeline]vk.PolygonMode
	topologies    map[vk.Pipeline]vk.PrimitiveTopology

	commands   map[vk.CommandBuffer][]string
	boundSets  map[vk.CommandBuffer][]vk.DescriptorSet
	pipelines  map[vk.CommandBuffer][]vk.Pipeline
	submits    []fakeSubmit
	immediates int
	waitIdles  int

	anisotropy float32
}

type fakeFailure struct {
	call   int
	result vk.Result
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		kinds:         make(map[unsafe.Pointer]string),
		created:       make(map[string]int),
		destroyed:     make(map[string]int),
		calls:         make(map[string]int),
		failures:      make(map[string]fakeFailure),
		poolMax:       make(map[vk.DescriptorPool]uint32),
		poolAllocated: make(map[vk.DescriptorPool]uint32),
		setBuffers:    make(map[vk.DescriptorSet]vk.Buffer),
		bufferMemory:  make(map[vk.Buffer]vk.DeviceMemory),
		memory:        make(map[vk.DeviceMemory][]byte),
		busy:          make(map[vk.DeviceMemory]vk.Fence),
		pipelineModes: make(map[vk.Pipeline]vk.PolygonMode),
		topologies:    make(map[vk.Pipeline]vk.PrimitiveTopology),
		commands:      make(map[vk.CommandBuffer][]string),
		boundSets:     make(map[vk.CommandBuffer][]vk.DescriptorSet),
		pipelines:     make(map[vk.CommandBuffer][]vk.Pipeline),
		anisotropy:    16,
	}
}

// failOn makes the n-th call (1 based) of op fail with result.
func (d *fakeDevice) failOn(op string, call int, result vk.Result) {
	d.failures[op] = fakeFailure{call: call, result: result}
}

func (d *fakeDevice) call(op string) error {
	d.calls[op]++
	if f, ok := d.failures[op]; ok && f.call == d.calls[op] {
		return &ResultError{Op: op, Result: f.result}
	}
	return nil
}

func (d *fakeDevice) create(kind string) unsafe.Pointer {
	h := fakeHandle()
	d.kinds[h] = kind
	d.created[kind]++
	return h
}

func (d *fakeDevice) destroy(kind string, h unsafe.Pointer) {
	if h == nil {
		return
	}
	if d.kinds[h] != kind {
		d.invalid = append(d.invalid, fmt.Sprintf("%s %p", kind, h))
		return
	}
	delete(d.kinds, h)
	d.destroyed[kind]++
}

// live counts objects of kind still alive, or every object when kind is empty.
func (d *fakeDevice) live(kind string) int {
	n := 0
	for _, k := range d.kinds {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

func (d *fakeDevice) log(cb vk.CommandBuffer, command string) {
	d.commands[cb] = append(d.commands[cb], command)
}

// complete signals fence and releases the memory its submissions read.
func (d *fakeDevice) complete(fence vk.Fence) {
	for memory, f := range d.busy {
		if f == fence {
			delete(d.busy, memory)
		}
	}
}

func (d *fakeDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	if err := d.call("CreateDescriptorSetLayout"); err != nil {
		return vk.NullDescriptorSetLayout, err
	}
	return vk.DescriptorSetLayout(d.create("descriptorSetLayout")), nil
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.destroy("descriptorSetLayout", unsafe.Pointer(layout))
}

func (d *fakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	if err := d.call("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	return vk.PipelineLayout(d.create("pipelineLayout")), nil
}

func (d *fakeDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	d.destroy("pipelineLayout", unsafe.Pointer(layout))
}

func (d *fakeDevice) CreateGraphicsPipelines(cache vk.PipelineCache, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, error) {
	if err := d.call("CreateGraphicsPipelines"); err != nil {
		return nil, err
	}
	pipelines := make([]vk.Pipeline, len(infos))
	for i, info := range infos {
		pipelines[i] = vk.Pipeline(d.create("pipeline"))
		d.pipelineModes[pipelines[i]] = info.PRasterizationState.PolygonMode
		d.topologies[pipelines[i]] = info.PInputAssemblyState.Topology
	}
	return pipelines, nil
}

func (d *fakeDevice) DestroyPipeline(pipeline vk.Pipeline) {
	d.destroy("pipeline", unsafe.Pointer(pipeline))
}

func (d *fakeDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	if err := d.call("CreateShaderModule"); err != nil {
		return vk.NullShaderModule, err
	}
	d.shaderSizes = append(d.shaderSizes, info.CodeSize)
	return vk.ShaderModule(d.create("shaderModule")), nil
}

func (d *fakeDevice) DestroyShaderModule(module vk.ShaderModule) {
	d.destroy("shaderModule", unsafe.Pointer(module))
}

func (d *fakeDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	if err := d.call("CreateDescriptorPool"); err != nil {
		return vk.NullDescriptorPool, err
	}
	pool := vk.DescriptorPool(d.create("descriptorPool"))
	d.poolMax[pool] = info.MaxSets
	return pool, nil
}

func (d *fakeDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	d.destroy("descriptorPool", unsafe.Pointer(pool))
	delete(d.poolMax, pool)
	delete(d.poolAllocated, pool)
}

func (d *fakeDevice) AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	if err := d.call("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	limit, ok := d.poolMax[info.DescriptorPool]
	if !ok {
		return nil, &ResultError{Op: "vkAllocateDescriptorSets", Result: vk.ErrorInitializationFailed}
	}
	if d.poolAllocated[info.DescriptorPool]+info.DescriptorSetCount > limit {
		return nil, &ResultError{Op: "vkAllocateDescriptorSets", Result: vk.ErrorOutOfPoolMemory}
	}
	d.poolAllocated[info.DescriptorPool] += info.DescriptorSetCount
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	for i := range sets {
		sets[i] = vk.DescriptorSet(fakeHandle())
	}
	return sets, nil
}

func (d *fakeDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.updateCalls++
	d.writes = append(d.writes, writes...)
	for _, w := range writes {
		if w.DstBinding == TransformBinding && len(w.PBufferInfo) > 0 {
			d.setBuffers[w.DstSet] = w.PBufferInfo[0].Buffer
		}
	}
}

func (d *fakeDevice) CreateBuffer(info *vk.BufferCreateInfo, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	if err := d.call("CreateBuffer"); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	buffer := vk.Buffer(d.create("buffer"))
	memory := vk.DeviceMemory(d.create("memory"))
	d.bufferMemory[buffer] = memory
	d.memory[memory] = make([]byte, info.Size)
	return buffer, memory, nil
}

func (d *fakeDevice) DestroyBuffer(buffer vk.Buffer, memory vk.DeviceMemory) {
	d.destroy("buffer", unsafe.Pointer(buffer))
	d.destroy("memory", unsafe.Pointer(memory))
	delete(d.bufferMemory, buffer)
	delete(d.memory, memory)
}

func (d *fakeDevice) WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error {
	if err := d.call("WriteMemory"); err != nil {
		return err
	}
	if _, ok := d.busy[memory]; ok {
		d.hazards++
	}
	copy(d.memory[memory][offset:], data)
	return nil
}

func (d *fakeDevice) CreateImage(info *vk.ImageCreateInfo, properties vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	if err := d.call("CreateImage"); err != nil {
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	return vk.Image(d.create("image")), vk.DeviceMemory(d.create("memory")), nil
}

func (d *fakeDevice) DestroyImage(image vk.Image, memory vk.DeviceMemory) {
	d.destroy("image", unsafe.Pointer(image))
	d.destroy("memory", unsafe.Pointer(memory))
}

func (d *fakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return nil, err
	}
	return vk.ImageView(d.create("imageView")), nil
}

func (d *fakeDevice) DestroyImageView(view vk.ImageView) {
	d.destroy("imageView", unsafe.Pointer(view))
}

func (d *fakeDevice) CreateSampler(info *vk.SamplerCreateInfo) (vk.Sampler, error) {
	if err := d.call("CreateSampler"); err != nil {
		return vk.NullSampler, err
	}
	return vk.Sampler(d.create("sampler")), nil
}

func (d *fakeDevice) DestroySampler(sampler vk.Sampler) {
	d.destroy("sampler", unsafe.Pointer(sampler))
}

func (d *fakeDevice) MaxSamplerAnisotropy() float32 {
	return d.anisotropy
}

func (d *fakeDevice) SubmitImmediate(record func(cb vk.CommandBuffer)) error {
	if err := d.call("SubmitImmediate"); err != nil {
		return err
	}
	d.immediates++
	record(vk.CommandBuffer(fakeHandle()))
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	// Beginning resets whatever was recorded before.
	d.commands[cb] = []string{"begin"}
	d.boundSets[cb] = nil
	d.pipelines[cb] = nil
	return nil
}

func (d *fakeDevice) EndCommandBuffer(cb vk.CommandBuffer) error {
	if err := d.call("EndCommandBuffer"); err != nil {
		return err
	}
	d.log(cb, "end")
	return nil
}

func (d *fakeDevice) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	d.log(cb, "beginRenderPass")
}

func (d *fakeDevice) CmdEndRenderPass(cb vk.CommandBuffer) {
	d.log(cb, "endRenderPass")
}

func (d *fakeDevice) CmdSetViewport(cb vk.CommandBuffer, viewports []vk.Viewport) {
	d.log(cb, "setViewport")
}

func (d *fakeDevice) CmdSetScissor(cb vk.CommandBuffer, scissors []vk.Rect2D) {
	d.log(cb, "setScissor")
}

func (d *fakeDevice) CmdBindPipeline(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.log(cb, "bindPipeline")
	d.pipelines[cb] = append(d.pipelines[cb], pipeline)
}

func (d *fakeDevice) CmdBindDescriptorSets(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	d.log(cb, "bindDescriptorSets")
	d.boundSets[cb] = append(d.boundSets[cb], sets...)
}

func (d *fakeDevice) CmdBindVertexBuffers(cb vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	d.log(cb, "bindVertexBuffers")
}

func (d *fakeDevice) CmdBindIndexBuffer(cb vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	d.log(cb, "bindIndexBuffer")
}

func (d *fakeDevice) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.log(cb, fmt.Sprintf("draw %d", vertexCount))
}

func (d *fakeDevice) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.log(cb, fmt.Sprintf("drawIndexed %d", indexCount))
}

func (d *fakeDevice) CmdPipelineBarrier(cb vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	d.log(cb, "pipelineBarrier")
}

func (d *fakeDevice) CmdCopyBufferToImage(cb vk.CommandBuffer, buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	d.log(cb, "copyBufferToImage")
}

func (d *fakeDevice) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	d.log(cb, "copyBuffer")
}

func (d *fakeDevice) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	if err := d.call("QueueSubmit"); err != nil {
		return err
	}
	for _, submit := range submits {
		for _, cb := range submit.PCommandBuffers {
			d.submits = append(d.submits, fakeSubmit{
				commandBuffer: cb,
				wait:          submit.PWaitSemaphores,
				signal:        submit.PSignalSemaphores,
				fence:         fence,
			})
			for _, set := range d.boundSets[cb] {
				if buffer, ok := d.setBuffers[set]; ok {
					d.busy[d.bufferMemory[buffer]] = fence
				}
			}
		}
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	if err := d.call("WaitIdle"); err != nil {
		return err
	}
	d.waitIdles++
	d.busy = make(map[vk.DeviceMemory]vk.Fence)
	return nil
}

// newFakeContext builds a swapchain context whose handles are placeholders owned by nobody.
func newFakeContext(device Device, frames, images uint32) *SwapchainContext {
	ctx := &SwapchainContext{
		Device:         device,
		RenderPass:     vk.RenderPass(fakeHandle()),
		Queue:          vk.Queue(fakeHandle()),
		Extent:         vk.Extent2D{Width: 800, Height: 600},
		FramesInFlight: frames,
		Generation:     1,
	}
	for i := uint32(0); i < images; i++ {
		ctx.Framebuffers = append(ctx.Framebuffers, vk.Framebuffer(fakeHandle()))
	}
	for i := uint32(0); i < frames*images; i++ {
		ctx.CommandBuffers = append(ctx.CommandBuffers, vk.CommandBuffer(fakeHandle()))
	}
	for i := uint32(0); i < frames; i++ {
		ctx.ImageAvailable = append(ctx.ImageAvailable, vk.Semaphore(fakeHandle()))
		ctx.RenderComplete = append(ctx.RenderComplete, vk.Semaphore(fakeHandle()))
		ctx.InFlight = append(ctx.InFlight, vk.Fence(fakeHandle()))
	}
	return ctx
}

func quadMeshData(name string) renderer.MeshData {
	return renderer.MeshData{
		Name: name,
		Vertices: []math.Vertex3D{
			{Position: math.NewVec3(-0.5, -0.5, 0), Texcoord: math.Vec2{X: 0, Y: 0}},
			{Position: math.NewVec3(0.5, -0.5, 0), Texcoord: math.Vec2{X: 1, Y: 0}},
			{Position: math.NewVec3(0.5, 0.5, 0), Texcoord: math.Vec2{X: 1, Y: 1}},
			{Position: math.NewVec3(-0.5, 0.5, 0), Texcoord: math.Vec2{X: 0, Y: 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

func testTextureData(width, height uint32) renderer.TextureData {
	pixels := make([]uint8, width*height*4)
	for i := range pixels {
		pixels[i] = 0xff
	}
	return renderer.TextureData{Name: "white", Width: width, Height: height, Pixels: pixels}
}

func testSceneData(meshes ...renderer.MeshData) *renderer.SceneData {
	return &renderer.SceneData{
		Meshes:  meshes,
		Texture: testTextureData(4, 4),
		Shader: renderer.ShaderData{
			Vertex:   []uint32{0x07230203, 1, 2, 3},
			Fragment: []uint32{0x07230203, 4, 5, 6},
		},
		RotationSpeed: 1,
	}
}
