package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/platform"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

var _ renderer.Backend = (*VulkanBackend)(nil)

type BackendConfig struct {
	ApplicationName string
	Width           uint32
	Height          uint32
	FramesInFlight  uint32
	Validation      bool
	VSync           bool
	DiscreteGPU     bool
}

// VulkanBackend owns the instance, the device, the swapchain and the per slot sync objects.
// The texture renderer draws into it through the SwapchainContext.
type VulkanBackend struct {
	platform    *platform.Platform
	config      BackendConfig
	FrameNumber uint64
	context     *VulkanContext
	device      Device
	swapchain   *SwapchainContext

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32
}

func New(p *platform.Platform, config BackendConfig) *VulkanBackend {
	if config.FramesInFlight == 0 {
		config.FramesInFlight = 2
	}
	return &VulkanBackend{
		platform: p,
		config:   config,
		context: &VulkanContext{
			FramebufferWidth:  config.Width,
			FramebufferHeight: config.Height,
			FramesInFlight:    config.FramesInFlight,
			LockPool:          NewVulkanLockPool(),
			Device:            &VulkanDevice{},
		},
	}
}

func (vb *VulkanBackend) Initialize() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return setupError("vulkan loader", fmt.Errorf("GetInstanceProcAddress is nil"))
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return setupError("vulkan loader", err)
	}

	if err := vb.createInstance(); err != nil {
		return err
	}

	// Debugger
	if vb.config.Validation {
		if err := vb.createDebugger(); err != nil {
			return err
		}
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vb.platform.Window.CreateWindowSurface(vb.context.Instance, nil)
	if err != nil {
		return setupError("surface", err)
	}
	vb.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vb.context, vb.config.DiscreteGPU); err != nil {
		return err
	}
	vb.device = NewDevice(vb.context)

	sc, err := SwapchainCreate(vb.context, vb.device, vb.context.FramebufferWidth, vb.context.FramebufferHeight, vb.config.VSync)
	if err != nil {
		return err
	}
	vb.context.Swapchain = sc

	rp, err := RenderpassCreate(vb.context, sc.ImageFormat.Format, vb.context.Device.DepthFormat)
	if err != nil {
		return err
	}
	vb.context.MainRenderpass = rp

	if err := vb.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vb.createCommandBuffers(); err != nil {
		return err
	}
	if err := vb.createSyncObjects(); err != nil {
		return err
	}

	cacheInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var cache vk.PipelineCache
	if err := checkResult("vkCreatePipelineCache", vk.CreatePipelineCache(vb.context.Device.LogicalDevice, &cacheInfo, vb.context.Allocator, &cache)); err != nil {
		return setupError("pipeline cache", err)
	}
	vb.context.PipelineCache = cache

	vb.swapchain = &SwapchainContext{Device: vb.device}
	vb.syncSwapchainContext()

	core.LogInfo("Vulkan backend initialized with %d frames in flight and %d swapchain images.",
		vb.context.FramesInFlight, sc.ImageCount)
	return nil
}

func (vb *VulkanBackend) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vb.config.ApplicationName),
		PEngineName:        VulkanSafeString("Texture Renderer"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, vb.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if vb.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	var requiredLayers []string
	if vb.config.Validation {
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if err := checkLayers(requiredLayers); err != nil {
			return setupError("validation layers", err)
		}
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if err := checkResult("vkCreateInstance", vk.CreateInstance(&createInfo, vb.context.Allocator, &instance)); err != nil {
		return setupError("instance", err)
	}
	if err := vk.InitInstance(instance); err != nil {
		return setupError("instance", err)
	}
	vb.context.Instance = instance
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var count uint32
	if err := checkResult("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return err
	}
	layers := make([]vk.LayerProperties, count)
	if err := checkResult("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return err
	}

	available := make(map[string]struct{}, count)
	for i := range layers {
		layers[i].Deref()
		name := layers[i].LayerName[:]
		available[string(name[:FindFirstZeroInByteArray(name)])] = struct{}{}
	}
	for _, name := range required {
		if _, ok := available[name]; !ok {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (vb *VulkanBackend) createDebugger() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if err := checkResult("vkCreateDebugReportCallback", vk.CreateDebugReportCallback(vb.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
		return setupError("debugger", err)
	}
	vb.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

// SwapchainContext is shared with the texture renderer and updated in place on recreation.
func (vb *VulkanBackend) SwapchainContext() *SwapchainContext {
	return vb.swapchain
}

func (vb *VulkanBackend) syncSwapchainContext() {
	sc := vb.context.Swapchain
	framebuffers := make([]vk.Framebuffer, len(sc.Framebuffers))
	for i, fb := range sc.Framebuffers {
		framebuffers[i] = fb.Handle
	}

	ctx := vb.swapchain
	ctx.RenderPass = vb.context.MainRenderpass.Handle
	ctx.Framebuffers = framebuffers
	ctx.CommandBuffers = vb.context.CommandBufferHandles()
	ctx.PipelineCache = vb.context.PipelineCache
	ctx.Queue = vb.context.Device.GraphicsQueue
	ctx.Extent = sc.Extent
	ctx.FramesInFlight = vb.context.FramesInFlight
	ctx.ImageAvailable = vb.context.ImageAvailableSemaphores
	ctx.RenderComplete = vb.context.QueueCompleteSemaphores
	ctx.InFlight = vb.context.InFlightFenceHandles()
	ctx.Generation++
}

func (vb *VulkanBackend) Shutdown() error {
	if vb.context.Instance == nil {
		return nil
	}
	var err error
	if vb.context.Device.LogicalDevice != nil {
		err = vb.shutdownDevice()
	}

	core.LogDebug("Destroying Vulkan surface...")
	if vb.context.Surface != vk.NullSurface {
		vk.DestroySurface(vb.context.Instance, vb.context.Surface, vb.context.Allocator)
		vb.context.Surface = vk.NullSurface
	}

	if vb.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vb.context.Instance, vb.context.debugMessenger, vb.context.Allocator)
		vb.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
	vb.context.Instance = nil
	return err
}

// shutdownDevice destroys everything created on the logical device, then the device.
func (vb *VulkanBackend) shutdownDevice() error {
	var err error
	if vb.device != nil {
		err = vb.device.WaitIdle()
	}

	// Destroy in the opposite order of creation.
	vb.destroySyncObjects()
	vb.freeCommandBuffers()

	if vb.context.PipelineCache != vk.NullPipelineCache {
		vk.DestroyPipelineCache(vb.context.Device.LogicalDevice, vb.context.PipelineCache, vb.context.Allocator)
		vb.context.PipelineCache = vk.NullPipelineCache
	}

	if vb.context.Swapchain != nil {
		vb.context.Swapchain.Destroy(vb.context, vb.device)
		vb.context.Swapchain = nil
	}
	if vb.context.MainRenderpass != nil {
		vb.context.MainRenderpass.Destroy(vb.context)
		vb.context.MainRenderpass = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vb.context)
	return err
}

// Resized only records the new size. The swapchain is rebuilt on the next BeginFrame.
func (vb *VulkanBackend) Resized(width, height uint32) {
	vb.cachedFramebufferWidth = width
	vb.cachedFramebufferHeight = height
	vb.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan backend resized: w/h/gen: %d/%d/%d", width, height, vb.context.FramebufferSizeGeneration)
}

// BeginFrame waits for the current slot, acquires an image and makes sure no earlier frame
// still renders into it. core.ErrSwapchainBooting means the frame must be skipped.
func (vb *VulkanBackend) BeginFrame(deltaTime float64) (renderer.FrameInfo, error) {
	if vb.context.RecreatingSwapchain {
		return renderer.FrameInfo{}, core.ErrSwapchainBooting
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if vb.context.FramebufferSizeGeneration != vb.context.FramebufferSizeLastGeneration {
		if err := vb.RecreateSwapchain(); err != nil {
			return renderer.FrameInfo{}, err
		}
		core.LogInfo("Resized, booting.")
		return renderer.FrameInfo{}, core.ErrSwapchainBooting
	}

	slot := vb.context.CurrentFrame
	fence := vb.context.InFlightFences[slot]

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if ok, err := fence.Wait(vb.context, vk.MaxUint64); err != nil {
		return renderer.FrameInfo{}, err
	} else if !ok {
		return renderer.FrameInfo{}, fmt.Errorf("in-flight fence wait timed out on slot %d", slot)
	}

	// The semaphore signals once the image is available, the submission waits on it.
	imageIndex, err := vb.context.Swapchain.AcquireNextImageIndex(vb.context, vk.MaxUint64, vb.context.ImageAvailableSemaphores[slot], vk.NullFence)
	if err != nil {
		return renderer.FrameInfo{}, err
	}
	vb.context.ImageIndex = imageIndex

	// Make sure the previous frame is not using this image.
	if previous := vb.context.ImagesInFlight[imageIndex]; previous != nil && previous != fence {
		if _, err := previous.Wait(vb.context, vk.MaxUint64); err != nil {
			return renderer.FrameInfo{}, err
		}
	}
	vb.context.ImagesInFlight[imageIndex] = fence

	// The submission signals it again.
	if err := fence.Reset(vb.context); err != nil {
		return renderer.FrameInfo{}, err
	}

	return renderer.FrameInfo{
		Slot:       slot,
		ImageIndex: imageIndex,
		DeltaTime:  deltaTime,
	}, nil
}

// EndFrame presents the image and moves to the next slot. An error matching
// core.ErrNeedsRebuild asks the caller to recreate the swapchain.
func (vb *VulkanBackend) EndFrame(frame renderer.FrameInfo) error {
	err := vb.context.Swapchain.Present(
		vb.context,
		vb.context.Device.PresentQueue,
		vb.context.QueueCompleteSemaphores[frame.Slot],
		frame.ImageIndex)

	// Increment (and loop) the index.
	vb.context.CurrentFrame = (frame.Slot + 1) % vb.context.FramesInFlight
	vb.FrameNumber++
	return err
}

// RecreateSwapchain rebuilds the swapchain, framebuffers, command buffers and sync objects,
// then bumps the generation of the shared context.
func (vb *VulkanBackend) RecreateSwapchain() error {
	// If already being recreated, do not try again.
	if vb.context.RecreatingSwapchain {
		core.LogDebug("RecreateSwapchain called when already recreating. Booting.")
		return core.ErrSwapchainBooting
	}

	width, height := vb.context.FramebufferWidth, vb.context.FramebufferHeight
	if vb.cachedFramebufferWidth != 0 || vb.cachedFramebufferHeight != 0 {
		width, height = vb.cachedFramebufferWidth, vb.cachedFramebufferHeight
	}
	// Detect if the window is too small to be drawn to
	if width == 0 || height == 0 {
		core.LogDebug("RecreateSwapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}

	vb.context.RecreatingSwapchain = true
	defer func() { vb.context.RecreatingSwapchain = false }()

	if err := vb.device.WaitIdle(); err != nil {
		return err
	}

	vb.freeCommandBuffers()
	// Semaphores and fences may be left signaled or reset by a frame that never got submitted.
	vb.destroySyncObjects()

	sc, err := vb.context.Swapchain.Recreate(vb.context, vb.device, width, height, vb.config.VSync)
	if err != nil {
		return err
	}
	vb.context.Swapchain = sc

	// Sync the framebuffer size with the cached sizes.
	vb.context.FramebufferWidth = sc.Extent.Width
	vb.context.FramebufferHeight = sc.Extent.Height
	vb.cachedFramebufferWidth = 0
	vb.cachedFramebufferHeight = 0
	vb.context.FramebufferSizeLastGeneration = vb.context.FramebufferSizeGeneration

	if err := vb.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vb.createCommandBuffers(); err != nil {
		return err
	}
	if err := vb.createSyncObjects(); err != nil {
		return err
	}
	vb.context.CurrentFrame = 0

	vb.syncSwapchainContext()
	core.LogInfo("Swapchain recreated, generation %d.", vb.swapchain.Generation)
	return nil
}

func (vb *VulkanBackend) regenerateFramebuffers() error {
	swapchain := vb.context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, 0, swapchain.ImageCount)
	for _, view := range swapchain.Views {
		attachments := []vk.ImageView{
			view,
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vb.context, vb.context.MainRenderpass, swapchain.Extent.Width, swapchain.Extent.Height, attachments)
		if err != nil {
			return setupError("framebuffer", err)
		}
		swapchain.Framebuffers = append(swapchain.Framebuffers, fb)
	}
	return nil
}

// createCommandBuffers allocates one buffer per slot and image, slot major.
func (vb *VulkanBackend) createCommandBuffers() error {
	count := vb.context.FramesInFlight * vb.context.Swapchain.ImageCount
	buffers, err := AllocateCommandBuffers(vb.context, vb.context.Device.GraphicsCommandPool, true, count)
	if err != nil {
		return setupError("command buffers", err)
	}
	vb.context.GraphicsCommandBuffers = buffers
	core.LogDebug("%d Vulkan command buffers created.", count)
	return nil
}

func (vb *VulkanBackend) freeCommandBuffers() {
	for _, cb := range vb.context.GraphicsCommandBuffers {
		cb.Free(vb.context, vb.context.Device.GraphicsCommandPool)
	}
	vb.context.GraphicsCommandBuffers = nil
}

func (vb *VulkanBackend) createSyncObjects() error {
	frames := vb.context.FramesInFlight
	vb.context.ImageAvailableSemaphores = make([]vk.Semaphore, 0, frames)
	vb.context.QueueCompleteSemaphores = make([]vk.Semaphore, 0, frames)
	vb.context.InFlightFences = make([]*VulkanFence, 0, frames)

	for i := uint32(0); i < frames; i++ {
		available, err := vb.createSemaphore()
		if err != nil {
			return setupError("image available semaphore", err)
		}
		vb.context.ImageAvailableSemaphores = append(vb.context.ImageAvailableSemaphores, available)

		complete, err := vb.createSemaphore()
		if err != nil {
			return setupError("queue complete semaphore", err)
		}
		vb.context.QueueCompleteSemaphores = append(vb.context.QueueCompleteSemaphores, complete)

		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		fence, err := NewFence(vb.context, true)
		if err != nil {
			return setupError("in flight fence", err)
		}
		vb.context.InFlightFences = append(vb.context.InFlightFences, fence)
	}

	// Actual fences are not owned by this list.
	vb.context.ImagesInFlight = make([]*VulkanFence, vb.context.Swapchain.ImageCount)
	return nil
}

func (vb *VulkanBackend) createSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	err := vb.context.LockPool.SafeCall(SynchronizationManagement, func() error {
		return checkResult("vkCreateSemaphore", vk.CreateSemaphore(vb.context.Device.LogicalDevice, &info, vb.context.Allocator, &semaphore))
	})
	return semaphore, err
}

func (vb *VulkanBackend) destroySyncObjects() {
	for _, semaphore := range vb.context.ImageAvailableSemaphores {
		vk.DestroySemaphore(vb.context.Device.LogicalDevice, semaphore, vb.context.Allocator)
	}
	for _, semaphore := range vb.context.QueueCompleteSemaphores {
		vk.DestroySemaphore(vb.context.Device.LogicalDevice, semaphore, vb.context.Allocator)
	}
	for _, fence := range vb.context.InFlightFences {
		fence.Destroy(vb.context)
	}
	vb.context.ImageAvailableSemaphores = nil
	vb.context.QueueCompleteSemaphores = nil
	vb.context.InFlightFences = nil
	vb.context.ImagesInFlight = nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
