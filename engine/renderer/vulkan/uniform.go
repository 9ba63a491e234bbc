package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

// TransformDataSize is the std140 size of TransformData: three mat4.
const TransformDataSize vk.DeviceSize = 3 * 16 * 4

/**
 * @brief The per-frame uniform block read by the vertex shader at binding 0.
 */
type TransformData struct {
	Model      math.Mat4
	View       math.Mat4
	Projection math.Mat4
}

func (t TransformData) Bytes() []byte {
	data, err := encodeLittleEndian(t)
	if err != nil {
		// fixed size struct of float32, cannot fail
		panic(err)
	}
	return data
}

// UniformUpdater writes the scene transforms of one frame slot.
type UniformUpdater struct {
	device Device
	scene  *Scene
	extent func() vk.Extent2D
}

func NewUniformUpdater(device Device, scene *Scene, extent func() vk.Extent2D) *UniformUpdater {
	return &UniformUpdater{
		device: device,
		scene:  scene,
		extent: extent,
	}
}

// Compute advances the scene rotation by deltaTime and returns the new transforms.
func (u *UniformUpdater) Compute(deltaTime float64) TransformData {
	u.scene.Rotation += u.scene.RotationSpeed * float32(deltaTime)
	if u.scene.Rotation > math.K_PI_2 {
		u.scene.Rotation -= math.K_PI_2
	}

	extent := u.extent()
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	return TransformData{
		Model:      math.NewMat4EulerY(u.scene.Rotation).Mul(u.scene.Transform.GetLocal()),
		View:       u.scene.Camera.GetView(),
		Projection: u.scene.Camera.GetProjection(aspect),
	}
}

// Update writes the transforms of frame into the buffer of frame.Slot only. The caller
// guarantees the slot's previous submission has completed.
func (u *UniformUpdater) Update(frame renderer.FrameInfo) error {
	if int(frame.Slot) >= len(u.scene.Transforms) {
		return fmt.Errorf("%w: frame slot %d, %d transform buffers", core.ErrNeedsRebuild, frame.Slot, len(u.scene.Transforms))
	}
	data := u.Compute(frame.DeltaTime)
	return u.scene.Transforms[frame.Slot].Load(u.device, 0, data.Bytes())
}
