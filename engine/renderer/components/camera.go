package components

import (
	"github.com/spaghettifunk/texture-renderer/engine/math"
)

/**
 * @brief Represents the camera the scene is viewed through.
 * The view matrix is cached and rebuilt only when the camera moves.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/** @brief The point the camera looks at. */
	Target math.Vec3
	Up     math.Vec3
	/** @brief Vertical field of view, in degrees. */
	FOV  float32
	Near float32
	Far  float32
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: IMPORTANT: Do not get this directly, use GetView() instead
	 * so the view matrix is recalculated when needed.
	 */
	ViewMatrix math.Mat4
}

func NewCamera(position, target math.Vec3, fov, near, far float32) *Camera {
	return &Camera{
		Position: position,
		Target:   target,
		Up:       math.NewVec3Up(),
		FOV:      fov,
		Near:     near,
		Far:      far,
		IsDirty:  true,
	}
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, 3)
	c.Target = math.NewVec3Zero()
	c.Up = math.NewVec3Up()
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetTarget(target math.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAt(c.Position, c.Target, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// GetProjection builds the perspective matrix for the given aspect ratio. Y is flipped
// for Vulkan clip space.
func (c *Camera) GetProjection(aspect float32) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	projection := math.NewMat4Perspective(math.DegToRad(c.FOV), aspect, c.Near, c.Far)
	projection.Data[5] *= -1
	return projection
}

func (c *Camera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalized()
}

func (c *Camera) Right() math.Vec3 {
	return c.Forward().Cross(c.Up).Normalized()
}

// MoveForward moves the camera and its target along the view direction.
func (c *Camera) MoveForward(amount float32) {
	c.translate(c.Forward().MulScalar(amount))
}

func (c *Camera) MoveBackward(amount float32) {
	c.translate(c.Forward().MulScalar(-amount))
}

func (c *Camera) MoveLeft(amount float32) {
	c.translate(c.Right().MulScalar(-amount))
}

func (c *Camera) MoveRight(amount float32) {
	c.translate(c.Right().MulScalar(amount))
}

func (c *Camera) translate(offset math.Vec3) {
	c.Position = c.Position.Add(offset)
	c.Target = c.Target.Add(offset)
	c.IsDirty = true
}
