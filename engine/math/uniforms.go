package math

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

const (
	/** @brief Rotation speed of the model around Z, in degrees per second. */
	ROTATION_DEGREES_PER_SECOND float32 = 90
	/** @brief Vertical field of view of the projection, in degrees. */
	FIELD_OF_VIEW_DEGREES float32 = 45
	NEAR_CLIP             float32 = 0.1
	FAR_CLIP              float32 = 10
)

var (
	cameraEye    = mgl32.Vec3{2, 2, 2}
	cameraTarget = mgl32.Vec3{0, 0, 0}
	cameraUp     = mgl32.Vec3{0, 0, 1}
)

// FrameUniforms builds the model, view and projection matrices for a frame
// rendered elapsed seconds after startup into a surface of the given size.
// The projection flips Y because clip space Y points down in Vulkan.
func FrameUniforms(elapsed float64, extent metadata.Extent) metadata.UniformBufferObject {
	angle := mgl32.DegToRad(float32(elapsed) * ROTATION_DEGREES_PER_SECOND)
	proj := mgl32.Perspective(
		mgl32.DegToRad(FIELD_OF_VIEW_DEGREES),
		AspectRatio(extent.Width, extent.Height),
		NEAR_CLIP,
		FAR_CLIP,
	)
	// Proj[1][1] in column-major storage.
	proj[5] *= -1

	return metadata.UniformBufferObject{
		Model: mgl32.HomogRotate3DZ(angle),
		View:  mgl32.LookAtV(cameraEye, cameraTarget, cameraUp),
		Proj:  proj,
	}
}
