package metadata

import "github.com/go-gl/mathgl/mgl32"

/** @brief The size in bytes of the uniform buffer object. */
const UniformBufferObjectSize uint64 = 3 * 16 * 4

/**
 * @brief The per-frame uniform data: model, view and projection matrices,
 * column major, as consumed by the vertex shader.
 */
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// Encode serializes the matrices into dst, which must hold at least
// UniformBufferObjectSize bytes. It does not allocate, so it can target
// persistently mapped memory directly.
func (u *UniformBufferObject) Encode(dst []byte) int {
	putFloats(dst[0:], u.Model[:])
	putFloats(dst[64:], u.View[:])
	putFloats(dst[128:], u.Proj[:])
	return int(UniformBufferObjectSize)
}
