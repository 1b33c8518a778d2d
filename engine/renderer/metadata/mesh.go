package metadata

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

/** @brief The size in bytes of a single Vertex as laid out in the vertex buffer. */
const VertexStride uint32 = 32

/**
 * @brief A vertex of the static mesh: position, color and texture coordinate.
 */
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

/** @brief The vertex attributes matching the Vertex layout. */
var VertexAttributes = []VertexAttribute{
	{Location: 0, Format: FormatR32G32B32Sfloat, Offset: 0},
	{Location: 1, Format: FormatR32G32B32Sfloat, Offset: 12},
	{Location: 2, Format: FormatR32G32Sfloat, Offset: 24},
}

/**
 * @brief Static indexed geometry. Indices are 16 bit.
 */
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint16
}

// VertexBytes packs the vertices into the vertex buffer layout.
func (m *Mesh) VertexBytes() []byte {
	out := make([]byte, len(m.Vertices)*int(VertexStride))
	for i, v := range m.Vertices {
		off := i * int(VertexStride)
		putFloats(out[off:], v.Position[:])
		putFloats(out[off+12:], v.Color[:])
		putFloats(out[off+24:], v.TexCoord[:])
	}
	return out
}

// IndexBytes packs the indices into the index buffer layout.
func (m *Mesh) IndexBytes() []byte {
	out := make([]byte, len(m.Indices)*2)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint16(out[i*2:], idx)
	}
	return out
}

func putFloats(dst []byte, values []float32) {
	for i, f := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
