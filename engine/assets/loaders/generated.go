package loaders

import (
	"encoding/binary"

	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// BORDER_TEXEL is pure red in B5G6R5.
const BORDER_TEXEL uint16 = 0xF800

/**
 * @brief Generates the default texture: a one texel red border around
 * random noise. The same seed always yields the same texels.
 */
func GenerateBorderedTexture(width, height uint32, seed uint64) *metadata.TextureData {
	rng := rand.New(rand.NewSource(seed))
	pixels := make([]byte, uint64(width)*uint64(height)*uint64(metadata.TEXTURE_BYTES_PER_TEXEL))

	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			texel := BORDER_TEXEL
			if x != 0 && y != 0 && x != width-1 && y != height-1 {
				texel = uint16(rng.Uint32())
			}
			binary.LittleEndian.PutUint16(pixels[(y*width+x)*2:], texel)
		}
	}

	return &metadata.TextureData{
		Name:   metadata.DEFAULT_TEXTURE_NAME,
		Width:  width,
		Height: height,
		Format: metadata.FormatB5G6R5UnormPack16,
		Pixels: pixels,
	}
}
