package metadata

import "fmt"

const (
	/** @brief The name of the texture generated when no texture file is configured. */
	DEFAULT_TEXTURE_NAME string = "default"
	/** @brief The width of the generated default texture. */
	DEFAULT_TEXTURE_WIDTH uint32 = 64
	/** @brief The height of the generated default texture. */
	DEFAULT_TEXTURE_HEIGHT uint32 = 64
	/** @brief Bytes per texel of the packed 16-bit texture format. */
	TEXTURE_BYTES_PER_TEXEL uint32 = 2
)

/**
 * @brief Raw texel data ready for upload. Pixels holds Width*Height texels
 * of Format, row major, little endian.
 */
type TextureData struct {
	/** @brief The texture name, used for logging and asset lookup. */
	Name string
	/** @brief The texture width. */
	Width uint32
	/** @brief The texture height. */
	Height uint32
	/** @brief The texel format. */
	Format Format
	/** @brief The texel data. */
	Pixels []byte
}

// Size returns the number of bytes the texel data should occupy.
func (t *TextureData) Size() uint64 {
	return uint64(t.Width) * uint64(t.Height) * uint64(TEXTURE_BYTES_PER_TEXEL)
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (t *TextureData) Validate() error {
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture '%s' has an empty extent %dx%d", t.Name, t.Width, t.Height)
	}
	if uint64(len(t.Pixels)) != t.Size() {
		return fmt.Errorf("texture '%s' holds %d bytes, expected %d", t.Name, len(t.Pixels), t.Size())
	}
	return nil
}
