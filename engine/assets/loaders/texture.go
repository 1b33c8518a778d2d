package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// RAW_565_EXTENSION marks files that already hold packed B5G6R5 texels
// behind a little endian width/height header.
const RAW_565_EXTENSION string = ".r565"

const raw565HeaderSize = 8

type TextureLoader struct{}

// Load decodes png, bmp and tiff images, or reads a raw .r565 file, into
// B5G6R5 texel data.
func (tl *TextureLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open texture '%s'", path)
	}
	defer file.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tex, err := DecodeTexture(name, filepath.Ext(path), file)
	if err != nil {
		return nil, errors.Wrapf(err, "texture '%s'", path)
	}

	return &metadata.Resource{
		Name:     name,
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		DataSize: uint64(len(tex.Pixels)),
		Data:     tex,
	}, nil
}

func (tl *TextureLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
		res.DataSize = 0
	}
	return nil
}

// DecodeTexture reads a texture from r. ext selects the raw format, anything
// else goes through the registered image decoders.
func DecodeTexture(name, ext string, r io.Reader) (*metadata.TextureData, error) {
	if strings.EqualFold(ext, RAW_565_EXTENSION) {
		return decodeRaw565(name, r)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	tex := ImageToB5G6R5(name, img)
	if err := tex.Validate(); err != nil {
		return nil, err
	}
	return tex, nil
}

func decodeRaw565(name string, r io.Reader) (*metadata.TextureData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < raw565HeaderSize {
		return nil, errors.Newf("raw texture holds %d bytes, shorter than its header", len(data))
	}
	tex := &metadata.TextureData{
		Name:   name,
		Width:  binary.LittleEndian.Uint32(data[0:4]),
		Height: binary.LittleEndian.Uint32(data[4:8]),
		Format: metadata.FormatB5G6R5UnormPack16,
		Pixels: bytes.Clone(data[raw565HeaderSize:]),
	}
	if err := tex.Validate(); err != nil {
		return nil, err
	}
	return tex, nil
}

// ImageToB5G6R5 packs every pixel of img into 5 bits of red, 6 of green and
// 5 of blue. Alpha is dropped.
func ImageToB5G6R5(name string, img image.Image) *metadata.TextureData {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, width*height*int(metadata.TEXTURE_BYTES_PER_TEXEL))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			texel := PackB5G6R5(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			binary.LittleEndian.PutUint16(pixels[(y*width+x)*2:], texel)
		}
	}

	return &metadata.TextureData{
		Name:   name,
		Width:  uint32(width),
		Height: uint32(height),
		Format: metadata.FormatB5G6R5UnormPack16,
		Pixels: pixels,
	}
}

func PackB5G6R5(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}
