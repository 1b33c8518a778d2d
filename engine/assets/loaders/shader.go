package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// SPIRV_MAGIC is the first word of every SPIR-V module.
const SPIRV_MAGIC uint32 = 0x07230203

type ShaderLoader struct{}

// Load reads a pre-compiled SPIR-V module. The returned resource holds the
// raw bytes; they are repacked into words when the shader module is created.
func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read shader module '%s'", path)
	}
	if err := ValidateSPIRV(data); err != nil {
		return nil, errors.Wrapf(err, "shader module '%s'", path)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		Type:     metadata.ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	if res != nil {
		res.Data = nil
		res.DataSize = 0
	}
	return nil
}

// ValidateSPIRV checks the size and the magic number of a SPIR-V blob.
func ValidateSPIRV(code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return errors.Newf("invalid SPIR-V size %d, must be a non-zero multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SPIRV_MAGIC {
		return errors.Newf("invalid SPIR-V magic %#08x", magic)
	}
	return nil
}
