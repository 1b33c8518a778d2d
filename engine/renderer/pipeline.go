package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief Binding 0 carries the per-frame uniforms, binding 1 the texture. */
var descriptorBindings = []metadata.DescriptorBinding{
	{Binding: 0, Type: metadata.DescriptorTypeUniformBuffer, Stages: metadata.ShaderStageVertex},
	{Binding: 1, Type: metadata.DescriptorTypeCombinedImageSampler, Stages: metadata.ShaderStageFragment},
}

/**
 * @brief The content drawn every frame: two SPIR-V blobs, the indexed mesh
 * and the texture sampled by the fragment shader.
 */
type SceneAssets struct {
	VertexShader   []byte
	FragmentShader []byte
	Mesh           *metadata.Mesh
	Texture        *metadata.TextureData
}

func (a SceneAssets) validate() error {
	if len(a.VertexShader) == 0 || len(a.FragmentShader) == 0 {
		return errors.New("both shader blobs are required")
	}
	if a.Mesh == nil || len(a.Mesh.Vertices) == 0 || len(a.Mesh.Indices) == 0 {
		return errors.New("an indexed mesh is required")
	}
	for _, idx := range a.Mesh.Indices {
		if int(idx) >= len(a.Mesh.Vertices) {
			return errors.Newf("mesh '%s' index %d out of range", a.Mesh.Name, idx)
		}
	}
	if a.Texture == nil {
		return errors.New("a texture is required")
	}
	return a.Texture.Validate()
}

/**
 * @brief Everything that does not depend on the swapchain extent. Built once
 * at initialization and destroyed at shutdown; resizes never touch it.
 */
type StaticResources struct {
	RenderPass          metadata.RenderPass
	DescriptorSetLayout metadata.DescriptorSetLayout
	PipelineLayout      metadata.PipelineLayout
	Pipeline            metadata.Pipeline
	DescriptorPool      metadata.DescriptorPool
	VertexBuffer        *BufferResource
	IndexBuffer         *BufferResource
	IndexCount          uint32
	Texture             *ImageResource
	Sampler             metadata.Sampler
	ColorFormat         metadata.Format
	DepthFormat         metadata.Format
}

// BuildStaticResources creates the render pass, the pipeline and its layouts,
// the descriptor pool, and uploads the mesh and the texture. Everything
// created is released again if a later step fails.
func BuildStaticResources(device Device, factory *ResourceFactory, assets SceneAssets, colorFormat, depthFormat metadata.Format) (*StaticResources, error) {
	if err := assets.validate(); err != nil {
		return nil, err
	}
	s := &StaticResources{ColorFormat: colorFormat, DepthFormat: depthFormat}

	var cleanup releaser
	defer cleanup.release()
	cleanup.add(func() { s.Destroy(device) })

	var err error
	s.RenderPass, err = device.CreateRenderPass(metadata.RenderPassInfo{ColorFormat: colorFormat, DepthFormat: depthFormat})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create render pass")
	}
	s.DescriptorSetLayout, err = device.CreateDescriptorSetLayout(descriptorBindings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor set layout")
	}
	s.PipelineLayout, err = device.CreatePipelineLayout(s.DescriptorSetLayout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pipeline layout")
	}
	if s.Pipeline, err = buildPipeline(device, s, assets); err != nil {
		return nil, err
	}

	s.VertexBuffer, err = factory.UploadBuffer(assets.Mesh.VertexBytes(), metadata.BufferUsageVertexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload vertices")
	}
	s.IndexBuffer, err = factory.UploadBuffer(assets.Mesh.IndexBytes(), metadata.BufferUsageIndexBuffer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload indices")
	}
	s.IndexCount = uint32(len(assets.Mesh.Indices))

	s.Texture, err = factory.UploadTexture(assets.Texture)
	if err != nil {
		return nil, err
	}
	s.Sampler, err = device.CreateSampler()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create texture sampler")
	}

	s.DescriptorPool, err = device.CreateDescriptorPool(descriptorBindings, MaxFramesInFlight)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create descriptor pool")
	}

	cleanup.disarm()
	core.LogDebug("Static resources created: %d indices, %dx%d texture.", s.IndexCount, assets.Texture.Width, assets.Texture.Height)
	return s, nil
}

// buildPipeline creates the shader modules, the fixed graphics pipeline and
// drops the modules again, which are not needed once the pipeline exists.
func buildPipeline(device Device, s *StaticResources, assets SceneAssets) (metadata.Pipeline, error) {
	vert, err := device.CreateShaderModule(assets.VertexShader)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create vertex shader module")
	}
	defer device.DestroyShaderModule(vert)

	frag, err := device.CreateShaderModule(assets.FragmentShader)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create fragment shader module")
	}
	defer device.DestroyShaderModule(frag)

	pipeline, err := device.CreateGraphicsPipeline(metadata.PipelineInfo{
		RenderPass:     s.RenderPass,
		Layout:         s.PipelineLayout,
		VertexShader:   vert,
		FragmentShader: frag,
		VertexStride:   metadata.VertexStride,
		Attributes:     metadata.VertexAttributes,
		CullMode:       metadata.FaceCullModeBack,
		DepthTest:      true,
		DepthWrite:     true,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to create graphics pipeline")
	}
	return pipeline, nil
}

// Destroy releases every static object. Safe on nil and partially built
// resources, and idempotent.
func (s *StaticResources) Destroy(device Device) {
	if s == nil {
		return
	}
	if s.DescriptorPool != 0 {
		device.DestroyDescriptorPool(s.DescriptorPool)
		s.DescriptorPool = 0
	}
	if s.Sampler != 0 {
		device.DestroySampler(s.Sampler)
		s.Sampler = 0
	}
	s.Texture.Destroy(device)
	s.Texture = nil
	s.IndexBuffer.Destroy(device)
	s.IndexBuffer = nil
	s.VertexBuffer.Destroy(device)
	s.VertexBuffer = nil
	if s.Pipeline != 0 {
		device.DestroyPipeline(s.Pipeline)
		s.Pipeline = 0
	}
	if s.PipelineLayout != 0 {
		device.DestroyPipelineLayout(s.PipelineLayout)
		s.PipelineLayout = 0
	}
	if s.DescriptorSetLayout != 0 {
		device.DestroyDescriptorSetLayout(s.DescriptorSetLayout)
		s.DescriptorSetLayout = 0
	}
	if s.RenderPass != 0 {
		device.DestroyRenderPass(s.RenderPass)
		s.RenderPass = 0
	}
}
