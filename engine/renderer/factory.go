package renderer

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/**
 * @brief A buffer together with the memory bound to it. Mapped is non-nil
 * while the memory is persistently mapped.
 */
type BufferResource struct {
	Buffer metadata.Buffer
	Memory metadata.DeviceMemory
	Size   uint64
	Mapped []byte
}

// Destroy releases the buffer and its memory. It is safe on a nil or
// already destroyed resource.
func (b *BufferResource) Destroy(device Device) {
	if b == nil {
		return
	}
	if b.Mapped != nil {
		device.UnmapMemory(b.Memory)
		b.Mapped = nil
	}
	if b.Buffer != 0 {
		device.DestroyBuffer(b.Buffer)
		b.Buffer = 0
	}
	if b.Memory != 0 {
		device.FreeMemory(b.Memory)
		b.Memory = 0
	}
}

/** @brief An image, its memory and a single view over the whole image. */
type ImageResource struct {
	Image  metadata.Image
	Memory metadata.DeviceMemory
	View   metadata.ImageView
	Format metadata.Format
	Extent metadata.Extent
}

// Destroy releases the view, the image and the memory, in that order. It is
// safe on a nil or already destroyed resource.
func (i *ImageResource) Destroy(device Device) {
	if i == nil {
		return
	}
	if i.View != 0 {
		device.DestroyImageView(i.View)
		i.View = 0
	}
	if i.Image != 0 {
		device.DestroyImage(i.Image)
		i.Image = 0
	}
	if i.Memory != 0 {
		device.FreeMemory(i.Memory)
		i.Memory = 0
	}
}

// FindMemoryType returns the first memory type allowed by typeFilter whose
// property flags include every flag in props.
func FindMemoryType(types []metadata.MemoryType, typeFilter uint32, props metadata.MemoryPropertyFlags) (uint32, error) {
	for i := range types {
		if i >= 32 {
			break
		}
		// Check each memory type to see if its bit is set to 1.
		if typeFilter&(1<<uint32(i)) != 0 && types[i].PropertyFlags&props == props {
			return uint32(i), nil
		}
	}
	return 0, core.ResourceExhausted(
		errors.Newf("no memory type matches filter 0b%b with properties 0x%x", typeFilter, uint32(props)),
	)
}

/**
 * @brief Allocates buffers and images with matching memory and performs
 * blocking host to device copies. Only used while setting up.
 */
type ResourceFactory struct {
	device Device
}

func NewResourceFactory(device Device) *ResourceFactory {
	return &ResourceFactory{device: device}
}

func (f *ResourceFactory) CreateBuffer(size uint64, usage metadata.BufferUsageFlags, props metadata.MemoryPropertyFlags) (*BufferResource, error) {
	var cleanup releaser
	defer cleanup.release()

	buffer, reqs, err := f.device.CreateBuffer(size, usage)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create buffer of %d bytes", size)
	}
	cleanup.add(func() { f.device.DestroyBuffer(buffer) })

	typeIndex, err := FindMemoryType(f.device.MemoryTypes(), reqs.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	memory, err := f.device.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		return nil, core.ResourceExhausted(errors.Wrapf(err, "failed to allocate %d bytes for buffer", reqs.Size))
	}
	cleanup.add(func() { f.device.FreeMemory(memory) })

	if err := f.device.BindBufferMemory(buffer, memory); err != nil {
		return nil, errors.Wrap(err, "failed to bind buffer memory")
	}

	cleanup.disarm()
	return &BufferResource{Buffer: buffer, Memory: memory, Size: size}, nil
}

// CreateMappedBuffer creates a host visible, host coherent buffer and keeps
// it mapped until the resource is destroyed.
func (f *ResourceFactory) CreateMappedBuffer(size uint64, usage metadata.BufferUsageFlags) (*BufferResource, error) {
	res, err := f.CreateBuffer(size, usage, metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	mapped, err := f.device.MapMemory(res.Memory, size)
	if err != nil {
		res.Destroy(f.device)
		return nil, errors.Wrap(err, "failed to map buffer memory")
	}
	res.Mapped = mapped
	return res, nil
}

func (f *ResourceFactory) CreateImage(
	extent metadata.Extent,
	format metadata.Format,
	usage metadata.ImageUsageFlags,
	props metadata.MemoryPropertyFlags,
	aspect metadata.ImageAspectFlags,
) (*ImageResource, error) {
	var cleanup releaser
	defer cleanup.release()

	image, reqs, err := f.device.CreateImage(metadata.ImageInfo{Extent: extent, Format: format, Usage: usage})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %dx%d image", extent.Width, extent.Height)
	}
	cleanup.add(func() { f.device.DestroyImage(image) })

	typeIndex, err := FindMemoryType(f.device.MemoryTypes(), reqs.MemoryTypeBits, props)
	if err != nil {
		return nil, err
	}
	memory, err := f.device.AllocateMemory(reqs.Size, typeIndex)
	if err != nil {
		return nil, core.ResourceExhausted(errors.Wrapf(err, "failed to allocate %d bytes for image", reqs.Size))
	}
	cleanup.add(func() { f.device.FreeMemory(memory) })

	if err := f.device.BindImageMemory(image, memory); err != nil {
		return nil, errors.Wrap(err, "failed to bind image memory")
	}
	view, err := f.device.CreateImageView(image, format, aspect)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create image view")
	}

	cleanup.disarm()
	return &ImageResource{Image: image, Memory: memory, View: view, Format: format, Extent: extent}, nil
}

// UploadBuffer copies data into a new device local buffer through a staging
// buffer. It blocks until the copy has completed.
func (f *ResourceFactory) UploadBuffer(data []byte, usage metadata.BufferUsageFlags) (*BufferResource, error) {
	size := uint64(len(data))
	if size == 0 {
		return nil, errors.New("cannot upload an empty buffer")
	}
	staging, err := f.stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(f.device)

	dst, err := f.CreateBuffer(size, metadata.BufferUsageTransferDst|usage, metadata.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}
	err = f.runOneShot(func(cb metadata.CommandBuffer) error {
		f.device.CmdCopyBuffer(cb, staging.Buffer, dst.Buffer, size)
		return nil
	})
	if err != nil {
		dst.Destroy(f.device)
		return nil, errors.Wrap(err, "failed to copy staging buffer")
	}
	return dst, nil
}

// UploadTexture creates a sampled, device local image holding the texels of
// tex and leaves it in the shader read-only layout.
func (f *ResourceFactory) UploadTexture(tex *metadata.TextureData) (*ImageResource, error) {
	if err := tex.Validate(); err != nil {
		return nil, err
	}
	staging, err := f.stage(tex.Pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(f.device)

	extent := metadata.Extent{Width: tex.Width, Height: tex.Height}
	img, err := f.CreateImage(
		extent,
		tex.Format,
		metadata.ImageUsageTransferDst|metadata.ImageUsageSampled,
		metadata.MemoryPropertyDeviceLocal,
		metadata.ImageAspectColor,
	)
	if err != nil {
		return nil, err
	}

	err = f.runOneShot(func(cb metadata.CommandBuffer) error {
		if err := f.transition(cb, img.Image, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		f.device.CmdCopyBufferToImage(cb, staging.Buffer, img.Image, extent)
		return f.transition(cb, img.Image, metadata.ImageLayoutTransferDstOptimal, metadata.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		img.Destroy(f.device)
		return nil, errors.Wrapf(err, "failed to upload texture '%s'", tex.Name)
	}
	return img, nil
}

// TransitionBarrier returns the barrier for one of the supported layout
// transitions of a color image.
func TransitionBarrier(image metadata.Image, oldLayout, newLayout metadata.ImageLayout) (metadata.ImageBarrier, error) {
	barrier := metadata.ImageBarrier{
		Image:     image,
		Aspect:    metadata.ImageAspectColor,
		OldLayout: oldLayout,
		NewLayout: newLayout,
	}
	switch {
	case oldLayout == metadata.ImageLayoutUndefined && newLayout == metadata.ImageLayoutTransferDstOptimal:
		// Don't care about the old layout, transition to optimal layout for the copy.
		barrier.SrcAccess = 0
		barrier.DstAccess = metadata.AccessTransferWrite
		barrier.SrcStage = metadata.PipelineStageTopOfPipe
		barrier.DstStage = metadata.PipelineStageTransfer
	case oldLayout == metadata.ImageLayoutTransferDstOptimal && newLayout == metadata.ImageLayoutShaderReadOnlyOptimal:
		// Transitioning from a transfer destination layout to a shader-readonly layout.
		barrier.SrcAccess = metadata.AccessTransferWrite
		barrier.DstAccess = metadata.AccessShaderRead
		barrier.SrcStage = metadata.PipelineStageTransfer
		barrier.DstStage = metadata.PipelineStageFragmentShader
	default:
		return metadata.ImageBarrier{}, errors.Newf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	return barrier, nil
}

func (f *ResourceFactory) transition(cb metadata.CommandBuffer, image metadata.Image, oldLayout, newLayout metadata.ImageLayout) error {
	barrier, err := TransitionBarrier(image, oldLayout, newLayout)
	if err != nil {
		return err
	}
	f.device.CmdImageBarrier(cb, barrier)
	return nil
}

func (f *ResourceFactory) stage(data []byte) (*BufferResource, error) {
	staging, err := f.CreateMappedBuffer(uint64(len(data)), metadata.BufferUsageTransferSrc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging buffer")
	}
	copy(staging.Mapped, data)
	return staging, nil
}

// runOneShot records a single use command buffer, submits it to the graphics
// queue and waits for the queue to drain.
func (f *ResourceFactory) runOneShot(record func(cb metadata.CommandBuffer) error) error {
	buffers, err := f.device.AllocateCommandBuffers(1)
	if err != nil {
		return errors.Wrap(err, "failed to allocate single use command buffer")
	}
	defer f.device.FreeCommandBuffers(buffers)
	cb := buffers[0]

	if err := f.device.BeginCommandBuffer(cb, true); err != nil {
		return err
	}
	if err := record(cb); err != nil {
		// Close the recording so the buffer can be freed.
		_ = f.device.EndCommandBuffer(cb)
		return err
	}
	if err := f.device.EndCommandBuffer(cb); err != nil {
		return err
	}
	if err := f.device.Submit(metadata.SubmitInfo{CommandBuffer: cb}); err != nil {
		return err
	}
	// Wait for it to finish
	return f.device.WaitQueueIdle()
}
