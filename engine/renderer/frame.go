package renderer

import (
	"context"
	stdmath "math"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/** @brief The number of frames the CPU may record ahead of the GPU. */
const MaxFramesInFlight = 3

/** @brief Uniform buffers are padded to this size, the largest offset alignment devices require. */
const uniformBufferAlignment = 256

/** @brief Waits never time out; a lost device is reported as an error instead. */
const waitForever uint64 = stdmath.MaxUint64

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameRecording
	FrameSubmitted
	FramePresented
	/** @brief The surface has no area. Nothing is acquired or submitted. */
	FrameSuspended
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FramePresented:
		return "presented"
	case FrameSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

/**
 * @brief The per-frame resources reused every MaxFramesInFlight frames. The
 * in-flight fence guards all of them: nothing in the slot is touched by the
 * CPU until the fence of its previous submission has signaled.
 */
type FrameSlot struct {
	CommandBuffer  metadata.CommandBuffer
	ImageAvailable metadata.Semaphore
	RenderFinished metadata.Semaphore
	InFlight       metadata.Fence
	DescriptorSet  metadata.DescriptorSet
	Uniforms       *BufferResource
}

func (s *FrameSlot) destroy(device Device) {
	if s == nil {
		return
	}
	s.Uniforms.Destroy(device)
	s.Uniforms = nil
	if s.InFlight != 0 {
		device.DestroyFence(s.InFlight)
		s.InFlight = 0
	}
	if s.RenderFinished != 0 {
		device.DestroySemaphore(s.RenderFinished)
		s.RenderFinished = 0
	}
	if s.ImageAvailable != 0 {
		device.DestroySemaphore(s.ImageAvailable)
		s.ImageAvailable = 0
	}
}

/**
 * @brief Supplies the uniform data of the frame about to be recorded.
 * Called once per submitted frame with the current swapchain extent.
 */
type UniformSource func(extent metadata.Extent) metadata.UniformBufferObject

/** @brief Counters kept for logging and tests. */
type FrameStats struct {
	/** @brief Frames fully submitted and presented. */
	FrameNumber uint64
	Submitted   uint64
	Presented   uint64
	/** @brief Swapchain teardowns, including those that ended suspended. */
	Rebuilds uint64
}

// createFrameSlots allocates the ring of frame slots. The fences start
// signaled so the first wait on each slot returns immediately.
func createFrameSlots(device Device, factory *ResourceFactory, static *StaticResources) ([]*FrameSlot, []metadata.CommandBuffer, error) {
	slots := make([]*FrameSlot, 0, MaxFramesInFlight)
	var cleanup releaser
	defer cleanup.release()
	cleanup.add(func() {
		for _, s := range slots {
			s.destroy(device)
		}
	})

	commandBuffers, err := device.AllocateCommandBuffers(MaxFramesInFlight)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to allocate frame command buffers")
	}
	cleanup.add(func() { device.FreeCommandBuffers(commandBuffers) })

	sets, err := device.AllocateDescriptorSets(static.DescriptorPool, static.DescriptorSetLayout, MaxFramesInFlight)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to allocate descriptor sets")
	}
	if len(commandBuffers) != MaxFramesInFlight || len(sets) != MaxFramesInFlight {
		return nil, nil, errors.Newf("expected %d command buffers and descriptor sets, got %d and %d",
			MaxFramesInFlight, len(commandBuffers), len(sets))
	}

	uboSize := metadata.GetAligned(metadata.UniformBufferObjectSize, uniformBufferAlignment)
	for i := 0; i < MaxFramesInFlight; i++ {
		slot := &FrameSlot{
			CommandBuffer: commandBuffers[i],
			DescriptorSet: sets[i],
		}
		slots = append(slots, slot)

		if slot.ImageAvailable, err = device.CreateSemaphore(); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create image available semaphore %d", i)
		}
		if slot.RenderFinished, err = device.CreateSemaphore(); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create render finished semaphore %d", i)
		}
		if slot.InFlight, err = device.CreateFence(true); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create in-flight fence %d", i)
		}
		if slot.Uniforms, err = factory.CreateMappedBuffer(uboSize, metadata.BufferUsageUniformBuffer); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create uniform buffer %d", i)
		}

		device.UpdateDescriptorSet(slot.DescriptorSet, metadata.DescriptorWrite{
			UniformBuffer: slot.Uniforms.Buffer,
			UniformRange:  metadata.UniformBufferObjectSize,
			ImageView:     static.Texture.View,
			Sampler:       static.Sampler,
		})
	}

	cleanup.disarm()
	return slots, commandBuffers, nil
}

// OnFrame renders one frame into the next swapchain image. While suspended
// it does nothing. An out-of-date swapchain is rebuilt and the frame is
// skipped without advancing the frame cursor; every other failure is
// returned marked as a frame error.
func (r *Renderer) OnFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.initialized {
		return core.FatalFrame(errors.New("renderer is not initialized"))
	}
	if r.state == FrameSuspended {
		return nil
	}
	if r.swapchain == nil {
		return core.FatalFrame(errors.New("no swapchain to render into, the last rebuild failed"))
	}

	slot := r.slots[r.current]

	// Wait for the previous submission of this slot. Its command buffer,
	// uniform memory and descriptor set are free once this returns.
	if err := r.device.WaitForFence(slot.InFlight, waitForever); err != nil {
		return core.FatalFrame(errors.Wrapf(err, "failed to wait for frame %d fence", r.current))
	}

	imageIndex, suboptimal, err := r.acquire(slot)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		core.LogDebug("Swapchain out of date on acquire, rebuilding.")
		return r.recreate(r.hostExtent)
	}
	if err != nil {
		return core.FatalFrame(err)
	}

	r.state = FrameRecording
	extent := r.swapchain.Extent
	ubo := r.uniforms(extent)
	ubo.Encode(slot.Uniforms.Mapped)

	if err := r.device.ResetFence(slot.InFlight); err != nil {
		return core.FatalFrame(errors.Wrap(err, "failed to reset in-flight fence"))
	}
	if err := r.record(slot, imageIndex); err != nil {
		return core.FatalFrame(err)
	}

	err = r.device.Submit(metadata.SubmitInfo{
		CommandBuffer:   slot.CommandBuffer,
		WaitSemaphore:   slot.ImageAvailable,
		WaitStage:       metadata.PipelineStageColorAttachmentOutput,
		SignalSemaphore: slot.RenderFinished,
		Fence:           slot.InFlight,
	})
	if err != nil {
		return core.FatalFrame(errors.Wrap(err, "failed to submit frame"))
	}
	r.state = FrameSubmitted
	r.stats.Submitted++

	status, err := r.device.Present(metadata.PresentInfo{
		WaitSemaphore: slot.RenderFinished,
		Swapchain:     r.swapchain.Handle,
		ImageIndex:    imageIndex,
	})
	if err != nil {
		return core.FatalFrame(errors.Wrap(err, "failed to present frame"))
	}
	r.state = FramePresented
	r.stats.Presented++

	r.current = (r.current + 1) % MaxFramesInFlight
	r.stats.FrameNumber++
	r.state = FrameIdle

	if suboptimal || status != metadata.SurfaceOptimal {
		core.LogDebug("Swapchain %s after present, rebuilding.", status)
		return r.recreate(r.hostExtent)
	}
	return nil
}

// acquire gets the next swapchain image, signalling the slot's image
// available semaphore. An out-of-date swapchain is reported as
// core.ErrSwapchainOutOfDate.
func (r *Renderer) acquire(slot *FrameSlot) (uint32, bool, error) {
	imageIndex, status, err := r.device.AcquireNextImage(r.swapchain.Handle, waitForever, slot.ImageAvailable)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to acquire swapchain image")
	}
	switch status {
	case metadata.SurfaceOutOfDate:
		return 0, false, core.ErrSwapchainOutOfDate
	case metadata.SurfaceSuboptimal:
		// The semaphore is already pending, so the frame has to go through.
	}
	if int(imageIndex) >= len(r.swapchain.Framebuffers) {
		return 0, false, errors.Newf("acquired image %d out of %d", imageIndex, len(r.swapchain.Framebuffers))
	}
	return imageIndex, status == metadata.SurfaceSuboptimal, nil
}

func (r *Renderer) record(slot *FrameSlot, imageIndex uint32) error {
	cb := slot.CommandBuffer
	if err := r.device.ResetCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "failed to reset command buffer")
	}
	if err := r.device.BeginCommandBuffer(cb, false); err != nil {
		return errors.Wrap(err, "failed to begin command buffer")
	}

	extent := r.swapchain.Extent
	r.device.CmdBeginRenderPass(cb, r.static.RenderPass, r.swapchain.Framebuffers[imageIndex], extent, metadata.ClearValues{
		Color: r.clearColor,
		Depth: 1.0,
	})
	r.device.CmdBindPipeline(cb, r.static.Pipeline)
	r.device.CmdSetViewport(cb, extent)
	r.device.CmdSetScissor(cb, extent)
	r.device.CmdBindVertexBuffer(cb, r.static.VertexBuffer.Buffer)
	r.device.CmdBindIndexBuffer(cb, r.static.IndexBuffer.Buffer)
	r.device.CmdBindDescriptorSet(cb, r.static.PipelineLayout, slot.DescriptorSet)
	r.device.CmdDrawIndexed(cb, r.static.IndexCount)
	r.device.CmdEndRenderPass(cb)

	if err := r.device.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "failed to end command buffer")
	}
	return nil
}
