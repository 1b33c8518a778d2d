package renderer

import (
	"bytes"
	"fmt"
	stdmath "math"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// Object kinds tracked by fakeDevice.
const (
	kindBuffer         = "buffer"
	kindMemory         = "memory"
	kindImage          = "image"
	kindView           = "view"
	kindSampler        = "sampler"
	kindFramebuffer    = "framebuffer"
	kindRenderPass     = "renderpass"
	kindSwapchain      = "swapchain"
	kindFence          = "fence"
	kindSemaphore      = "semaphore"
	kindCommandBuffer  = "commandbuffer"
	kindShader         = "shader"
	kindSetLayout      = "setlayout"
	kindPipelineLayout = "pipelinelayout"
	kindPipeline       = "pipeline"
	kindPool           = "descriptorpool"
)

var allKinds = []string{
	kindBuffer, kindMemory, kindImage, kindView, kindSampler, kindFramebuffer,
	kindRenderPass, kindSwapchain, kindFence, kindSemaphore, kindCommandBuffer,
	kindShader, kindSetLayout, kindPipelineLayout, kindPipeline, kindPool,
}

type fakeFence struct {
	signaled bool
	// Set while a frame submission signalling this fence is executing.
	pending  bool
	cb       metadata.CommandBuffer
	memory   metadata.DeviceMemory
	snapshot []byte
}

// fakeDevice is an in-memory Device. Submitted work completes only when the
// CPU waits for it, so touching resources of a frame still in flight shows up
// as a violation.
type fakeDevice struct {
	next uint64

	live      map[string]map[uint64]bool
	created   map[string]int
	destroyed map[string]int
	// Destroy calls in order, as "kind".
	destroyLog []string
	failOn     map[string]error

	memoryTypes    []metadata.MemoryType
	caps           metadata.SurfaceCapabilities
	formats        []metadata.SurfaceFormat
	modes          []metadata.PresentMode
	graphics       uint32
	present        uint32
	depthSupported map[metadata.Format]bool
	// Images handed out beyond the requested minimum.
	extraImages uint32

	memory       map[metadata.DeviceMemory][]byte
	mapped       map[metadata.DeviceMemory]bool
	bufferMemory map[metadata.Buffer]metadata.DeviceMemory
	setUniforms  map[metadata.DescriptorSet]metadata.Buffer
	boundSet     map[metadata.CommandBuffer]metadata.DescriptorSet
	fences       map[metadata.Fence]*fakeFence
	images       map[metadata.Swapchain][]metadata.Image
	acquired     uint32

	acquireScript []metadata.SurfaceStatus
	presentScript []metadata.SurfaceStatus

	swapchainInfos []metadata.SwapchainInfo
	frameSubmits   []metadata.SubmitInfo
	oneShotSubmits int
	presents       []metadata.PresentInfo
	barriers       []metadata.ImageBarrier
	draws          []uint32
	waitIdleCalls  int
	violations     []string
}

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		live:      make(map[string]map[uint64]bool),
		created:   make(map[string]int),
		destroyed: make(map[string]int),
		failOn:    make(map[string]error),
		memoryTypes: []metadata.MemoryType{
			{PropertyFlags: metadata.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent, HeapIndex: 1},
		},
		caps: metadata.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  0,
			CurrentExtent:  metadata.Extent{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32},
			MinImageExtent: metadata.Extent{Width: 1, Height: 1},
			MaxImageExtent: metadata.Extent{Width: 4096, Height: 4096},
		},
		formats: []metadata.SurfaceFormat{
			{Format: metadata.FormatB8G8R8A8Unorm, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
			{Format: metadata.FormatB8G8R8A8Srgb, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
		},
		modes:          []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox},
		depthSupported: map[metadata.Format]bool{metadata.FormatD32Sfloat: true},
		memory:         make(map[metadata.DeviceMemory][]byte),
		mapped:         make(map[metadata.DeviceMemory]bool),
		bufferMemory:   make(map[metadata.Buffer]metadata.DeviceMemory),
		setUniforms:    make(map[metadata.DescriptorSet]metadata.Buffer),
		boundSet:       make(map[metadata.CommandBuffer]metadata.DescriptorSet),
		fences:         make(map[metadata.Fence]*fakeFence),
		images:         make(map[metadata.Swapchain][]metadata.Image),
	}
	for _, k := range allKinds {
		d.live[k] = make(map[uint64]bool)
	}
	return d
}

func (d *fakeDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) create(kind string) (uint64, error) {
	if err := d.failOn[kind]; err != nil {
		return 0, err
	}
	d.next++
	d.live[kind][d.next] = true
	d.created[kind]++
	return d.next, nil
}

func (d *fakeDevice) destroy(kind string, h uint64) {
	if h == 0 {
		return
	}
	if !d.live[kind][h] {
		d.violate("%s %d destroyed but not alive", kind, h)
		return
	}
	delete(d.live[kind], h)
	d.destroyed[kind]++
	d.destroyLog = append(d.destroyLog, kind)
}

func (d *fakeDevice) liveCount(kind string) int {
	return len(d.live[kind])
}

func (d *fakeDevice) totalLive() int {
	n := 0
	for _, k := range allKinds {
		n += len(d.live[k])
	}
	return n
}

// complete finishes the submission signalling fence f and checks its
// uniform memory was left alone while it executed.
func (d *fakeDevice) complete(f metadata.Fence) {
	ff := d.fences[f]
	if ff == nil || !ff.pending {
		return
	}
	if mem, ok := d.memory[ff.memory]; ok && ff.snapshot != nil && !bytes.Equal(mem[:len(ff.snapshot)], ff.snapshot) {
		d.violate("uniform memory %d written while fence %d was pending", ff.memory, f)
	}
	ff.pending = false
	ff.signaled = true
	ff.snapshot = nil
}

func (d *fakeDevice) completeAll() {
	for f := range d.fences {
		d.complete(f)
	}
}

func (d *fakeDevice) inFlight(cb metadata.CommandBuffer) bool {
	for _, ff := range d.fences {
		if ff.pending && ff.cb == cb {
			return true
		}
	}
	return false
}

// Allocator

func (d *fakeDevice) MemoryTypes() []metadata.MemoryType { return d.memoryTypes }

func (d *fakeDevice) CreateBuffer(size uint64, usage metadata.BufferUsageFlags) (metadata.Buffer, metadata.MemoryRequirements, error) {
	h, err := d.create(kindBuffer)
	if err != nil {
		return 0, metadata.MemoryRequirements{}, err
	}
	return metadata.Buffer(h), metadata.MemoryRequirements{Size: size, Alignment: 16, MemoryTypeBits: 0b11}, nil
}

func (d *fakeDevice) DestroyBuffer(buffer metadata.Buffer) {
	delete(d.bufferMemory, buffer)
	d.destroy(kindBuffer, uint64(buffer))
}

func (d *fakeDevice) CreateImage(info metadata.ImageInfo) (metadata.Image, metadata.MemoryRequirements, error) {
	h, err := d.create(kindImage)
	if err != nil {
		return 0, metadata.MemoryRequirements{}, err
	}
	size := uint64(info.Extent.Width) * uint64(info.Extent.Height) * 4
	return metadata.Image(h), metadata.MemoryRequirements{Size: size, Alignment: 256, MemoryTypeBits: 0b01}, nil
}

func (d *fakeDevice) DestroyImage(image metadata.Image) { d.destroy(kindImage, uint64(image)) }

func (d *fakeDevice) AllocateMemory(size uint64, memoryTypeIndex uint32) (metadata.DeviceMemory, error) {
	if int(memoryTypeIndex) >= len(d.memoryTypes) {
		return 0, errors.Newf("memory type %d out of range", memoryTypeIndex)
	}
	h, err := d.create(kindMemory)
	if err != nil {
		return 0, err
	}
	d.memory[metadata.DeviceMemory(h)] = make([]byte, size)
	return metadata.DeviceMemory(h), nil
}

func (d *fakeDevice) FreeMemory(memory metadata.DeviceMemory) {
	delete(d.memory, memory)
	delete(d.mapped, memory)
	d.destroy(kindMemory, uint64(memory))
}

func (d *fakeDevice) BindBufferMemory(buffer metadata.Buffer, memory metadata.DeviceMemory) error {
	d.bufferMemory[buffer] = memory
	return nil
}

func (d *fakeDevice) BindImageMemory(image metadata.Image, memory metadata.DeviceMemory) error {
	return nil
}

func (d *fakeDevice) MapMemory(memory metadata.DeviceMemory, size uint64) ([]byte, error) {
	mem, ok := d.memory[memory]
	if !ok || uint64(len(mem)) < size {
		return nil, errors.Newf("cannot map %d bytes of memory %d", size, memory)
	}
	d.mapped[memory] = true
	return mem[:size], nil
}

func (d *fakeDevice) UnmapMemory(memory metadata.DeviceMemory) {
	if !d.mapped[memory] {
		d.violate("memory %d unmapped but not mapped", memory)
	}
	delete(d.mapped, memory)
}

func (d *fakeDevice) CreateImageView(image metadata.Image, format metadata.Format, aspect metadata.ImageAspectFlags) (metadata.ImageView, error) {
	h, err := d.create(kindView)
	return metadata.ImageView(h), err
}

func (d *fakeDevice) DestroyImageView(view metadata.ImageView) { d.destroy(kindView, uint64(view)) }

func (d *fakeDevice) CreateSampler() (metadata.Sampler, error) {
	h, err := d.create(kindSampler)
	return metadata.Sampler(h), err
}

func (d *fakeDevice) DestroySampler(sampler metadata.Sampler) { d.destroy(kindSampler, uint64(sampler)) }

// Presenter

func (d *fakeDevice) SurfaceCapabilities() (metadata.SurfaceCapabilities, error) { return d.caps, nil }

func (d *fakeDevice) SurfaceFormats() ([]metadata.SurfaceFormat, error) { return d.formats, nil }

func (d *fakeDevice) PresentModes() ([]metadata.PresentMode, error) { return d.modes, nil }

func (d *fakeDevice) QueueFamilies() (uint32, uint32) { return d.graphics, d.present }

func (d *fakeDevice) SupportsDepthFormat(format metadata.Format) bool { return d.depthSupported[format] }

func (d *fakeDevice) CreateSwapchain(info metadata.SwapchainInfo) (metadata.Swapchain, error) {
	h, err := d.create(kindSwapchain)
	if err != nil {
		return 0, err
	}
	d.swapchainInfos = append(d.swapchainInfos, info)
	images := make([]metadata.Image, info.MinImageCount+d.extraImages)
	for i := range images {
		d.next++
		images[i] = metadata.Image(d.next)
	}
	d.images[metadata.Swapchain(h)] = images
	return metadata.Swapchain(h), nil
}

func (d *fakeDevice) SwapchainImages(swapchain metadata.Swapchain) ([]metadata.Image, error) {
	return d.images[swapchain], nil
}

func (d *fakeDevice) DestroySwapchain(swapchain metadata.Swapchain) {
	delete(d.images, swapchain)
	d.destroy(kindSwapchain, uint64(swapchain))
}

func (d *fakeDevice) AcquireNextImage(swapchain metadata.Swapchain, timeout uint64, signal metadata.Semaphore) (uint32, metadata.SurfaceStatus, error) {
	if !d.live[kindSwapchain][uint64(swapchain)] {
		d.violate("acquire on dead swapchain %d", swapchain)
	}
	status := metadata.SurfaceOptimal
	if len(d.acquireScript) > 0 {
		status, d.acquireScript = d.acquireScript[0], d.acquireScript[1:]
	}
	if status == metadata.SurfaceOutOfDate {
		return 0, status, nil
	}
	n := uint32(len(d.images[swapchain]))
	idx := d.acquired % n
	d.acquired++
	return idx, status, nil
}

func (d *fakeDevice) Present(info metadata.PresentInfo) (metadata.SurfaceStatus, error) {
	if !d.live[kindSwapchain][uint64(info.Swapchain)] {
		d.violate("present on dead swapchain %d", info.Swapchain)
	}
	d.presents = append(d.presents, info)
	status := metadata.SurfaceOptimal
	if len(d.presentScript) > 0 {
		status, d.presentScript = d.presentScript[0], d.presentScript[1:]
	}
	return status, nil
}

// PipelineFactory

func (d *fakeDevice) CreateRenderPass(info metadata.RenderPassInfo) (metadata.RenderPass, error) {
	h, err := d.create(kindRenderPass)
	return metadata.RenderPass(h), err
}

func (d *fakeDevice) DestroyRenderPass(renderPass metadata.RenderPass) {
	d.destroy(kindRenderPass, uint64(renderPass))
}

func (d *fakeDevice) CreateFramebuffer(renderPass metadata.RenderPass, attachments []metadata.ImageView, extent metadata.Extent) (metadata.Framebuffer, error) {
	if len(attachments) != 2 {
		d.violate("framebuffer with %d attachments", len(attachments))
	}
	h, err := d.create(kindFramebuffer)
	return metadata.Framebuffer(h), err
}

func (d *fakeDevice) DestroyFramebuffer(framebuffer metadata.Framebuffer) {
	d.destroy(kindFramebuffer, uint64(framebuffer))
}

func (d *fakeDevice) CreateShaderModule(code []byte) (metadata.ShaderModule, error) {
	h, err := d.create(kindShader)
	return metadata.ShaderModule(h), err
}

func (d *fakeDevice) DestroyShaderModule(module metadata.ShaderModule) {
	d.destroy(kindShader, uint64(module))
}

func (d *fakeDevice) CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayout, error) {
	h, err := d.create(kindSetLayout)
	return metadata.DescriptorSetLayout(h), err
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayout) {
	d.destroy(kindSetLayout, uint64(layout))
}

func (d *fakeDevice) CreatePipelineLayout(setLayout metadata.DescriptorSetLayout) (metadata.PipelineLayout, error) {
	h, err := d.create(kindPipelineLayout)
	return metadata.PipelineLayout(h), err
}

func (d *fakeDevice) DestroyPipelineLayout(layout metadata.PipelineLayout) {
	d.destroy(kindPipelineLayout, uint64(layout))
}

func (d *fakeDevice) CreateGraphicsPipeline(info metadata.PipelineInfo) (metadata.Pipeline, error) {
	h, err := d.create(kindPipeline)
	return metadata.Pipeline(h), err
}

func (d *fakeDevice) DestroyPipeline(pipeline metadata.Pipeline) { d.destroy(kindPipeline, uint64(pipeline)) }

func (d *fakeDevice) CreateDescriptorPool(bindings []metadata.DescriptorBinding, maxSets uint32) (metadata.DescriptorPool, error) {
	h, err := d.create(kindPool)
	return metadata.DescriptorPool(h), err
}

func (d *fakeDevice) DestroyDescriptorPool(pool metadata.DescriptorPool) { d.destroy(kindPool, uint64(pool)) }

func (d *fakeDevice) AllocateDescriptorSets(pool metadata.DescriptorPool, layout metadata.DescriptorSetLayout, count uint32) ([]metadata.DescriptorSet, error) {
	sets := make([]metadata.DescriptorSet, count)
	for i := range sets {
		d.next++
		sets[i] = metadata.DescriptorSet(d.next)
	}
	return sets, nil
}

func (d *fakeDevice) UpdateDescriptorSet(set metadata.DescriptorSet, write metadata.DescriptorWrite) {
	d.setUniforms[set] = write.UniformBuffer
}

// Synchronizer

func (d *fakeDevice) CreateFence(signaled bool) (metadata.Fence, error) {
	h, err := d.create(kindFence)
	if err != nil {
		return 0, err
	}
	d.fences[metadata.Fence(h)] = &fakeFence{signaled: signaled}
	return metadata.Fence(h), nil
}

func (d *fakeDevice) DestroyFence(fence metadata.Fence) {
	if ff := d.fences[fence]; ff != nil && ff.pending {
		d.violate("fence %d destroyed while pending", fence)
	}
	delete(d.fences, fence)
	d.destroy(kindFence, uint64(fence))
}

func (d *fakeDevice) CreateSemaphore() (metadata.Semaphore, error) {
	h, err := d.create(kindSemaphore)
	return metadata.Semaphore(h), err
}

func (d *fakeDevice) DestroySemaphore(semaphore metadata.Semaphore) {
	d.destroy(kindSemaphore, uint64(semaphore))
}

func (d *fakeDevice) WaitForFence(fence metadata.Fence, timeout uint64) error {
	ff := d.fences[fence]
	if ff == nil {
		return errors.Newf("unknown fence %d", fence)
	}
	if !ff.signaled && !ff.pending {
		// Nothing will ever signal it.
		return errors.Newf("wait on fence %d would deadlock", fence)
	}
	d.complete(fence)
	return nil
}

func (d *fakeDevice) ResetFence(fence metadata.Fence) error {
	ff := d.fences[fence]
	if ff == nil {
		return errors.Newf("unknown fence %d", fence)
	}
	if ff.pending {
		d.violate("fence %d reset while its submission is pending", fence)
	}
	ff.signaled = false
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdleCalls++
	d.completeAll()
	return nil
}

// Recorder

func (d *fakeDevice) AllocateCommandBuffers(count uint32) ([]metadata.CommandBuffer, error) {
	out := make([]metadata.CommandBuffer, 0, count)
	for i := uint32(0); i < count; i++ {
		h, err := d.create(kindCommandBuffer)
		if err != nil {
			return nil, err
		}
		out = append(out, metadata.CommandBuffer(h))
	}
	return out, nil
}

func (d *fakeDevice) FreeCommandBuffers(buffers []metadata.CommandBuffer) {
	for _, cb := range buffers {
		if d.inFlight(cb) {
			d.violate("command buffer %d freed while in flight", cb)
		}
		d.destroy(kindCommandBuffer, uint64(cb))
	}
}

func (d *fakeDevice) ResetCommandBuffer(cb metadata.CommandBuffer) error {
	if d.inFlight(cb) {
		d.violate("command buffer %d reset while in flight", cb)
	}
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb metadata.CommandBuffer, oneShot bool) error {
	if d.inFlight(cb) {
		d.violate("command buffer %d recorded while in flight", cb)
	}
	delete(d.boundSet, cb)
	return nil
}

func (d *fakeDevice) EndCommandBuffer(cb metadata.CommandBuffer) error { return nil }

func (d *fakeDevice) CmdBeginRenderPass(cb metadata.CommandBuffer, renderPass metadata.RenderPass, framebuffer metadata.Framebuffer, extent metadata.Extent, clear metadata.ClearValues) {
	if !d.live[kindFramebuffer][uint64(framebuffer)] {
		d.violate("render pass begun on dead framebuffer %d", framebuffer)
	}
}

func (d *fakeDevice) CmdEndRenderPass(cb metadata.CommandBuffer) {}

func (d *fakeDevice) CmdBindPipeline(cb metadata.CommandBuffer, pipeline metadata.Pipeline) {}

func (d *fakeDevice) CmdSetViewport(cb metadata.CommandBuffer, extent metadata.Extent) {}

func (d *fakeDevice) CmdSetScissor(cb metadata.CommandBuffer, extent metadata.Extent) {}

func (d *fakeDevice) CmdBindVertexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer) {}

func (d *fakeDevice) CmdBindIndexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer) {}

func (d *fakeDevice) CmdBindDescriptorSet(cb metadata.CommandBuffer, layout metadata.PipelineLayout, set metadata.DescriptorSet) {
	d.boundSet[cb] = set
}

func (d *fakeDevice) CmdDrawIndexed(cb metadata.CommandBuffer, indexCount uint32) {
	d.draws = append(d.draws, indexCount)
}

func (d *fakeDevice) CmdCopyBuffer(cb metadata.CommandBuffer, src, dst metadata.Buffer, size uint64) {
	srcMem := d.memory[d.bufferMemory[src]]
	dstMem := d.memory[d.bufferMemory[dst]]
	copy(dstMem, srcMem[:size])
}

func (d *fakeDevice) CmdCopyBufferToImage(cb metadata.CommandBuffer, src metadata.Buffer, dst metadata.Image, extent metadata.Extent) {
}

func (d *fakeDevice) CmdImageBarrier(cb metadata.CommandBuffer, barrier metadata.ImageBarrier) {
	d.barriers = append(d.barriers, barrier)
}

// Submitter

func (d *fakeDevice) Submit(info metadata.SubmitInfo) error {
	if info.Fence == 0 {
		d.oneShotSubmits++
		return nil
	}
	ff := d.fences[info.Fence]
	if ff == nil {
		return errors.Newf("unknown fence %d", info.Fence)
	}
	if ff.signaled || ff.pending {
		d.violate("submit with fence %d that was not reset", info.Fence)
	}
	ff.pending = true
	ff.cb = info.CommandBuffer
	ff.memory = 0
	ff.snapshot = nil
	if set, ok := d.boundSet[info.CommandBuffer]; ok {
		mem := d.bufferMemory[d.setUniforms[set]]
		ff.memory = mem
		ff.snapshot = append([]byte(nil), d.memory[mem][:metadata.UniformBufferObjectSize]...)
	}
	d.frameSubmits = append(d.frameSubmits, info)
	return nil
}

func (d *fakeDevice) WaitQueueIdle() error {
	d.completeAll()
	return nil
}

var _ Device = (*fakeDevice)(nil)
