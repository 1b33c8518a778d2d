package renderer

import (
	"context"
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

var spirvStub = []byte{0x03, 0x02, 0x23, 0x07}

func testAssets() SceneAssets {
	return SceneAssets{
		VertexShader:   spirvStub,
		FragmentShader: spirvStub,
		Mesh: &metadata.Mesh{
			Name:     "quad",
			Vertices: make([]metadata.Vertex, 4),
			Indices:  []uint16{0, 1, 2, 2, 3, 0},
		},
		Texture: &metadata.TextureData{
			Name:   "test",
			Width:  2,
			Height: 2,
			Format: metadata.FormatB5G6R5UnormPack16,
			Pixels: make([]byte, 8),
		},
	}
}

// countingUniforms changes the uniform bytes every frame so writes into
// memory still in use by the GPU are detectable.
func countingUniforms() UniformSource {
	var n float32
	return func(extent metadata.Extent) metadata.UniformBufferObject {
		n++
		var ubo metadata.UniformBufferObject
		ubo.Model[0] = n
		ubo.Proj[0] = float32(extent.Width)
		return ubo
	}
}

func newTestRenderer(t *testing.T, dev *fakeDevice, extent metadata.Extent) *Renderer {
	t.Helper()
	r := New(dev, countingUniforms(), DefaultConfig())
	if err := r.Initialize(testAssets(), extent); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return r
}

func checkViolations(t *testing.T, dev *fakeDevice) {
	t.Helper()
	for _, v := range dev.violations {
		t.Error(v)
	}
}

func renderFrames(t *testing.T, r *Renderer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.OnFrame(context.Background()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

var (
	size800x600  = metadata.Extent{Width: 800, Height: 600}
	size1024x768 = metadata.Extent{Width: 1024, Height: 768}
)

func TestFrameCursorCyclesThroughSlots(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)

	var cursors []uint32
	for i := 0; i < 10; i++ {
		cursors = append(cursors, r.Cursor())
		if err := r.OnFrame(context.Background()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	want := []uint32{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}
	for i := range want {
		if cursors[i] != want[i] {
			t.Fatalf("cursor sequence %v, want %v", cursors, want)
		}
	}
	if len(dev.frameSubmits) != 10 || len(dev.presents) != 10 {
		t.Fatalf("submissions %d, presentations %d, want 10 each", len(dev.frameSubmits), len(dev.presents))
	}
	stats := r.Stats()
	if stats.FrameNumber != 10 || stats.Submitted != 10 || stats.Presented != 10 {
		t.Errorf("unexpected stats %+v", stats)
	}
	for i, sub := range dev.frameSubmits {
		slot := r.Slots()[i%MaxFramesInFlight]
		if sub.Fence != slot.InFlight || sub.WaitSemaphore != slot.ImageAvailable || sub.SignalSemaphore != slot.RenderFinished {
			t.Errorf("submission %d does not use the sync objects of slot %d", i, i%MaxFramesInFlight)
		}
		if sub.WaitStage != metadata.PipelineStageColorAttachmentOutput {
			t.Errorf("submission %d waits at stage 0x%x", i, sub.WaitStage)
		}
		if dev.presents[i].WaitSemaphore != slot.RenderFinished {
			t.Errorf("presentation %d does not wait for render finished", i)
		}
	}
	for i, n := range dev.draws {
		if n != 6 {
			t.Errorf("draw %d used %d indices", i, n)
		}
	}
	checkViolations(t, dev)
}

func TestFrameSlotReuseWaitsForFence(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 12)

	// Frames 1, 4, 7 and 10 used slot 0.
	if got := readFloat(r.Slots()[0].Uniforms.Mapped, 0); got != 10 {
		t.Errorf("slot 0 holds uniforms of frame %v, want 10", got)
	}
	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}
	checkViolations(t, dev)
}

func TestInFlightWriteIsDetected(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 1)

	// Slot 0 is still executing: touching its uniforms must be caught.
	r.Slots()[0].Uniforms.Mapped[0] ^= 0xFF
	if err := dev.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if len(dev.violations) != 1 {
		t.Fatalf("expected exactly one violation, got %v", dev.violations)
	}
}

func readFloat(b []byte, offset int) float32 {
	return stdmath.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestResizeMatchesImageCount(t *testing.T) {
	tests := []struct {
		name        string
		extraImages uint32
		wantImages  int
	}{
		{"as requested", 0, 3},
		{"driver adds two", 2, 5},
		{"driver hits the cap", 5, MaxSwapchainImages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			dev.extraImages = tt.extraImages
			r := newTestRenderer(t, dev, size800x600)

			if err := r.OnResize(size1024x768.Width, size1024x768.Height); err != nil {
				t.Fatal(err)
			}
			renderFrames(t, r, 1)

			sc := r.Swapchain()
			if sc.Extent != size1024x768 {
				t.Errorf("extent %v, want %v", sc.Extent, size1024x768)
			}
			if len(sc.Images) != tt.wantImages || len(sc.Views) != tt.wantImages || len(sc.Framebuffers) != tt.wantImages {
				t.Errorf("images %d views %d framebuffers %d, want %d",
					len(sc.Images), len(sc.Views), len(sc.Framebuffers), tt.wantImages)
			}
			if dev.liveCount(kindFramebuffer) != tt.wantImages {
				t.Errorf("%d live framebuffers", dev.liveCount(kindFramebuffer))
			}
			if dev.liveCount(kindSwapchain) != 1 {
				t.Errorf("%d live swapchains", dev.liveCount(kindSwapchain))
			}
			checkViolations(t, dev)
		})
	}
}

func TestResizeTooManyImagesFails(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)

	dev.extraImages = 6
	err := r.OnResize(size1024x768.Width, size1024x768.Height)
	if core.KindOf(err) != core.ErrorKindFatalFrame {
		t.Fatalf("expected a fatal frame error, got %v", err)
	}
	if dev.liveCount(kindSwapchain) != 0 || dev.liveCount(kindFramebuffer) != 0 {
		t.Error("a failed build must not leave swapchain objects behind")
	}
	checkViolations(t, dev)
}

func TestFrameAfterFailedRebuild(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)

	dev.failOn[kindSwapchain] = errors.New("out of device memory")
	if err := r.OnResize(size1024x768.Width, size1024x768.Height); err == nil {
		t.Fatal("the rebuild should fail")
	}

	err := r.OnFrame(context.Background())
	if core.KindOf(err) != core.ErrorKindFatalFrame {
		t.Fatalf("expected a fatal frame error, got %v", err)
	}
	if got := r.Stats().FrameNumber; got != 0 {
		t.Errorf("frame number = %d, nothing should have been rendered", got)
	}

	delete(dev.failOn, kindSwapchain)
	if err := r.OnResize(size800x600.Width, size800x600.Height); err != nil {
		t.Fatalf("rebuild after the failure cleared: %v", err)
	}
	renderFrames(t, r, 2)
	checkViolations(t, dev)
}

func TestResizeSameExtentIsNoop(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 2)

	created, destroyed := sum(dev.created), sum(dev.destroyed)
	waits := dev.waitIdleCalls
	gen := r.Swapchain().Generation

	if err := r.OnResize(size800x600.Width, size800x600.Height); err != nil {
		t.Fatal(err)
	}
	if sum(dev.created) != created || sum(dev.destroyed) != destroyed {
		t.Error("resize to the current extent created or destroyed objects")
	}
	if dev.waitIdleCalls != waits {
		t.Error("resize to the current extent waited for the device")
	}
	if r.Swapchain().Generation != gen {
		t.Error("swapchain generation changed")
	}
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func TestRebuildBalancesSwapchainObjects(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 4)
	cursor := r.Cursor()

	before := map[string][2]int{}
	for _, k := range allKinds {
		before[k] = [2]int{dev.created[k], dev.destroyed[k]}
	}

	if err := r.OnResize(size1024x768.Width, size1024x768.Height); err != nil {
		t.Fatal(err)
	}

	n := r.Swapchain().ImageCount()
	generation := map[string]int{
		kindSwapchain:   1,
		kindFramebuffer: n,
		kindView:        n + 1,
		kindImage:       1,
		kindMemory:      1,
	}
	for _, k := range allKinds {
		created := dev.created[k] - before[k][0]
		destroyed := dev.destroyed[k] - before[k][1]
		if created != generation[k] || destroyed != generation[k] {
			t.Errorf("%s: created %d destroyed %d, want %d each", k, created, destroyed, generation[k])
		}
	}
	if r.Cursor() != cursor {
		t.Errorf("cursor moved from %d to %d during rebuild", cursor, r.Cursor())
	}
	if dev.waitIdleCalls == 0 {
		t.Error("rebuild did not wait for the device")
	}
	checkViolations(t, dev)
}

func TestMinimizeRoundTrip(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 2)
	cursor := r.Cursor()

	if err := r.OnResize(0, 0); err != nil {
		t.Fatal(err)
	}
	if !r.Suspended() || r.Swapchain() != nil {
		t.Fatal("zero extent should suspend and drop the swapchain")
	}
	if dev.liveCount(kindSwapchain) != 0 || dev.liveCount(kindFramebuffer) != 0 {
		t.Error("swapchain objects still alive while suspended")
	}

	submits, presents := len(dev.frameSubmits), len(dev.presents)
	renderFrames(t, r, 5)
	if len(dev.frameSubmits) != submits || len(dev.presents) != presents {
		t.Fatal("frames were submitted while suspended")
	}

	rebuilds := r.Stats().Rebuilds
	if err := r.OnResize(0, 0); err != nil {
		t.Fatal(err)
	}
	if r.Stats().Rebuilds != rebuilds {
		t.Error("a repeated zero extent must not rebuild")
	}

	if err := r.OnResize(size800x600.Width, size800x600.Height); err != nil {
		t.Fatal(err)
	}
	if r.Suspended() || r.State() != FrameIdle {
		t.Fatalf("expected to resume, state %s", r.State())
	}
	if r.Cursor() != cursor {
		t.Errorf("cursor changed from %d to %d", cursor, r.Cursor())
	}
	renderFrames(t, r, 1)
	if len(dev.frameSubmits) != submits+1 || len(dev.presents) != presents+1 {
		t.Error("no frame presented after restoring the window")
	}
	checkViolations(t, dev)
}

func TestSurfaceWithoutAreaSuspends(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)

	// The host reports a size but the surface itself has none yet.
	dev.caps.CurrentExtent = metadata.Extent{}
	if err := r.OnResize(640, 480); err != nil {
		t.Fatal(err)
	}
	if !r.Suspended() {
		t.Fatal("expected suspension for a zero surface extent")
	}

	dev.caps.CurrentExtent = metadata.Extent{Width: stdmath.MaxUint32, Height: stdmath.MaxUint32}
	if err := r.OnResize(640, 480); err != nil {
		t.Fatal(err)
	}
	if r.Suspended() || r.Swapchain().Extent != (metadata.Extent{Width: 640, Height: 480}) {
		t.Fatal("the same host size should retry while suspended")
	}
	checkViolations(t, dev)
}

func TestInitializeAtZeroExtentStartsSuspended(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, metadata.Extent{})
	if !r.Suspended() || dev.liveCount(kindSwapchain) != 0 {
		t.Fatal("expected to start suspended without a swapchain")
	}
	renderFrames(t, r, 2)
	if len(dev.frameSubmits) != 0 {
		t.Fatal("submitted while suspended")
	}
	if err := r.OnResize(size800x600.Width, size800x600.Height); err != nil {
		t.Fatal(err)
	}
	renderFrames(t, r, 1)
	if len(dev.frameSubmits) != 1 {
		t.Fatal("expected one submission after the first resize")
	}
}

func TestOutOfDateOnAcquire(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 1)

	gen := r.Swapchain().Generation
	cursor := r.Cursor()
	submits := len(dev.frameSubmits)

	dev.acquireScript = []metadata.SurfaceStatus{metadata.SurfaceOutOfDate}
	if err := r.OnFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(dev.frameSubmits) != submits {
		t.Error("an out-of-date acquire must not submit")
	}
	if r.Cursor() != cursor {
		t.Errorf("cursor advanced from %d to %d", cursor, r.Cursor())
	}
	if r.Swapchain().Generation == gen {
		t.Error("swapchain was not rebuilt")
	}

	renderFrames(t, r, 1)
	if len(dev.frameSubmits) != submits+1 || r.Cursor() != (cursor+1)%MaxFramesInFlight {
		t.Error("rendering did not continue after the rebuild")
	}
	checkViolations(t, dev)
}

func TestSurfaceStatusAfterSubmitRebuilds(t *testing.T) {
	tests := []struct {
		name    string
		acquire []metadata.SurfaceStatus
		present []metadata.SurfaceStatus
	}{
		{"suboptimal on present", nil, []metadata.SurfaceStatus{metadata.SurfaceSuboptimal}},
		{"out of date on present", nil, []metadata.SurfaceStatus{metadata.SurfaceOutOfDate}},
		{"suboptimal on acquire", []metadata.SurfaceStatus{metadata.SurfaceSuboptimal}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newFakeDevice()
			r := newTestRenderer(t, dev, size800x600)
			gen := r.Swapchain().Generation

			dev.acquireScript = tt.acquire
			dev.presentScript = tt.present
			renderFrames(t, r, 1)

			if len(dev.frameSubmits) != 1 || len(dev.presents) != 1 {
				t.Fatalf("submissions %d presentations %d, want 1 each", len(dev.frameSubmits), len(dev.presents))
			}
			if r.Cursor() != 1 {
				t.Errorf("cursor %d, want 1", r.Cursor())
			}
			if r.Swapchain().Generation == gen || r.Stats().Rebuilds != 1 {
				t.Error("swapchain was not rebuilt")
			}
			renderFrames(t, r, 3)
			checkViolations(t, dev)
		})
	}
}

func TestUniformsWrittenToCurrentSlot(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 2)

	if got := readFloat(r.Slots()[0].Uniforms.Mapped, 0); got != 1 {
		t.Errorf("slot 0 model[0] = %v, want 1", got)
	}
	if got := readFloat(r.Slots()[1].Uniforms.Mapped, 0); got != 2 {
		t.Errorf("slot 1 model[0] = %v, want 2", got)
	}
	// Proj starts at byte 128 and carries the extent width.
	if got := readFloat(r.Slots()[1].Uniforms.Mapped, 128); got != 800 {
		t.Errorf("slot 1 proj[0] = %v, want 800", got)
	}
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	tests := []struct {
		kind string
		want core.ErrorKind
	}{
		{kindRenderPass, core.ErrorKindFatalSetup},
		{kindPipeline, core.ErrorKindFatalSetup},
		{kindSampler, core.ErrorKindFatalSetup},
		{kindFence, core.ErrorKindFatalSetup},
		{kindSwapchain, core.ErrorKindFatalSetup},
		{kindFramebuffer, core.ErrorKindFatalSetup},
		{kindMemory, core.ErrorKindResourceExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			dev := newFakeDevice()
			dev.failOn[tt.kind] = errors.Newf("%s creation failed", tt.kind)
			r := New(dev, countingUniforms(), DefaultConfig())

			err := r.Initialize(testAssets(), size800x600)
			if err == nil {
				t.Fatal("expected Initialize to fail")
			}
			if got := core.KindOf(err); got != tt.want {
				t.Errorf("error kind %s, want %s: %v", got, tt.want, err)
			}
			if n := dev.totalLive(); n != 0 {
				t.Errorf("%d objects left alive", n)
			}
			if err := r.OnFrame(context.Background()); core.KindOf(err) != core.ErrorKindFatalFrame {
				t.Errorf("OnFrame on a failed renderer: %v", err)
			}
			checkViolations(t, dev)
		})
	}
}

func TestMissingDepthFormat(t *testing.T) {
	dev := newFakeDevice()
	dev.depthSupported = map[metadata.Format]bool{}
	r := New(dev, countingUniforms(), DefaultConfig())

	err := r.Initialize(testAssets(), size800x600)
	if core.KindOf(err) != core.ErrorKindResourceExhausted {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
	if dev.totalLive() != 0 {
		t.Error("objects created without a depth format")
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	renderFrames(t, r, 5)
	if err := r.OnResize(size1024x768.Width, size1024x768.Height); err != nil {
		t.Fatal(err)
	}
	if err := r.OnResize(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.OnResize(size800x600.Width, size800x600.Height); err != nil {
		t.Fatal(err)
	}
	renderFrames(t, r, 5)

	if err := r.Shutdown(); err != nil {
		t.Fatal(err)
	}
	for _, k := range allKinds {
		if dev.created[k] != dev.destroyed[k] {
			t.Errorf("%s: created %d destroyed %d", k, dev.created[k], dev.destroyed[k])
		}
	}
	if len(dev.mapped) != 0 {
		t.Errorf("%d allocations still mapped", len(dev.mapped))
	}
	if err := r.Shutdown(); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
	checkViolations(t, dev)
}

func TestOnFrameHonorsContext(t *testing.T) {
	dev := newFakeDevice()
	r := newTestRenderer(t, dev, size800x600)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.OnFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(dev.frameSubmits) != 0 {
		t.Error("submitted after cancellation")
	}
}
