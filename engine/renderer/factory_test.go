package renderer

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

func TestFindMemoryType(t *testing.T) {
	types := []metadata.MemoryType{
		{PropertyFlags: metadata.MemoryPropertyDeviceLocal},
		{PropertyFlags: metadata.MemoryPropertyHostVisible},
		{PropertyFlags: metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent},
		{PropertyFlags: metadata.MemoryPropertyDeviceLocal | metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent},
	}
	hostCoherent := metadata.MemoryPropertyHostVisible | metadata.MemoryPropertyHostCoherent

	tests := []struct {
		name    string
		filter  uint32
		props   metadata.MemoryPropertyFlags
		want    uint32
		wantErr bool
	}{
		{"first match", 0b1111, metadata.MemoryPropertyDeviceLocal, 0, false},
		{"superset accepted", 0b1000, hostCoherent, 3, false},
		{"filter skips earlier types", 0b1100, metadata.MemoryPropertyHostVisible, 2, false},
		{"flags must all be present", 0b0010, hostCoherent, 0, true},
		{"empty filter", 0, metadata.MemoryPropertyDeviceLocal, 0, true},
		{"filter beyond table", 0b10000, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindMemoryType(types, tt.filter, tt.props)
			if tt.wantErr {
				if core.KindOf(err) != core.ErrorKindResourceExhausted {
					t.Fatalf("expected resource exhaustion, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("FindMemoryType() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTransitionBarrier(t *testing.T) {
	tests := []struct {
		name     string
		from, to metadata.ImageLayout
		want     metadata.ImageBarrier
		wantErr  bool
	}{
		{
			name: "undefined to transfer destination",
			from: metadata.ImageLayoutUndefined,
			to:   metadata.ImageLayoutTransferDstOptimal,
			want: metadata.ImageBarrier{
				DstAccess: metadata.AccessTransferWrite,
				SrcStage:  metadata.PipelineStageTopOfPipe,
				DstStage:  metadata.PipelineStageTransfer,
			},
		},
		{
			name: "transfer destination to shader read",
			from: metadata.ImageLayoutTransferDstOptimal,
			to:   metadata.ImageLayoutShaderReadOnlyOptimal,
			want: metadata.ImageBarrier{
				SrcAccess: metadata.AccessTransferWrite,
				DstAccess: metadata.AccessShaderRead,
				SrcStage:  metadata.PipelineStageTransfer,
				DstStage:  metadata.PipelineStageFragmentShader,
			},
		},
		{
			name:    "undefined to shader read",
			from:    metadata.ImageLayoutUndefined,
			to:      metadata.ImageLayoutShaderReadOnlyOptimal,
			wantErr: true,
		},
		{
			name:    "backwards",
			from:    metadata.ImageLayoutShaderReadOnlyOptimal,
			to:      metadata.ImageLayoutTransferDstOptimal,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransitionBarrier(42, tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			want := tt.want
			want.Image = 42
			want.Aspect = metadata.ImageAspectColor
			want.OldLayout = tt.from
			want.NewLayout = tt.to
			if got != want {
				t.Errorf("TransitionBarrier() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestUploadBuffer(t *testing.T) {
	dev := newFakeDevice()
	f := NewResourceFactory(dev)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	res, err := f.UploadBuffer(data, metadata.BufferUsageVertexBuffer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dev.memory[res.Memory], data) {
		t.Errorf("device memory holds %v", dev.memory[res.Memory])
	}
	if dev.oneShotSubmits != 1 {
		t.Errorf("%d one-shot submissions", dev.oneShotSubmits)
	}
	// Only the destination buffer and its memory remain.
	if dev.liveCount(kindBuffer) != 1 || dev.liveCount(kindMemory) != 1 || dev.liveCount(kindCommandBuffer) != 0 {
		t.Errorf("staging not released: %d buffers, %d allocations, %d command buffers",
			dev.liveCount(kindBuffer), dev.liveCount(kindMemory), dev.liveCount(kindCommandBuffer))
	}
	res.Destroy(dev)
	res.Destroy(dev)
	if dev.totalLive() != 0 {
		t.Error("buffer resource not released")
	}
	if _, err := f.UploadBuffer(nil, metadata.BufferUsageIndexBuffer); err == nil {
		t.Error("empty upload must fail")
	}
	checkViolations(t, dev)
}

func TestUploadTexture(t *testing.T) {
	dev := newFakeDevice()
	f := NewResourceFactory(dev)
	tex := testAssets().Texture

	img, err := f.UploadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	if len(dev.barriers) != 2 {
		t.Fatalf("%d barriers recorded", len(dev.barriers))
	}
	if dev.barriers[0].NewLayout != metadata.ImageLayoutTransferDstOptimal ||
		dev.barriers[1].NewLayout != metadata.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("unexpected barrier sequence %+v", dev.barriers)
	}
	if img.Extent != (metadata.Extent{Width: 2, Height: 2}) || img.Format != metadata.FormatB5G6R5UnormPack16 {
		t.Errorf("unexpected image %+v", img)
	}
	img.Destroy(dev)
	if dev.totalLive() != 0 {
		t.Errorf("%d objects alive", dev.totalLive())
	}

	bad := *tex
	bad.Pixels = bad.Pixels[:3]
	if _, err := f.UploadTexture(&bad); err == nil {
		t.Error("a short pixel buffer must fail")
	}
	checkViolations(t, dev)
}

func TestCreateBufferReleasesOnFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.failOn[kindMemory] = errors.New("heap exhausted")
	_, err := NewResourceFactory(dev).CreateBuffer(64, metadata.BufferUsageUniformBuffer, metadata.MemoryPropertyHostVisible)
	if core.KindOf(err) != core.ErrorKindResourceExhausted {
		t.Fatalf("expected resource exhaustion, got %v", err)
	}
	if dev.totalLive() != 0 {
		t.Error("buffer leaked after failed allocation")
	}
}

func TestReleaserOrder(t *testing.T) {
	var order []int
	var r releaser
	for i := 0; i < 3; i++ {
		r.add(func() { order = append(order, i) })
	}
	r.release()
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Errorf("release order %v", order)
	}
	r.release()
	if len(order) != 3 {
		t.Error("release ran twice")
	}

	var armed releaser
	armed.add(func() { t.Error("disarmed releaser ran") })
	armed.disarm()
	armed.release()
}
