package vulkan

import (
	"testing"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

func TestRegistryHandlesAreNeverReused(t *testing.T) {
	r := newRegistry[metadata.Fence, string]()

	a := r.add("a")
	b := r.add("b")
	if a == 0 || b == 0 {
		t.Fatal("the null handle must never be handed out")
	}
	if a == b {
		t.Fatalf("duplicate handle %d", a)
	}

	if v, ok := r.remove(a); !ok || v != "a" {
		t.Fatalf("remove(a) = %q, %v", v, ok)
	}
	if _, ok := r.get(a); ok {
		t.Error("removed handle still resolves")
	}
	if _, ok := r.remove(a); ok {
		t.Error("second remove succeeded")
	}

	c := r.add("c")
	if c == a || c == b {
		t.Errorf("handle %d reused", c)
	}
	if r.len() != 2 {
		t.Errorf("len = %d, want 2", r.len())
	}
}

func TestRegistryRemoveIf(t *testing.T) {
	r := newRegistry[metadata.DescriptorSet, vulkanDescriptorSet]()
	for i := 0; i < 3; i++ {
		r.add(vulkanDescriptorSet{Pool: 1})
	}
	keep := r.add(vulkanDescriptorSet{Pool: 2})

	if n := r.removeIf(func(s vulkanDescriptorSet) bool { return s.Pool == 1 }); n != 3 {
		t.Errorf("removeIf dropped %d, want 3", n)
	}
	if _, ok := r.get(keep); !ok {
		t.Error("set of another pool was dropped")
	}

	seen := 0
	r.each(func(h metadata.DescriptorSet, s vulkanDescriptorSet) {
		seen++
		if h != keep {
			t.Errorf("unexpected handle %d", h)
		}
	})
	if seen != 1 {
		t.Errorf("each visited %d entries, want 1", seen)
	}
}

func TestHandleTablesLive(t *testing.T) {
	tables := newHandleTables()
	if tables.live() != 0 {
		t.Fatalf("fresh tables report %d live objects", tables.live())
	}

	tables.fences.add(nil)
	tables.buffers.add(nil)
	own := tables.images.add(&vulkanImage{})

	// Swapchain images are owned by the swapchain and only the swapchain counts.
	sc := &vulkanSwapchain{}
	for i := 0; i < 3; i++ {
		sc.images = append(sc.images, tables.images.add(&vulkanImage{SwapchainOwned: true}))
	}
	tables.swapchains.add(sc)

	// Descriptor sets go away with their pool.
	tables.descriptorSets.add(vulkanDescriptorSet{Pool: 1})

	if got := tables.live(); got != 4 {
		t.Errorf("live() = %d, want 4", got)
	}

	tables.images.remove(own)
	if got := tables.live(); got != 3 {
		t.Errorf("live() = %d after removing an image, want 3", got)
	}
}
