package refcount

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cznic/corelib/tag"
)

type widget struct {
	name string
	n    int
}

func TestNew2StartsAtRefOne(t *testing.T) {
	r := New[widget, struct{}](Hooks[widget, struct{}]{})
	p := r.New2(widget{name: "a", n: 1})
	require.NotNil(t, p)
	assert.Equal(t, int64(1), r.Count(p))
	assert.Equal(t, "a", p.name)
}

func TestUpRefThenFree2DestroysOnce(t *testing.T) {
	destroyed := 0
	r := New[widget, struct{}](Hooks[widget, struct{}]{
		Destroy: func(w *widget) { destroyed++ },
	})
	p := r.New2(widget{name: "b"})

	const n = 5
	for i := 0; i < n; i++ {
		r.UpRef(p)
	}
	assert.Equal(t, int64(n+1), r.Count(p))

	for i := 0; i < n; i++ {
		r.Free2(p)
		assert.Equal(t, 0, destroyed)
	}
	r.Free2(p)
	assert.Equal(t, 1, destroyed)
}

func TestMetadataLifecycle(t *testing.T) {
	type meta struct{ tag int }
	initCalls, destroyCalls := 0, 0
	r := New[widget, meta](Hooks[widget, meta]{
		InitMeta:    func(m *meta) { m.tag = 42; initCalls++ },
		DestroyMeta: func(m *meta) { destroyCalls++ },
	})
	p := r.New2(widget{name: "c"})
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, 42, r.Meta(p).tag)
	r.Free2(p)
	assert.Equal(t, 1, destroyCalls)
}

func TestTagHooksRoundTripThroughPublicAPI(t *testing.T) {
	setBit := func(p *widget) *widget {
		return (*widget)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) | 1))
	}
	clearBit := func(p *widget) *widget {
		return (*widget)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) &^ 1))
	}
	destroyed := 0
	r := New[widget, struct{}](Hooks[widget, struct{}]{
		Destroy: func(w *widget) { destroyed++ },
	}, tag.Hooks[*widget]{Tag: setBit, Untag: clearBit})

	p := r.New2(widget{name: "tagged"})
	require.NotNil(t, p)
	assert.Equal(t, uintptr(1), uintptr(unsafe.Pointer(p))&1, "handle should carry the tag bit")

	assert.Equal(t, int64(1), r.Count(p))
	r.UpRef(p)
	assert.Equal(t, int64(2), r.Count(p))
	r.Free2(p)
	r.Free2(p)
	assert.Equal(t, 1, destroyed)
}

func TestFree2Underflow(t *testing.T) {
	r := New[widget, struct{}](Hooks[widget, struct{}]{})
	p := r.New2(widget{})
	r.Free2(p)
	assert.Panics(t, func() { r.Free2(p) })
}

// TestHeapAllocatedValueSurvivesGC wraps a value whose backing storage
// is only reachable through the envelope itself (a string built at
// runtime rather than a compile-time constant, and a slice grown past
// its original array). A forced GC between construction and use would
// corrupt either field if the envelope were ever carved out of
// unscanned memory instead of the Go heap.
func TestHeapAllocatedValueSurvivesGC(t *testing.T) {
	type payload struct {
		text string
		nums []int
	}
	r := New[payload, struct{}](Hooks[payload, struct{}]{})

	var b strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "chunk-%d-", i)
	}
	text := b.String()

	nums := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		nums = append(nums, i*i)
	}

	p := r.New2(payload{text: text, nums: nums})

	runtime.GC()
	runtime.GC()

	assert.Equal(t, text, p.text)
	assert.Equal(t, []int{0, 1, 4, 9}, p.nums)
}
