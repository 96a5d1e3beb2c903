package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_AdmitRejectsDuplicates(t *testing.T) {
	w := NewWindow(0)

	assert.True(t, w.Admit("0xaa-0"))
	assert.False(t, w.Admit("0xaa-0"))
	assert.True(t, w.Admit("0xaa-1"))
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, DefaultSize, w.Cap())
}

func TestWindow_EvictsOldestPastCapacity(t *testing.T) {
	w := NewWindow(DefaultSize)

	for i := 0; i < DefaultSize; i++ {
		require.True(t, w.Admit(fmt.Sprintf("0x%d-0", i)))
	}
	require.Equal(t, DefaultSize, w.Len())
	assert.True(t, w.contains("0x0-0"))

	// the 1001st distinct id pushes out the first
	require.True(t, w.Admit("0xnew-0"))
	assert.Equal(t, DefaultSize, w.Len())
	assert.False(t, w.contains("0x0-0"))
	assert.True(t, w.contains("0x1-0"))

	// an evicted id is admissible again
	assert.True(t, w.Admit("0x0-0"))
	assert.False(t, w.contains("0x1-0"))
}

func TestWindow_SizeNeverExceedsCapacity(t *testing.T) {
	w := NewWindow(3)
	ids := []string{"a", "b", "a", "c", "d", "e", "b", "f"}
	for _, id := range ids {
		w.Admit(id)
		if w.Len() > w.Cap() {
			t.Fatalf("len %d exceeds cap %d", w.Len(), w.Cap())
		}
	}
	for _, id := range []string{"e", "b", "f"} {
		assert.True(t, w.contains(id), id)
	}
}
