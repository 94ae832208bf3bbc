package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryBindingsCompareAndSwap(t *testing.T) {
	b := NewMemoryBindings()
	k := Key{ClientID: "c", Alias: "a"}

	assert.True(t, b.CompareAndSwap(k, "", "s1"))
	assert.False(t, b.CompareAndSwap(k, "", "s2"))
	assert.True(t, b.CompareAndSwap(k, "s1", "s2"))

	id, ok := b.Load(k)
	assert.True(t, ok)
	assert.Equal(t, "s2", id)

	assert.True(t, b.CompareAndSwap(k, "s2", ""))
	_, ok = b.Load(k)
	assert.False(t, ok)
}
