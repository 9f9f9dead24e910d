package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanout_DeliversPerKey(t *testing.T) {
	f := newFanout()
	a, b := &changeRecorder{}, &changeRecorder{}

	_, unsubA := f.add("a", a.record)
	_, unsubB := f.add("b", b.record)
	defer unsubB()

	assert.True(t, f.has("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, f.keys())

	f.deliver("a", []byte("1"), true)
	f.deliver("a", []byte("1"), true)
	f.deliver("a", nil, false)
	f.deliver("b", []byte("2"), true)

	assert.Equal(t, []string{"1", "<deleted>"}, a.snapshot())
	assert.Equal(t, []string{"2"}, b.snapshot())

	unsubA()
	unsubA()
	assert.False(t, f.has("a"))

	f.deliver("a", []byte("3"), true)
	assert.Equal(t, []string{"1", "<deleted>"}, a.snapshot())
}

func TestFanout_UnsubscribeFromCallback(t *testing.T) {
	f := newFanout()

	var (
		calls int
		unsub Unsubscribe
	)
	_, unsub = f.add("k", func([]byte, bool) {
		calls++
		unsub()
	})

	f.deliver("k", []byte("1"), true)
	f.deliver("k", []byte("2"), true)

	assert.Equal(t, 1, calls)
	assert.Empty(t, f.keys())
}
