package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogChannel(t *testing.T) {
	t.Run("Should drain lines in order", func(t *testing.T) {
		ch := NewLogChannel()
		ch.Append("one")
		ch.Append("two")

		lines, done := ch.Drain()
		assert.Equal(t, []string{"one", "two"}, lines)
		assert.False(t, done)

		lines, done = ch.Drain()
		assert.Empty(t, lines)
		assert.False(t, done, "an empty channel is not a finished one")
	})

	t.Run("Should split writes into lines and flush the remainder on close", func(t *testing.T) {
		ch := NewLogChannel()
		_, err := ch.Write([]byte("a\nb"))
		require.NoError(t, err)
		_, err = ch.Write([]byte("c\nd"))
		require.NoError(t, err)
		ch.Close()

		lines, done := ch.Drain()
		assert.Equal(t, []string{"a", "bc", "d"}, lines)
		assert.True(t, done)
	})

	t.Run("Should wake readers on append and close", func(t *testing.T) {
		ch := NewLogChannel()
		ready := ch.Ready()
		go func() {
			time.Sleep(5 * time.Millisecond)
			ch.Append("hello")
		}()
		select {
		case <-ready:
		case <-time.After(time.Second):
			t.Fatal("reader was not woken by append")
		}

		ready = ch.Ready()
		ch.Close()
		select {
		case <-ready:
		case <-time.After(time.Second):
			t.Fatal("reader was not woken by close")
		}
	})

	t.Run("Should drop lines appended after close", func(t *testing.T) {
		ch := NewLogChannel()
		ch.Close()
		ch.Close()
		ch.Append("late")

		lines, done := ch.Drain()
		assert.Empty(t, lines)
		assert.True(t, done)
		assert.True(t, ch.Closed())
	})
}
