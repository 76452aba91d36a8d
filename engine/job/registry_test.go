package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/engine/core"
)

type fakeSlots struct {
	released []string
	err      error
}

func (f *fakeSlots) Release(_ context.Context, jobID string) (bool, error) {
	f.released = append(f.released, jobID)
	return true, f.err
}

func TestRegistry(t *testing.T) {
	t.Run("Should register and look up a job", func(t *testing.T) {
		reg := NewRegistry(nil)
		ch, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)

		got, doc, err := reg.Lookup("j1")
		require.NoError(t, err)
		assert.Same(t, ch, got)
		assert.Equal(t, "2401.00001", doc)

		status, err := reg.Status("j1")
		require.NoError(t, err)
		assert.Equal(t, StatePending, status.State)
	})

	t.Run("Should reject a duplicate live id", func(t *testing.T) {
		reg := NewRegistry(nil)
		_, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)
		_, err = reg.Register("j1", "2401.00002")
		assert.ErrorIs(t, err, ErrJobDuplicate)
	})

	t.Run("Should report unknown jobs", func(t *testing.T) {
		reg := NewRegistry(nil)
		_, _, err := reg.Lookup("nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
		_, err = reg.Status("nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.ErrorIs(t, reg.SetState("nope", StateRunning), ErrJobNotFound)
	})

	t.Run("Should release the slot of an admitted job exactly once", func(t *testing.T) {
		slots := &fakeSlots{}
		reg := NewRegistry(slots)
		ch, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)
		require.NoError(t, reg.MarkAdmitted("j1"))

		require.NoError(t, reg.Release(t.Context(), "j1"))
		require.NoError(t, reg.Release(t.Context(), "j1"))

		assert.Equal(t, []string{"j1"}, slots.released)
		assert.True(t, ch.Closed())
		_, _, err = reg.Lookup("j1")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("Should hand a job never admitted to the releaser once", func(t *testing.T) {
		slots := &fakeSlots{}
		reg := NewRegistry(slots)
		_, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)

		require.NoError(t, reg.Release(t.Context(), "j1"))
		require.NoError(t, reg.Release(t.Context(), "j1"))
		assert.Equal(t, []string{"j1"}, slots.released)
	})

	t.Run("Should keep the outcome of released jobs", func(t *testing.T) {
		reg := NewRegistry(&fakeSlots{})
		_, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)
		require.NoError(t, reg.Finish("j1", "", core.Errorf(core.MalformedResponse, "no block")))
		require.NoError(t, reg.Release(t.Context(), "j1"))

		status, err := reg.Status("j1")
		require.NoError(t, err)
		assert.Equal(t, StateReleased, status.State)
		assert.Equal(t, StateFailed, status.Outcome)
		assert.Equal(t, core.MalformedResponse, status.ErrorKind)
		assert.Equal(t, "no block", status.Error)
	})

	t.Run("Should surface slot release errors and still close the channel", func(t *testing.T) {
		boom := errors.New("redis down")
		reg := NewRegistry(&fakeSlots{err: boom})
		ch, err := reg.Register("j1", "2401.00001")
		require.NoError(t, err)
		require.NoError(t, reg.MarkAdmitted("j1"))

		err = reg.Release(t.Context(), "j1")
		assert.ErrorIs(t, err, boom)
		assert.True(t, ch.Closed())
	})

	t.Run("Should list live jobs oldest first", func(t *testing.T) {
		reg := NewRegistry(nil)
		for _, id := range []string{"a", "b", "c"} {
			_, err := reg.Register(id, "2401.00001")
			require.NoError(t, err)
		}
		require.NoError(t, reg.Release(t.Context(), "b"))

		jobs := reg.Snapshot()
		require.Len(t, jobs, 2)
		assert.Equal(t, "a", jobs[0].ID)
		assert.Equal(t, "c", jobs[1].ID)
		assert.Equal(t, 2, reg.Len())
	})
}
