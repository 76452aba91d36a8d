package core_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/texlate/texlate/engine/core"
)

func TestError(t *testing.T) {
	t.Run("Should classify wrapped errors", func(t *testing.T) {
		err := fmt.Errorf("job 1: %w", core.Errorf(core.FetchFailure, "download %s: %w", "2401.00001", io.ErrUnexpectedEOF))

		assert.Equal(t, core.FetchFailure, core.KindOf(err))
		assert.True(t, core.IsKind(err, core.FetchFailure))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.ErrorIs(t, err, &core.Error{Code: core.FetchFailure})
		assert.NotErrorIs(t, err, &core.Error{Code: core.CompileFailure})
		assert.Equal(t, "job 1: FetchFailure: download 2401.00001: unexpected EOF", err.Error())
	})

	t.Run("Should report Internal for unclassified errors", func(t *testing.T) {
		assert.Equal(t, core.Internal, core.KindOf(errors.New("boom")))
		assert.False(t, core.IsKind(nil, core.Internal))
	})

	t.Run("Should format errors built with NewError", func(t *testing.T) {
		err := core.NewError(io.EOF, core.CompileFailure, map[string]any{"attempts": 3})
		assert.Equal(t, "CompileFailure: EOF", err.Error())
		assert.Equal(t, 3, err.Details["attempts"])
	})

	t.Run("Should tell fatal kinds apart", func(t *testing.T) {
		assert.True(t, core.MalformedResponse.Fatal())
		assert.True(t, core.CompileFailure.Fatal())
		assert.False(t, core.OversizedUnit.Fatal())
		assert.False(t, core.SlotRaceOverrun.Fatal())
	})

	t.Run("Should strip the kind from messages", func(t *testing.T) {
		assert.Equal(t, "no block", core.Message(core.Errorf(core.MalformedResponse, "no block")))
		assert.Equal(t, "EOF", core.Message(core.NewError(io.EOF, core.FetchFailure, nil)))
		assert.Equal(t, "plain", core.Message(errors.New("plain")))
	})
}

func TestNewProblem(t *testing.T) {
	t.Run("Should carry details of classified errors", func(t *testing.T) {
		err := core.NewError(io.EOF, core.FetchFailure, map[string]any{"status": 404})
		doc := core.NewProblem(core.StatusFor(core.FetchFailure), "fetch_failed", err)

		assert.Equal(t, http.StatusBadGateway, doc.Status)
		assert.Equal(t, "Bad Gateway", doc.Error)
		assert.Equal(t, 404, doc.Extras["status"])
	})
}
