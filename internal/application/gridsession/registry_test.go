package gridsession_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/gridsync/internal/application/gridsession"
)

func TestRegistry_LookupAndList(t *testing.T) {
	b := newBackend()
	second := testScreen(b)
	second.Name = "archive"
	r := gridsession.NewRegistry(testScreen(b), second)

	screens := r.Screens()
	require.Len(t, screens, 2)
	assert.Equal(t, "archive", screens[0].Name)
	assert.Equal(t, "items", screens[1].Name)

	_, err := r.Lookup("missing")
	assert.True(t, errors.Is(err, gridsession.ErrScreenNotFound))
}

func TestRegistry_RejectsInvalidScreens(t *testing.T) {
	b := newBackend()
	r := gridsession.NewRegistry(testScreen(b))

	assert.Error(t, r.Register(testScreen(b)), "duplicate name")

	noPersistence := testScreen(b)
	noPersistence.Name = "other"
	noPersistence.NewPersistence = nil
	assert.Error(t, r.Register(noPersistence))

	assert.Panics(t, func() { gridsession.NewRegistry(gridsession.Screen{}) })
}

func TestScreen_Info(t *testing.T) {
	info := testScreen(newBackend()).Info()

	assert.Equal(t, "items", info.MasterGrid)
	assert.Equal(t, "parts", info.DetailGrid)
	assert.Equal(t, []string{"code", "part"}, info.DetailKey)
	assert.Equal(t, []string{"state"}, info.WatchedFields)
}
