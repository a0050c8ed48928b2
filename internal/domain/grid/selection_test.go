package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/gridsync/internal/domain/grid"
)

func TestSelection_CleanSwitchLoadsDetail(t *testing.T) {
	f := loaded()

	f.master.Select("A")

	assert.Equal(t, grid.Identity("A"), f.editor.Guard().Current())
	assert.True(t, f.editor.Dependent().IsLoadedFor("A"))
	assert.Equal(t, 2, f.detail.Len())
	f.persist.AssertCalled(t, "Load", mock.Anything, grid.TargetDetail, grid.Query{"code": "A"})
}

func TestSelection_SameIdentityDoesNotReload(t *testing.T) {
	f := loaded()
	f.master.Select("A")

	f.master.Select("A")

	f.persist.AssertNumberOfCalls(t, "Load", 2)
}

func TestSelection_DirtyMasterBlocksSwitchOnce(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	require.NoError(t, f.master.BeginEdit("A", "qty"))
	require.NoError(t, f.master.Edit("A", "qty", int64(10)))
	f.master.EndEdit()
	require.Equal(t, grid.LifecycleUpdated, row(f.master, "A").Lifecycle)

	f.master.Select("B")

	assert.Equal(t, grid.Identity("A"), f.editor.Guard().Current())
	assert.Equal(t, grid.Identity("A"), grid.SelectedIdentity(f.master))
	assert.Equal(t, grid.Cell{Row: "A", Field: "qty"}, f.master.Focused())
	assert.Equal(t, 1, f.notifier.count(grid.LevelWarning))
	assert.Equal(t, grid.SelectionIdle, f.editor.Guard().State())
	assert.True(t, f.editor.Dependent().IsLoadedFor("A"))
	f.persist.AssertNotCalled(t, "Load", mock.Anything, grid.TargetDetail, grid.Query{"code": "B"})
}

func TestSelection_DirtyDetailBlocksSwitch(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	require.NoError(t, f.detail.Edit("A|p1", "state", "off"))

	f.master.Select("C")

	assert.Equal(t, grid.Identity("A"), f.editor.Guard().Current())
	assert.Equal(t, 1, f.notifier.count(grid.LevelWarning))
}

func TestSelection_CreatedRowBlocksSwitch(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	_, err := f.editor.CreateRow(grid.TargetMaster, grid.Values{"code": "N", "name": "New", "state": "on"})
	require.NoError(t, err)

	f.master.Select("B")

	assert.Equal(t, grid.Identity("A"), f.editor.Guard().Current())
}

func TestSelection_DeletedRowDoesNotBlock(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	require.NoError(t, f.editor.DeleteRow(grid.TargetMaster, "C"))

	f.master.Select("B")

	assert.Equal(t, grid.Identity("B"), f.editor.Guard().Current())
}

func TestSelection_IgnoredWhileEditing(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	require.NoError(t, f.master.BeginEdit("A", "name"))

	f.master.Select("B")

	assert.Equal(t, grid.Identity("A"), f.editor.Guard().Current())
	assert.True(t, f.editor.Dependent().IsLoadedFor("A"))
	assert.Empty(t, f.notifier.notes)

	f.master.EndEdit()
	assert.False(t, f.editor.Guard().Editing())
}

func TestSelection_RevertedEditAllowsSwitch(t *testing.T) {
	f := loaded()
	f.master.Select("A")
	require.NoError(t, f.master.Edit("A", "name", "Changed"))
	require.NoError(t, f.master.Edit("A", "name", "Alpha"))

	f.master.Select("B")

	assert.Equal(t, grid.Identity("B"), f.editor.Guard().Current())
	assert.Zero(t, f.notifier.count(grid.LevelWarning))
}

func TestSelection_ClearedSelectionResetsDetail(t *testing.T) {
	f := loaded()
	f.master.Select("A")

	f.master.Select("")

	assert.Equal(t, grid.Identity(""), f.editor.Guard().Current())
	_, ok := f.editor.Dependent().LoadedFor()
	assert.False(t, ok)
	assert.Equal(t, 0, f.detail.Len())
}

func TestSelection_StaleDetailLoadIsDiscarded(t *testing.T) {
	sched := &deferredScheduler{}
	f := newFixture(sched)
	f.persist.On("Load", mock.Anything, grid.TargetMaster, mock.Anything).
		Return(grid.LoadResult{Success: true, Rows: itemRows()}, nil)
	f.persist.On("Load", mock.Anything, grid.TargetDetail, grid.Query{"code": "A"}).
		Return(grid.LoadResult{Success: true, Rows: partRows("A")}, nil)
	f.persist.On("Load", mock.Anything, grid.TargetDetail, grid.Query{"code": "B"}).
		Return(grid.LoadResult{Success: true, Rows: partRows("B")}, nil)
	f.editor.Load(grid.Query{})
	sched.flush()

	f.master.Select("A")
	f.master.Select("B")
	require.Len(t, sched.tasks, 2)
	assert.True(t, f.editor.Loading())

	// B answers first, then the superseded A response arrives
	sched.runAt(1)
	sched.runAt(0)

	assert.True(t, f.editor.Dependent().IsLoadedFor("B"))
	_, ok := f.detail.Row("B|p1")
	assert.True(t, ok)
	_, ok = f.detail.Row("A|p1")
	assert.False(t, ok)
	assert.Equal(t, []grid.Target{grid.TargetDetail}, f.staleLoads)
	assert.Empty(t, f.notifier.notes)
	assert.False(t, f.editor.Loading())
}

func TestSelection_StaleMasterLoadIsDiscarded(t *testing.T) {
	sched := &deferredScheduler{}
	f := newFixture(sched)
	f.persist.On("Load", mock.Anything, grid.TargetMaster, grid.Query{"q": "old"}).
		Return(grid.LoadResult{Success: true, Rows: itemRows()[:1]}, nil)
	f.persist.On("Load", mock.Anything, grid.TargetMaster, grid.Query{"q": "new"}).
		Return(grid.LoadResult{Success: true, Rows: itemRows()}, nil)

	f.editor.Load(grid.Query{"q": "old"})
	f.editor.Load(grid.Query{"q": "new"})
	sched.runAt(1)
	sched.runAt(0)

	assert.Equal(t, 3, f.master.Len())
	assert.Equal(t, []grid.Target{grid.TargetMaster}, f.staleLoads)
}
