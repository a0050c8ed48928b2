package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/gridsync/internal/domain/grid"
)

type recordingListener struct {
	events    []string
	selection [][]grid.Identity
}

func (l *recordingListener) CellEditStarted(row *grid.Row, field string) {
	l.events = append(l.events, "start:"+row.ID.String()+"."+field)
}

func (l *recordingListener) CellEditStopped(row *grid.Row, field string) {
	l.events = append(l.events, "stop:"+row.ID.String()+"."+field)
}

func (l *recordingListener) CellValueChanged(row *grid.Row, field string, _, _ any) {
	l.events = append(l.events, "change:"+row.ID.String()+"."+field)
}

func (l *recordingListener) SelectionChanged(rows []*grid.Row) {
	ids := make([]grid.Identity, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	l.selection = append(l.selection, ids)
}

func newSurface(t *testing.T) (*MemorySurface, *recordingListener) {
	t.Helper()
	s := New("periods")
	l := &recordingListener{}
	s.Subscribe(l)
	s.Replace([]*grid.Row{
		grid.NewRow("202410", grid.Values{"status": "Close"}),
		grid.NewRow("202411", grid.Values{"status": "Open"}),
	})
	return s, l
}

func TestMemorySurface_RowsAndOrder(t *testing.T) {
	s, _ := newSurface(t)

	assert.Equal(t, "periods", s.Name())
	assert.Equal(t, 2, s.Len())

	s.Insert(grid.NewRow("202412", grid.Values{"status": "Open"}))
	var ids []grid.Identity
	s.ForEachRow(func(r *grid.Row) bool {
		ids = append(ids, r.ID)
		return true
	})
	assert.Equal(t, []grid.Identity{"202410", "202411", "202412"}, ids)

	var first []grid.Identity
	s.ForEachRow(func(r *grid.Row) bool {
		first = append(first, r.ID)
		return false
	})
	assert.Len(t, first, 1)

	require.True(t, s.Remove("202411"))
	assert.False(t, s.Remove("202411"))
	r, ok := s.Row("202412")
	require.True(t, ok)
	assert.Equal(t, "Open", r.Get("status"))
}

func TestMemorySurface_SelectRaisesEvent(t *testing.T) {
	s, l := newSurface(t)

	s.Select("202411")
	s.Select("missing")
	s.Select("")

	assert.Equal(t, [][]grid.Identity{{"202411"}, {}}, l.selection)
	assert.Empty(t, s.SelectedRows())
}

func TestMemorySurface_ReplaceKeepsSurvivingSelection(t *testing.T) {
	s, l := newSurface(t)
	s.Select("202411")
	s.Focus(grid.Cell{Row: "202410", Field: "status"})

	s.Replace([]*grid.Row{grid.NewRow("202411", grid.Values{"status": "Close"})})

	assert.Equal(t, grid.Identity("202411"), grid.SelectedIdentity(s))
	assert.True(t, s.Focused().IsZero())
	assert.Len(t, l.selection, 1)

	s.Replace(nil)
	assert.Empty(t, s.SelectedRows())
	assert.Len(t, l.selection, 1)
}

func TestMemorySurface_EditRaisesChangeOnlyWhenValueDiffers(t *testing.T) {
	s, l := newSurface(t)

	require.NoError(t, s.Edit("202411", "status", "Open"))
	assert.Empty(t, l.events)

	require.NoError(t, s.Edit("202411", "status", "Close"))
	assert.Equal(t, []string{"change:202411.status"}, l.events)
	assert.Equal(t, grid.Cell{Row: "202411", Field: "status"}, s.Focused())

	assert.ErrorIs(t, s.Edit("missing", "status", "Close"), grid.ErrRowNotFound)
}

func TestMemorySurface_SetValueIsSilent(t *testing.T) {
	s, l := newSurface(t)

	assert.True(t, s.SetValue("202410", "status", "Open"))
	assert.False(t, s.SetValue("missing", "status", "Open"))
	assert.Empty(t, l.events)

	r, _ := s.Row("202410")
	assert.Equal(t, "Open", r.Get("status"))
}

func TestMemorySurface_EditorLifecycle(t *testing.T) {
	s, l := newSurface(t)

	_, editing := s.Editing()
	assert.False(t, editing)

	require.NoError(t, s.BeginEdit("202411", "status"))
	cell, editing := s.Editing()
	require.True(t, editing)
	assert.Equal(t, grid.Cell{Row: "202411", Field: "status"}, cell)

	s.EndEdit()
	s.EndEdit()
	assert.Equal(t, []string{"start:202411.status", "stop:202411.status"}, l.events)

	assert.ErrorIs(t, s.BeginEdit("missing", "status"), grid.ErrRowNotFound)
}

func TestMemorySurface_Refreshes(t *testing.T) {
	s, _ := newSurface(t)
	r1, _ := s.Row("202410")
	r2, _ := s.Row("202411")

	s.RefreshCells(nil, "status")
	s.RefreshCells([]*grid.Row{r1, r2}, "status", grid.LifecycleColumn)

	got := s.DrainRefreshes()
	require.Len(t, got, 1)
	assert.Equal(t, []grid.Identity{"202410", "202411"}, got[0].Rows)
	assert.Equal(t, []string{"status", grid.LifecycleColumn}, got[0].Fields)
	assert.Empty(t, s.DrainRefreshes())
}

func TestMemorySurface_SnapshotIsDetached(t *testing.T) {
	s, _ := newSurface(t)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	snap[0].Set("status", "Open")

	r, _ := s.Row("202410")
	assert.Equal(t, "Close", r.Get("status"))
}
