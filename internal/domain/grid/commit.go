package grid

import (
	"fmt"
	"strings"
)

// CommitBatch is the changed-row payload of one commit. Rows are copies taken
// when the commit started.
type CommitBatch struct {
	Master []*Row
	Detail []*Row
	// DetailFor is the master identity the detail rows belong to
	DetailFor Identity
}

// Size returns the number of rows in the batch
func (b *CommitBatch) Size() int {
	return len(b.Master) + len(b.Detail)
}

// Counts returns the number of rows per lifecycle tag
func (b *CommitBatch) Counts() map[Lifecycle]int {
	counts := make(map[Lifecycle]int)
	for _, r := range b.Master {
		counts[r.Lifecycle]++
	}
	for _, r := range b.Detail {
		counts[r.Lifecycle]++
	}
	return counts
}

// SavedMessage is the success toast after a commit
const SavedMessage = "Changes saved"

// CommitPipeline collects dirty rows from the surfaces, guards against
// concurrent commits and settles the grids once the backend answered.
type CommitPipeline struct {
	master    Surface
	ledger    *Ledger
	dependent *DependentCollection
	notifier  Notifier
	inFlight  bool
	// unresolved counts transitions still waiting for a confirmation
	unresolved func() int
}

// NewCommitPipeline creates a commit pipeline
func NewCommitPipeline(master Surface, ledger *Ledger, dependent *DependentCollection, notifier Notifier) *CommitPipeline {
	return &CommitPipeline{
		master:    master,
		ledger:    ledger,
		dependent: dependent,
		notifier:  notifier,
	}
}

// InFlight reports whether a commit is running
func (p *CommitPipeline) InFlight() bool {
	return p.inFlight
}

// Prepare starts a commit. It claims the in-flight flag, reads every row from
// the surfaces, keeps the dirty ones and checks required fields.
// ErrNoChanges and ErrValidationRejected release the flag again; on success
// the caller must hand the batch to Finish. A commit is refused while a
// transition still waits for its confirmation.
func (p *CommitPipeline) Prepare() (*CommitBatch, error) {
	if p.inFlight {
		return nil, ErrCommitInFlight
	}
	if p.unresolved != nil {
		if n := p.unresolved(); n > 0 {
			msg := fmt.Sprintf("%d change(s) still wait for confirmation", n)
			p.notify(LevelWarning, CodeConfirmationPending, msg)
			return nil, fmt.Errorf("%w: %s", ErrValidationRejected, msg)
		}
	}
	p.inFlight = true

	batch := &CommitBatch{
		Master: dirtyRows(p.master, p.ledger),
	}
	if p.dependent != nil {
		if master, ok := p.dependent.LoadedFor(); ok {
			batch.Detail = dirtyRows(p.dependent.Surface(), p.dependent.Ledger())
			batch.DetailFor = master
		}
	}

	if batch.Size() == 0 {
		p.inFlight = false
		return nil, ErrNoChanges
	}

	if problems := requiredProblems(p.ledger.Schema(), batch.Master); len(problems) > 0 {
		p.inFlight = false
		return nil, p.reject(problems)
	}
	if p.dependent != nil {
		if problems := requiredProblems(p.dependent.Ledger().Schema(), batch.Detail); len(problems) > 0 {
			p.inFlight = false
			return nil, p.reject(problems)
		}
	}
	return batch, nil
}

// Finish settles a commit started by Prepare. On success the snapshots are
// replaced, deleted rows leave the grids and every tag is recomputed. On
// failure the grids are left exactly as they are.
func (p *CommitPipeline) Finish(batch *CommitBatch, result SaveResult, err error) error {
	p.inFlight = false

	if err != nil || !result.Success {
		msg := result.Message
		if err != nil && msg == "" {
			msg = err.Error()
		}
		if msg == "" {
			msg = ErrPersistenceFailed.Message
		}
		p.notify(LevelError, CodePersistenceFailed, msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
		return persistenceFailed(msg)
	}

	settle(p.master, p.ledger, batch.Master)
	if p.dependent != nil && len(batch.Detail) > 0 && p.dependent.IsLoadedFor(batch.DetailFor) {
		settle(p.dependent.Surface(), p.dependent.Ledger(), batch.Detail)
	}

	msg := result.Message
	if msg == "" {
		msg = SavedMessage
	}
	p.notify(LevelSuccess, "", msg)
	return nil
}

func (p *CommitPipeline) reject(problems []string) error {
	msg := "Required fields are empty: " + strings.Join(problems, "; ")
	p.notify(LevelWarning, CodeValidationRejected, msg)
	return rejected(msg)
}

func (p *CommitPipeline) notify(level Level, code, msg string) {
	if p.notifier != nil {
		p.notifier.Notify(Notification{Level: level, Code: code, Message: msg})
	}
}

func dirtyRows(s Surface, l *Ledger) []*Row {
	var rows []*Row
	s.ForEachRow(func(row *Row) bool {
		l.Apply(row)
		if row.IsDirty() {
			rows = append(rows, row.Clone())
		}
		return true
	})
	return rows
}

func requiredProblems(schema *Schema, rows []*Row) []string {
	var problems []string
	for _, r := range rows {
		if r.Lifecycle == LifecycleDeleted {
			continue
		}
		if missing := schema.MissingRequired(r.Values); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s (%s)", r.ID, strings.Join(missing, ", ")))
		}
	}
	return problems
}

// settle rebuilds the snapshot scope from the committed values, drops deleted
// rows and recomputes tags. Rows edited after the batch was taken keep their
// new values and stay dirty.
func settle(s Surface, l *Ledger, committed []*Row) {
	byID := make(map[Identity]*Row, len(committed))
	for _, r := range committed {
		byID[r.ID] = r
	}

	snaps := l.Snapshots()
	var next []*Row
	var removed []Identity
	s.ForEachRow(func(row *Row) bool {
		if c, ok := byID[row.ID]; ok {
			if c.Lifecycle == LifecycleDeleted {
				removed = append(removed, row.ID)
				return true
			}
			next = append(next, &Row{ID: row.ID, Values: c.Values})
			return true
		}
		if row.Lifecycle == LifecycleCreated {
			return true
		}
		if snap, ok := snaps.Get(row.ID); ok {
			next = append(next, &Row{ID: row.ID, Values: snap})
		}
		return true
	})
	snaps.Load(next)

	for _, id := range removed {
		s.Remove(id)
	}

	var refreshed []*Row
	s.ForEachRow(func(row *Row) bool {
		if c, ok := byID[row.ID]; ok && row.Lifecycle == c.Lifecycle {
			row.Lifecycle = LifecycleUnchanged
		}
		if l.Apply(row) || byID[row.ID] != nil {
			refreshed = append(refreshed, row)
		}
		return true
	})
	if len(refreshed) > 0 {
		s.RefreshCells(refreshed, LifecycleColumn)
	}
}
