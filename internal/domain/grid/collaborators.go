package grid

import "context"

// Target names the grid a load is for
type Target string

const (
	TargetMaster Target = "master"
	TargetDetail Target = "detail"
)

// Query carries load parameters
type Query map[string]string

// Clone returns a copy of the query
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// LoadResult is the outcome of a backend load
type LoadResult struct {
	Success bool
	Rows    []Values
	Message string
}

// SaveResult is the outcome of a backend save
type SaveResult struct {
	Success bool
	Message string
}

// Persistence is the backend the engine loads from and commits to.
// Changed master and detail rows are saved in one call.
type Persistence interface {
	Load(ctx context.Context, target Target, query Query) (LoadResult, error)
	Save(ctx context.Context, master, detail []*Row) (SaveResult, error)
}

// Confirmer asks the user to confirm an action. Exactly one of the callbacks
// is invoked, on the session's event loop.
type Confirmer interface {
	Confirm(title, message string, onConfirm, onCancel func())
}

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a toast for the user
type Notification struct {
	Level   Level  `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Notifier delivers notifications. It is fire-and-forget.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notification)

// Notify calls f(n)
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Scheduler runs blocking backend calls off the event loop. The task runs
// asynchronously; the continuation it returns (if any) must be run back on
// the event loop.
type Scheduler interface {
	Run(task func(ctx context.Context) func())
}

// ImmediateScheduler runs the task and its continuation inline
type ImmediateScheduler struct{}

// Run executes task synchronously
func (ImmediateScheduler) Run(task func(ctx context.Context) func()) {
	if next := task(context.Background()); next != nil {
		next()
	}
}
