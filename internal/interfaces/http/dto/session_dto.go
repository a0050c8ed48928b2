package dto

// CreateSessionRequest opens an editing session on a screen
type CreateSessionRequest struct {
	Screen string            `json:"screen" binding:"required,max=64"`
	Query  map[string]string `json:"query"`
}

// LoadRequest replaces the master rows with the result of a new query
type LoadRequest struct {
	Query map[string]string `json:"query"`
}

// CellRequest addresses one cell of a grid
type CellRequest struct {
	Grid  string `json:"grid" binding:"required,oneof=master detail"`
	Row   string `json:"row" binding:"required"`
	Field string `json:"field" binding:"required"`
}

// StopEditRequest ends the edit on a grid
type StopEditRequest struct {
	Grid string `json:"grid" binding:"required,oneof=master detail"`
}

// SetCellRequest writes a raw value into a cell. Value is normalised by the
// field's kind, so numbers may arrive as JSON numbers or strings.
type SetCellRequest struct {
	CellRequest
	Value any `json:"value"`
}

// SelectRequest moves the master selection
type SelectRequest struct {
	Row string `json:"row" binding:"required"`
}

// CreateRowRequest appends a new row to a grid
type CreateRowRequest struct {
	Grid   string         `json:"grid" binding:"required,oneof=master detail"`
	Values map[string]any `json:"values"`
}

// RowURI addresses a row through the path
type RowURI struct {
	Grid string `uri:"grid" binding:"required,oneof=master detail"`
	Row  string `uri:"row" binding:"required"`
}

// ConfirmRequest answers a pending confirmation
type ConfirmRequest struct {
	Confirm *bool `json:"confirm" binding:"required"`
}
