package output

import (
	"encoding/json"
	"io"
	"time"
)

// RunEvent is one JSON line emitted by `run --format json` progress output.
type RunEvent struct {
	Event        string `json:"event"` // run_start, statement, run_complete
	Timestamp    string `json:"timestamp"`
	RunID        string `json:"run_id,omitempty"`
	Script       string `json:"script,omitempty"`
	Seq          int    `json:"seq,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Line         int    `json:"line,omitempty"`
	Statement    string `json:"statement,omitempty"`
	Status       string `json:"status,omitempty"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
	Rows         int    `json:"rows,omitempty"`
	SQLState     string `json:"sqlstate,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Error        string `json:"error,omitempty"`
	ExecutionMS  int64  `json:"execution_ms,omitempty"`
	Statements   int    `json:"statements,omitempty"`
	Handled      int    `json:"handled,omitempty"`
	TotalMS      int64  `json:"total_ms,omitempty"`
}

// EmitEvent writes event as a single JSON line, stamping the time.
func EmitEvent(w io.Writer, event RunEvent) error {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
