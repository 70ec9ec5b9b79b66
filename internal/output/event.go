package output

import "adoinventory/internal/data"

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started
// - record
// - run.finished
//
// JSON mode is an aggregate array of record rows.
type Event struct {
	Type     string            `json:"type"`
	RunID    string            `json:"run_id,omitempty"`
	Schema   data.Schema       `json:"schema,omitempty"`
	Row      map[string]string `json:"row,omitempty"`
	Orgs     int               `json:"orgs,omitempty"`
	Rows     int               `json:"rows,omitempty"`
	ExitCode int               `json:"exit_code,omitempty"`
}

// RowMap pairs a record's fields with its schema's column names.
func RowMap(r data.Record) map[string]string {
	header := data.Header(r.Schema())
	fields := r.Fields()
	row := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(fields) {
			row[h] = fields[i]
		}
	}
	return row
}

func eventFromRecord(r data.Record) Event {
	return Event{Type: "record", Schema: r.Schema(), Row: RowMap(r)}
}
