package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Filter narrows an export to a time window and operation set
type Filter struct {
	From time.Time
	To   time.Time
	Ops  []OpType
}

func (f *Filter) matches(r *Record) bool {
	at := time.Unix(r.Timestamp, 0)
	if !f.From.IsZero() && at.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && at.After(f.To) {
		return false
	}
	if len(f.Ops) > 0 {
		found := false
		for _, op := range f.Ops {
			if r.Op == op {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// exportRecord is the flattened export shape
type exportRecord struct {
	Seq          uint64 `json:"seq"`
	Op           string `json:"op"`
	Actor        string `json:"actor"`
	PIDID        string `json:"pid_id"`
	RelatedID    string `json:"related_id,omitempty"`
	RelationType string `json:"relation_type,omitempty"`
	Detail       string `json:"detail,omitempty"`
	Timestamp    string `json:"timestamp"`
}

func flatten(r *Record) exportRecord {
	out := exportRecord{
		Seq:          r.Seq,
		Op:           r.Op.String(),
		Actor:        r.Actor,
		PIDID:        r.PIDID.String(),
		RelationType: r.RelationType,
		Detail:       r.Detail,
		Timestamp:    time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
	}
	if r.RelatedID != nil {
		out.RelatedID = r.RelatedID.String()
	}
	return out
}

// ExportJSON writes the matching records as a JSON array
func (l *Log) ExportJSON(w io.Writer, filter *Filter) (int, error) {
	records, err := l.ReadAll()
	if err != nil {
		return 0, err
	}

	out := make([]exportRecord, 0, len(records))
	for _, r := range records {
		if filter == nil || filter.matches(r) {
			out = append(out, flatten(r))
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return 0, fmt.Errorf("failed to encode export: %w", err)
	}
	return len(out), nil
}

// ExportCSV writes the matching records as CSV with a header row
func (l *Log) ExportCSV(w io.Writer, filter *Filter) (int, error) {
	records, err := l.ReadAll()
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	header := []string{"seq", "op", "actor", "pid_id", "related_id", "relation_type", "detail", "timestamp"}
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	count := 0
	for _, r := range records {
		if filter != nil && !filter.matches(r) {
			continue
		}
		flat := flatten(r)
		row := []string{
			strconv.FormatUint(flat.Seq, 10),
			flat.Op,
			flat.Actor,
			flat.PIDID,
			flat.RelatedID,
			flat.RelationType,
			flat.Detail,
			flat.Timestamp,
		}
		if err := writer.Write(row); err != nil {
			return 0, err
		}
		count++
	}

	writer.Flush()
	return count, writer.Error()
}
