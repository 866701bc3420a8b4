package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openLog(t *testing.T, dir string) *Log {
	t.Helper()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return l
}

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	defer l.Close()

	pid := uuid.New()
	related := uuid.New()

	seq1, err := l.Append(OpPIDCreate, Record{Actor: "alice", PIDID: pid})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	seq2, err := l.Append(OpRelationAdd, Record{
		Actor:        "alice",
		PIDID:        pid,
		RelatedID:    &related,
		RelationType: "version",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if seq2 != seq1+1 {
		t.Errorf("expected consecutive sequence numbers, got %d then %d", seq1, seq2)
	}

	records, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Op != OpPIDCreate || records[0].PIDID != pid {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Op != OpRelationAdd || records[1].RelatedID == nil || *records[1].RelatedID != related {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	if records[1].RelationType != "version" {
		t.Errorf("expected relation type version, got %s", records[1].RelationType)
	}
}

func TestSequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	l := openLog(t, dir)
	l.Append(OpPIDCreate, Record{Actor: "alice", PIDID: uuid.New()})
	l.Append(OpPIDStatus, Record{Actor: "alice", PIDID: uuid.New()})
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openLog(t, dir)
	defer reopened.Close()

	if reopened.CurrentSeq() != 2 {
		t.Errorf("expected recovered seq 2, got %d", reopened.CurrentSeq())
	}

	seq, err := reopened.Append(OpPIDRedirect, Record{Actor: "bob", PIDID: uuid.New()})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if seq != 3 {
		t.Errorf("expected seq 3 after reopen, got %d", seq)
	}
}

func TestStatistics(t *testing.T) {
	l := openLog(t, t.TempDir())
	defer l.Close()

	detail := strings.Repeat("status N->R ", 50)
	l.Append(OpPIDStatus, Record{Actor: "alice", PIDID: uuid.New(), Detail: detail})

	stats := l.Statistics()
	if stats.TotalWrites != 1 {
		t.Errorf("expected 1 write, got %d", stats.TotalWrites)
	}
	if stats.BytesCompressed >= stats.BytesUncompressed {
		t.Errorf("expected compression on repetitive payload: %d >= %d",
			stats.BytesCompressed, stats.BytesUncompressed)
	}
}

func TestExportJSON(t *testing.T) {
	l := openLog(t, t.TempDir())
	defer l.Close()

	pid := uuid.New()
	l.Append(OpPIDCreate, Record{Actor: "alice", PIDID: pid})
	l.Append(OpRelationAdd, Record{Actor: "bob", PIDID: pid, RelationType: "version"})

	var buf bytes.Buffer
	count, err := l.ExportJSON(&buf, &Filter{Ops: []OpType{OpRelationAdd}})
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 exported record, got %d", count)
	}

	var exported []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}
	if exported[0]["op"] != "relation_add" || exported[0]["actor"] != "bob" {
		t.Errorf("unexpected export row: %+v", exported[0])
	}
}

func TestExportCSVTimeWindow(t *testing.T) {
	l := openLog(t, t.TempDir())
	defer l.Close()

	old := time.Now().Add(-48 * time.Hour).Unix()
	l.Append(OpPIDCreate, Record{Actor: "alice", PIDID: uuid.New(), Timestamp: old})
	l.Append(OpPIDCreate, Record{Actor: "bob", PIDID: uuid.New()})

	var buf bytes.Buffer
	count, err := l.ExportCSV(&buf, &Filter{From: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record in window, got %d", count)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 { // header + one row
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "bob") {
		t.Errorf("expected bob's record, got %s", lines[1])
	}
}

func TestCorruptionDetected(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	l.Append(OpPIDCreate, Record{Actor: "alice", PIDID: uuid.New()})
	l.Close()

	// Flip a byte in the compressed payload region
	path := filepath.Join(dir, "audit.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	data[15] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write log file: %v", err)
	}

	if _, err := Open(dir); err == nil {
		t.Error("expected corruption to surface on reopen")
	}
}
