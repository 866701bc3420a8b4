// Package audit keeps an append-only, compressed log of every mutation made
// through the service, durable across restarts and exportable for review.
package audit

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

const logFileName = "audit.log"

// OpType categorizes an audited mutation
type OpType byte

const (
	OpPIDCreate OpType = iota + 1
	OpPIDStatus
	OpPIDRedirect
	OpRelationAdd
	OpRelationRemove
	OpRelationReorder
	OpDraftPublish
)

func (t OpType) String() string {
	switch t {
	case OpPIDCreate:
		return "pid_create"
	case OpPIDStatus:
		return "pid_status"
	case OpPIDRedirect:
		return "pid_redirect"
	case OpRelationAdd:
		return "relation_add"
	case OpRelationRemove:
		return "relation_remove"
	case OpRelationReorder:
		return "relation_reorder"
	case OpDraftPublish:
		return "draft_publish"
	default:
		return "unknown"
	}
}

// Record is one audited mutation
type Record struct {
	Seq          uint64     `json:"seq"`
	Op           OpType     `json:"-"`
	Actor        string     `json:"actor"`
	PIDID        uuid.UUID  `json:"pid_id"`
	RelatedID    *uuid.UUID `json:"related_id,omitempty"`
	RelationType string     `json:"relation_type,omitempty"`
	Detail       string     `json:"detail,omitempty"`
	Timestamp    int64      `json:"timestamp"`
}

// Log is an append-only audit log. Each entry is snappy-compressed JSON
// framed as [Seq:8][Op:1][DataLen:4][Data:N][Checksum:4][Timestamp:8]; the
// checksum covers the compressed payload.
type Log struct {
	file       *os.File
	writer     *bufio.Writer
	currentSeq uint64
	dataDir    string
	mu         sync.Mutex

	totalWrites       uint64
	bytesUncompressed uint64
	bytesCompressed   uint64
}

// Open opens (or creates) the audit log in dataDir and recovers the last
// sequence number
func Open(dataDir string) (*Log, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dataDir, logFileName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	l := &Log{
		file:    file,
		writer:  bufio.NewWriter(file),
		dataDir: dataDir,
	}

	if err := l.recoverSeq(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to recover audit sequence: %w", err)
	}
	return l, nil
}

// Append records a mutation and returns its sequence number
func (l *Log) Append(op OpType, record Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentSeq++
	record.Seq = l.currentSeq
	record.Op = op
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("failed to encode audit record: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	l.totalWrites++
	l.bytesUncompressed += uint64(len(data))
	l.bytesCompressed += uint64(len(compressed))

	if err := l.writeFrame(record.Seq, op, compressed, record.Timestamp); err != nil {
		return 0, err
	}
	return record.Seq, nil
}

func (l *Log) writeFrame(seq uint64, op OpType, compressed []byte, timestamp int64) error {
	if err := binary.Write(l.writer, binary.BigEndian, seq); err != nil {
		return err
	}
	if err := l.writer.WriteByte(byte(op)); err != nil {
		return err
	}
	if err := binary.Write(l.writer, binary.BigEndian, uint32(len(compressed))); err != nil {
		return err
	}
	if _, err := l.writer.Write(compressed); err != nil {
		return err
	}
	if err := binary.Write(l.writer, binary.BigEndian, crc32.ChecksumIEEE(compressed)); err != nil {
		return err
	}
	if err := binary.Write(l.writer, binary.BigEndian, timestamp); err != nil {
		return err
	}
	return l.writer.Flush()
}

// ReadAll replays the full log
func (l *Log) ReadAll() ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readAllLocked()
}

func (l *Log) readAllLocked() ([]*Record, error) {
	file, err := os.Open(filepath.Join(l.dataDir, logFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	records := make([]*Record, 0)

	for {
		var seq uint64
		if err := binary.Read(reader, binary.BigEndian, &seq); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		opByte, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}

		var dataLen uint32
		if err := binary.Read(reader, binary.BigEndian, &dataLen); err != nil {
			return nil, err
		}

		compressed := make([]byte, dataLen)
		if _, err := io.ReadFull(reader, compressed); err != nil {
			return nil, err
		}

		var checksum uint32
		if err := binary.Read(reader, binary.BigEndian, &checksum); err != nil {
			return nil, err
		}
		if crc32.ChecksumIEEE(compressed) != checksum {
			return nil, fmt.Errorf("checksum mismatch for audit record %d", seq)
		}

		var timestamp int64
		if err := binary.Read(reader, binary.BigEndian, &timestamp); err != nil {
			return nil, err
		}

		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress audit record %d: %w", seq, err)
		}

		record := &Record{}
		if err := json.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("failed to decode audit record %d: %w", seq, err)
		}
		record.Seq = seq
		record.Op = OpType(opByte)
		record.Timestamp = timestamp

		records = append(records, record)
	}

	return records, nil
}

// Flush forces buffered records to disk
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Close flushes and closes the log
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// CurrentSeq returns the sequence number of the last appended record
func (l *Log) CurrentSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentSeq
}

func (l *Log) recoverSeq() error {
	records, err := l.readAllLocked()
	if err != nil {
		return err
	}
	if len(records) > 0 {
		l.currentSeq = records[len(records)-1].Seq
	}
	return nil
}

// Stats holds compression statistics
type Stats struct {
	TotalWrites       uint64  `json:"total_writes"`
	BytesUncompressed uint64  `json:"bytes_uncompressed"`
	BytesCompressed   uint64  `json:"bytes_compressed"`
	CompressionRatio  float64 `json:"compression_ratio"`
}

// Statistics returns compression statistics
func (l *Log) Statistics() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	ratio := 0.0
	if l.bytesUncompressed > 0 {
		ratio = 1.0 - (float64(l.bytesCompressed) / float64(l.bytesUncompressed))
	}

	return Stats{
		TotalWrites:       l.totalWrites,
		BytesUncompressed: l.bytesUncompressed,
		BytesCompressed:   l.bytesCompressed,
		CompressionRatio:  ratio,
	}
}
