package refs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// ConsentLog is the append-only JSONL audit trail of consent decisions.
// Entries are written once and never rewritten.
type ConsentLog struct {
	path string
}

func NewConsentLog(path string) *ConsentLog {
	return &ConsentLog{path: path}
}

func (l *ConsentLog) Append(record models.ConsentRecord) error {
	if err := util.EnsureDir(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("create consent log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open consent log: %w", err)
	}
	defer f.Close()
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode consent record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append consent record: %w", err)
	}
	return nil
}

// History returns up to limit records in log order. Malformed lines are
// skipped so one bad write can never make the whole audit trail unreadable.
func (l *ConsentLog) History(limit int) ([]models.ConsentRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open consent log: %w", err)
	}
	defer f.Close()

	var records []models.ConsentRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record models.ConsentRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read consent log: %w", err)
	}
	return records, nil
}
