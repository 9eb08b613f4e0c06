package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type OperationType string

const (
	OpSearch  OperationType = "search"
	OpResolve OperationType = "resolve"
	OpFetch   OperationType = "fetch"
	OpSkip    OperationType = "skip"
	OpJoin    OperationType = "join"
	OpRefresh OperationType = "refresh"
)

type OperationLog struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      OperationType `json:"type"`
	Subject   string        `json:"subject"`
	Detail    string        `json:"detail,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

type SessionMetadata struct {
	CommandArgs   []string  `json:"command_args"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	TotalOps      int       `json:"total_operations"`
	SuccessfulOps int       `json:"successful_operations"`
	FailedOps     int       `json:"failed_operations"`
}

type LogSession struct {
	Metadata   SessionMetadata `json:"metadata"`
	Operations []OperationLog  `json:"operations"`
}

// Journal writes one JSON file per run into a directory.
type Journal struct {
	dir     string
	enabled bool
}

// NewJournal returns a journal rooted at dir. A disabled journal hands out
// sessions that record nothing.
func NewJournal(dir string, enabled bool) *Journal {
	return &Journal{dir: dir, enabled: enabled && dir != ""}
}

// DefaultDir returns ~/.show-score/logs.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".show-score", "logs"), nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// Session collects operations for a single run. All methods are safe on a
// nil receiver and for concurrent use.
type Session struct {
	mu      sync.Mutex
	journal *Journal
	data    LogSession
}

// Start opens a new session.
func (j *Journal) Start(command string, args []string) *Session {
	if j == nil || !j.enabled {
		return nil
	}
	return &Session{
		journal: j,
		data: LogSession{
			Metadata: SessionMetadata{
				CommandArgs: append([]string{command}, args...),
				Timestamp:   time.Now(),
				SessionID:   uuid.NewString(),
			},
			Operations: []OperationLog{},
		},
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.data.Metadata.SessionID
}

// Record appends an operation. A non-nil err marks it failed.
func (s *Session) Record(opType OperationType, subject, detail string, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	op := OperationLog{
		ID:        fmt.Sprintf("%s_%d", s.data.Metadata.SessionID, len(s.data.Operations)),
		Timestamp: time.Now(),
		Type:      opType,
		Subject:   subject,
		Detail:    detail,
		Success:   err == nil,
	}
	if err != nil {
		op.Error = err.Error()
	}
	s.data.Operations = append(s.data.Operations, op)
}

// Snapshot returns a copy of the session with current stats.
func (s *Session) Snapshot() LogSession {
	if s == nil {
		return LogSession{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStatsLocked()

	out := s.data
	out.Operations = append([]OperationLog(nil), s.data.Operations...)
	return out
}

// End writes the session to disk and returns the file path.
func (s *Session) End() (string, error) {
	if s == nil {
		return "", nil
	}
	snapshot := s.Snapshot()
	return s.journal.write(&snapshot)
}

func (s *Session) updateStatsLocked() {
	successful := 0
	for _, op := range s.data.Operations {
		if op.Success {
			successful++
		}
	}
	s.data.Metadata.TotalOps = len(s.data.Operations)
	s.data.Metadata.SuccessfulOps = successful
	s.data.Metadata.FailedOps = len(s.data.Operations) - successful
}

func (j *Journal) write(session *LogSession) (string, error) {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := session.Metadata.Timestamp
	filename := fmt.Sprintf("%s.%03d_%s.json",
		ts.Format("2006-01-02_150405"),
		ts.Nanosecond()/1000000,
		shortID(session.Metadata.SessionID))
	path := filepath.Join(j.dir, filename)

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ReadSession loads a journal file.
func ReadSession(path string) (*LogSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var session LogSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ReadSessions returns up to limit sessions, newest first. Corrupted files
// are skipped.
func (j *Journal) ReadSessions(limit int) ([]*LogSession, error) {
	if j == nil || j.dir == "" {
		return []*LogSession{}, nil
	}
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return []*LogSession{}, nil
	}

	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	sessions := make([]*LogSession, 0, len(files))
	for _, file := range files {
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Cleanup removes journal files older than retentionDays and returns how
// many were removed. Zero or negative retention keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if j == nil || j.dir == "" || retentionDays <= 0 {
		return 0, nil
	}
	if _, err := os.Stat(j.dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(j.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list log files: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
