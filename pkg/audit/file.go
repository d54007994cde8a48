package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ztnc/ztnc/pkg/util"
)

// backupStamp is the UTC rotation time embedded in backup names, e.g.
// audit-20261019T101500.123456789.log for audit.log.
const backupStamp = "20060102T150405.000000000"

const maxLineSize = 1 << 20

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    int64 // bytes; a write that would pass it rotates first
	MaxBackups int   // rotated files kept, 0 keeps all
}

// FileLogger appends events as JSON lines and rotates the file into
// timestamped backups. Queries read the backups and the live file as one
// log.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// segment is one file of the log. closed is zero for the live file.
type segment struct {
	path   string
	closed time.Time
}

// NewFileLogger opens path for appending, creating it and its directory.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file, l.size = file, info.Size()
	return nil
}

// Log appends event as one line.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if l.rotation.MaxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns the events matching filter, oldest first, across the
// backups and the live file. Backups closed before filter.StartTime are
// not read.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	segments, err := l.backups()
	if err != nil {
		return nil, err
	}
	segments = append(segments, segment{path: l.path})

	needles := filter.needles()
	events := []*Event{}
	for _, seg := range segments {
		if !seg.closed.IsZero() && !filter.StartTime.IsZero() && seg.closed.Before(filter.StartTime) {
			continue
		}
		found, err := scan(seg.path, needles, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}
	return filter.page(events), nil
}

// Close closes the live file. Later writes fail with os.ErrClosed.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// needles are the encoded key/value pairs every matching line contains,
// so lines for other networks, members or users skip the decode.
func (f Filter) needles() [][]byte {
	var out [][]byte
	for _, kv := range [][2]string{{"user", f.User}, {"network", f.Network}, {"member", f.Member}} {
		if kv[1] == "" {
			continue
		}
		value, _ := json.Marshal(kv[1])
		out = append(out, append([]byte(`"`+kv[0]+`":`), value...))
	}
	return out
}

func scan(path string, needles [][]byte, filter Filter) ([]*Event, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
lines:
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		for _, needle := range needles {
			if !bytes.Contains(line, needle) {
				continue lines
			}
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", filepath.Base(path), lineNum, err)
			continue
		}
		if filter.matches(&event) {
			events = append(events, &event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return events, nil
}

// backupName returns the backup path for a rotation at t.
func (l *FileLogger) backupName(t time.Time) string {
	ext := filepath.Ext(l.path)
	return strings.TrimSuffix(l.path, ext) + "-" + t.UTC().Format(backupStamp) + ext
}

// backups lists the rotated files of this log, oldest first. Files that
// share the prefix without a valid stamp are not part of the log.
func (l *FileLogger) backups() ([]segment, error) {
	dir := filepath.Dir(l.path)
	ext := filepath.Ext(l.path)
	prefix := strings.TrimSuffix(filepath.Base(l.path), ext) + "-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing audit backups: %w", err)
	}
	var out []segment
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		closed, err := time.Parse(backupStamp, stamp)
		if err != nil {
			continue
		}
		out = append(out, segment{path: filepath.Join(dir, name), closed: closed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].closed.Before(out[j].closed) })
	return out, nil
}

// rotate moves the live file to a backup and reopens an empty one.
// Callers hold l.mu.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	now := time.Now()
	name := l.backupName(now)
	for {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			break
		}
		now = now.Add(time.Nanosecond)
		name = l.backupName(now)
	}
	if err := os.Rename(l.path, name); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}
	l.prune()
	return nil
}

func (l *FileLogger) prune() {
	if l.rotation.MaxBackups <= 0 {
		return
	}
	segments, err := l.backups()
	if err != nil || len(segments) <= l.rotation.MaxBackups {
		return
	}
	for _, seg := range segments[:len(segments)-l.rotation.MaxBackups] {
		if err := os.Remove(seg.path); err != nil {
			util.Warnf("audit: removing old backup %s: %v", seg.path, err)
		}
	}
}
