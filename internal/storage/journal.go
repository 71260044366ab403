package storage

import (
	"bufio"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

/*
Responsibilities
- Append-only durability for the visited set and the frontier
- Monotonic per-log sequence numbers, continued across reopen
- Replay: rebuild the visited set first, then reintroduce the frontier

This is a recovery log, not the Markdown sink above: LocalSink persists
finished artifacts, JournalSink persists in-progress crawl state so a crash
mid-run doesn't force a cold restart from the seed URLs.
*/

// VisitedEntry records one URL admitted into the visited set.
type VisitedEntry struct {
	Seq        uint64    `json:"seq"`
	URLKey     string    `json:"url_key"`
	ObservedAt time.Time `json:"observed_at"`
}

// FrontierEntry records one URL submitted to the frontier queue.
type FrontierEntry struct {
	Seq        uint64    `json:"seq"`
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// PersistenceSink durably records crawl state so a run can resume after a
// crash without re-walking from the seed URLs. Optional and pluggable: an
// Engine with no PersistenceSink configured just runs in-memory, as before.
type PersistenceSink interface {
	AppendVisited(key string) error
	AppendFrontier(target url.URL, depth int, source string) error
	ReplayVisited() ([]VisitedEntry, error)
	ReplayFrontier() ([]FrontierEntry, error)
	Close() error
}

// JournalSink implements PersistenceSink as two append-only JSON-lines
// files under dir: visited.log and frontier.log. Each line is one JSON
// object; sequence numbers are assigned in append order and never reused,
// so a partially-written trailing line (a crash mid-append) is detected by
// the replay's JSON decode failing on it and simply stopping there.
type JournalSink struct {
	dir string

	mu           sync.Mutex
	visitedFile  *os.File
	frontierFile *os.File
	visitedSeq   uint64
	frontierSeq  uint64
}

// NewJournalSink opens (creating if necessary) the visited/frontier logs
// under dir.
func NewJournalSink(dir string) (*JournalSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCausePathError, Path: dir}
	}

	visitedFile, err := os.OpenFile(filepath.Join(dir, "visited.log"), os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: dir}
	}
	frontierFile, err := os.OpenFile(filepath.Join(dir, "frontier.log"), os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		visitedFile.Close()
		return nil, &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: dir}
	}

	j := &JournalSink{
		dir:          dir,
		visitedFile:  visitedFile,
		frontierFile: frontierFile,
	}
	if visited, err := j.ReplayVisited(); err == nil && len(visited) > 0 {
		j.visitedSeq = visited[len(visited)-1].Seq
	}
	if frontier, err := j.ReplayFrontier(); err == nil && len(frontier) > 0 {
		j.frontierSeq = frontier[len(frontier)-1].Seq
	}
	return j, nil
}

func (j *JournalSink) AppendVisited(key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.visitedSeq++
	entry := VisitedEntry{Seq: j.visitedSeq, URLKey: key, ObservedAt: time.Now()}
	return appendJSONLine(j.visitedFile, entry)
}

func (j *JournalSink) AppendFrontier(target url.URL, depth int, source string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.frontierSeq++
	entry := FrontierEntry{
		Seq:        j.frontierSeq,
		URL:        target.String(),
		Depth:      depth,
		Source:     source,
		ObservedAt: time.Now(),
	}
	return appendJSONLine(j.frontierFile, entry)
}

func appendJSONLine(f *os.File, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCauseWriteFailure, Path: f.Name()}
	}
	enc = append(enc, '\n')
	if _, err := f.Write(enc); err != nil {
		return &StorageError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailure, Path: f.Name()}
	}
	return nil
}

// ReplayVisited reads every well-formed entry from visited.log in append
// order. A trailing partial line from a crash mid-write is silently
// dropped rather than failing the whole replay.
func (j *JournalSink) ReplayVisited() ([]VisitedEntry, error) {
	var entries []VisitedEntry
	if err := replayJSONLines(j.visitedFile.Name(), func(line []byte) {
		var e VisitedEntry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplayFrontier reads every well-formed entry from frontier.log in append
// order.
func (j *JournalSink) ReplayFrontier() ([]FrontierEntry, error) {
	var entries []FrontierEntry
	if err := replayJSONLines(j.frontierFile.Name(), func(line []byte) {
		var e FrontierEntry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
	}); err != nil {
		return nil, err
	}
	return entries, nil
}

func replayJSONLines(path string, onLine func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return &StorageError{Message: err.Error(), Retryable: false, Cause: ErrCausePathError, Path: path}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		onLine(cp)
	}
	return nil
}

func (j *JournalSink) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	verr := j.visitedFile.Close()
	ferr := j.frontierFile.Close()
	if verr != nil {
		return verr
	}
	return ferr
}
