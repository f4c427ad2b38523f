// Package transcript keeps the recent final transcripts in memory for
// the status surface and appends them to a log file for later greps.
package transcript

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// Entry is one finalized session transcript.
type Entry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Store holds a bounded ring of entries and optionally mirrors them to
// Paths.TranscriptPath.
type Store struct {
	logger *logrus.Logger
	path   string
	size   int

	mu   sync.Mutex
	ring []Entry
}

func NewStore(cfg *config.Config, logger *logrus.Logger) *Store {
	size := cfg.Transcripts.RingSize
	if size <= 0 {
		size = 32
	}
	path := ""
	if cfg.Transcripts.Enabled {
		path = cfg.Paths.TranscriptPath
	}
	return &Store{logger: logger, path: path, size: size}
}

// Add records a finalized transcript. Empty transcripts are ignored.
func (s *Store) Add(text string) {
	if text == "" {
		return
	}
	e := Entry{Time: time.Now(), Text: text}

	s.mu.Lock()
	s.ring = append(s.ring, e)
	if len(s.ring) > s.size {
		s.ring = s.ring[len(s.ring)-s.size:]
	}
	s.mu.Unlock()

	if s.path == "" {
		return
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		s.logger.Warnf("transcript log: %v", err)
		return
	}
	defer f.Close()
	line := fmt.Sprintf("%s\t%s\n", e.Time.UTC().Format(time.RFC3339), e.Text)
	if _, err := f.WriteString(line); err != nil {
		s.logger.Warnf("transcript log: %v", err)
	}
}

// Recent returns up to n entries, oldest first.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.ring) {
		n = len(s.ring)
	}
	out := make([]Entry, n)
	copy(out, s.ring[len(s.ring)-n:])
	return out
}

// Len reports how many entries the ring holds.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring)
}
