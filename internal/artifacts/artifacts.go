// Package artifacts resolves case-scoped input files. Artifacts are
// uploaded ahead of time by an external collaborator under a
// case-id-keyed directory; this package only reads them by naming
// convention and never receives raw bytes through the API.
package artifacts

import (
	"os"
	"path/filepath"
	"sync"
)

// Image filename candidates, checked in order.
var imageCandidates = []string{"xray.jpg", "xray.jpeg", "xray.png", "image_current.jpg"}

const audioName = "audio.wav"

// Store reads artifacts for a case and serializes runs per case id, so
// two concurrent re-analyses of the same case never race on the same
// directory.
type Store struct {
	runsDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(runsDir string) *Store {
	return &Store{
		runsDir: runsDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CaseDir returns the directory holding a case's artifacts.
func (s *Store) CaseDir(caseID string) string {
	return filepath.Join(s.runsDir, caseID)
}

// ImagePath returns the path of the case's X-ray image, or false when no
// candidate file exists.
func (s *Store) ImagePath(caseID string) (string, bool) {
	dir := s.CaseDir(caseID)
	for _, name := range imageCandidates {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

// AudioPath returns the path of the case's lung-sound recording, or
// false when it is absent.
func (s *Store) AudioPath(caseID string) (string, bool) {
	p := filepath.Join(s.CaseDir(caseID), audioName)
	if fileExists(p) {
		return p, true
	}
	return "", false
}

// Lock acquires the per-case run lock and returns the release func.
// Runs for different case ids proceed independently.
func (s *Store) Lock(caseID string) func() {
	s.mu.Lock()
	l, ok := s.locks[caseID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[caseID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
