package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type highscoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// highscoreStore appends final scores to a JSON file. Failures are
// reported to the caller but are never fatal to the game-over broadcast.
type highscoreStore struct {
	mu   sync.Mutex
	path string
}

func newHighscoreStore(path string) *highscoreStore {
	return &highscoreStore{path: path}
}

func (s *highscoreStore) saveScore(name string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []highscoreEntry

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse highscores %s: %w", s.path, err)
		}
	case os.IsNotExist(err):
		// first score ever written
	default:
		return fmt.Errorf("read highscores: %w", err)
	}

	entries = append(entries, highscoreEntry{Name: name, Score: score})

	out, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode highscores: %w", err)
	}

	if err := os.WriteFile(s.path, out, 0o644); err != nil {
		return fmt.Errorf("write highscores: %w", err)
	}

	return nil
}
