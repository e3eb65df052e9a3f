package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Question is immutable once loaded. The answer key is a short option
// code ("A"-"D") and is never sent to clients inside a QUESTION record.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
	Time    int      `json:"time,omitempty"` // per-question override, seconds
}

type questionBank struct {
	questions    []Question
	defaultLimit int
}

// loadQuestionBank reads an ordered question list from a JSON file. A
// missing or corrupt file yields an empty bank and an error; the server
// keeps running with the empty bank, and start refuses to begin a game.
func loadQuestionBank(path string, defaultLimit int) (*questionBank, error) {
	bank := &questionBank{defaultLimit: defaultLimit}

	data, err := os.ReadFile(path)
	if err != nil {
		return bank, fmt.Errorf("read question bank: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return bank, fmt.Errorf("parse question bank %s: %w", path, err)
	}

	bank.questions = questions

	return bank, nil
}

func (b *questionBank) count() int {
	return len(b.questions)
}

func (b *questionBank) question(i int) Question {
	return b.questions[i]
}

func (b *questionBank) timeLimit(q Question) int {
	if q.Time > 0 {
		return q.Time
	}
	return b.defaultLimit
}
