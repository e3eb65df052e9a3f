// Quizbox wire protocol
//
// Clients speak JSON records over a persistent stream connection, one
// record per message. On raw TCP a message is one newline-terminated line;
// on WebSocket a message is one text frame. Every record carries a "type"
// discriminator:
//
//	LOGIN     client -> server   name
//	LOGIN_OK  server -> client   message
//	INFO      server -> clients  message
//	QUESTION  server -> clients  question, options, question_number,
//	                             total_questions, time_limit
//	ANSWER    client -> server   answer (option key, normalized server-side)
//	RESULT    server -> client   correct_answer, score, correct
//	GAME_OVER server -> clients  message, leaderboard
//	ERROR     server -> client   message
//
// Malformed records are never fatal to a connection: the server logs them
// and keeps reading.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	typeLogin    = "LOGIN"
	typeLoginOK  = "LOGIN_OK"
	typeInfo     = "INFO"
	typeQuestion = "QUESTION"
	typeAnswer   = "ANSWER"
	typeResult   = "RESULT"
	typeGameOver = "GAME_OVER"
	typeError    = "ERROR"
)

var errMissingType = errors.New("record has no type field")

// clientRecord covers everything a client may send.
type clientRecord struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`   // LOGIN
	Answer string `json:"answer,omitempty"` // ANSWER
}

type loginOKMessage struct {
	Type    string `json:"type"` // "LOGIN_OK"
	Message string `json:"message"`
}

type infoMessage struct {
	Type    string `json:"type"` // "INFO"
	Message string `json:"message"`
}

type questionMessage struct {
	Type           string   `json:"type"` // "QUESTION"
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	QuestionNumber int      `json:"question_number"` // 1-based
	TotalQuestions int      `json:"total_questions"`
	TimeLimit      int      `json:"time_limit"` // seconds
}

type resultMessage struct {
	Type          string `json:"type"` // "RESULT"
	CorrectAnswer string `json:"correct_answer"`
	Score         int    `json:"score"` // running total
	Correct       bool   `json:"correct"`
}

type standing struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type gameOverMessage struct {
	Type        string     `json:"type"` // "GAME_OVER"
	Message     string     `json:"message"`
	Leaderboard []standing `json:"leaderboard"`
}

type errorMessage struct {
	Type    string `json:"type"` // "ERROR"
	Message string `json:"message"`
}

// encodeRecord serializes one record to a JSON document without framing;
// the transport adds its own delimiter.
func encodeRecord(record any) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (clientRecord, error) {
	var record clientRecord

	if err := json.Unmarshal(data, &record); err != nil {
		return clientRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if record.Type == "" {
		return clientRecord{}, errMissingType
	}

	return record, nil
}

// normalizeKey makes answer comparison case- and whitespace-insensitive,
// so "b" and " B " both match a stored key of "B".
func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
