package main

import (
	"errors"
	"sort"
	"sync"
)

const pointsPerCorrect = 10

var errAlreadyAnswered = errors.New("answer already recorded for this question")

type sessionState int

const (
	stateWaiting sessionState = iota
	statePlaying
	stateEnd
)

func (s sessionState) String() string {
	switch s {
	case stateWaiting:
		return "WAITING"
	case statePlaying:
		return "PLAYING"
	case stateEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

type player struct {
	id     string
	name   string
	score  int
	joined int // insertion order, breaks leaderboard ties
}

// session owns the shared game state: the player roster, the score map,
// the current question, and the per-question answered set. Every mutation
// happens under one mutex, so answer submissions from concurrent
// connection readers are serialized and the early-completion check always
// sees a consistent answered-set size.
//
// Lifecycle is strictly WAITING -> PLAYING -> END. A new game gets a new
// session; an ended session never transitions backwards.
type session struct {
	mu sync.Mutex

	state   sessionState
	bank    *questionBank
	players map[string]*player
	joinSeq int

	current      *Question
	currentIndex int             // next question to dispatch, 0-based
	answered     map[string]bool // playerID -> submission was correct

	allAnswered chan struct{}
}

func newSession(bank *questionBank) *session {
	return &session{
		state:       stateWaiting,
		bank:        bank,
		players:     make(map[string]*player),
		answered:    make(map[string]bool),
		allAnswered: make(chan struct{}, 1),
	}
}

// addPlayer registers a player. Late joiners during PLAYING are allowed
// and start at zero points.
func (s *session) addPlayer(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; ok {
		return
	}

	s.joinSeq++
	s.players[id] = &player{id: id, name: name, joined: s.joinSeq}
}

// removePlayer drops a player from the roster and from the current
// answered set. If the departure leaves every remaining player having
// answered, the early-completion signal fires so the round loop does not
// wait out the clock for someone who is gone.
func (s *session) removePlayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; !ok {
		return
	}

	delete(s.players, id)
	delete(s.answered, id)

	if s.state == statePlaying && s.current != nil && len(s.players) > 0 && len(s.answered) >= len(s.players) {
		s.signalAllAnsweredLocked()
	}
}

func (s *session) playerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.players)
}

func (s *session) stateNow() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// start transitions WAITING -> PLAYING. It fails with a descriptive
// reason when there is nobody to play or nothing to ask; the caller must
// not enter the round loop on failure.
func (s *session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateWaiting {
		return errors.New("cannot start: game is " + s.state.String())
	}
	if len(s.players) < 1 {
		return errors.New("cannot start: need at least one player")
	}
	if s.bank.count() < 1 {
		return errors.New("cannot start: question bank is empty")
	}

	for _, p := range s.players {
		p.score = 0
	}

	s.currentIndex = 0
	s.state = statePlaying

	return nil
}

// advance loads the next question and returns its client-safe payload,
// or reports that the game is over. The payload never includes the
// answer key.
func (s *session) advance() (questionMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != statePlaying {
		return questionMessage{}, true
	}

	if s.currentIndex >= s.bank.count() {
		s.current = nil
		s.state = stateEnd
		return questionMessage{}, true
	}

	s.answered = make(map[string]bool)

	// Drain any completion signal left over from the previous round.
	select {
	case <-s.allAnswered:
	default:
	}

	q := s.bank.question(s.currentIndex)
	s.current = &q
	s.currentIndex++

	return questionMessage{
		Type:           typeQuestion,
		Question:       q.Text,
		Options:        q.Options,
		QuestionNumber: s.currentIndex,
		TotalQuestions: s.bank.count(),
		TimeLimit:      s.bank.timeLimit(q),
	}, false
}

// finish forces PLAYING -> END, used when an admin stop ends the round
// loop before the bank runs dry.
func (s *session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == statePlaying {
		s.current = nil
		s.state = stateEnd
	}
}

// submit records a player's answer for the current question. The first
// submission per player per question is authoritative: repeats return
// errAlreadyAnswered and change nothing. Outside PLAYING, or for unknown
// players, submit is a zero no-op.
func (s *session) submit(playerID, choice string) (delta int, correct bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != statePlaying || s.current == nil {
		return 0, false, nil
	}

	p, ok := s.players[playerID]
	if !ok {
		return 0, false, nil
	}

	if _, dup := s.answered[playerID]; dup {
		return 0, false, errAlreadyAnswered
	}

	correct = normalizeKey(choice) == normalizeKey(s.current.Answer)
	s.answered[playerID] = correct

	if correct {
		delta = pointsPerCorrect
		p.score += delta
	}

	if len(s.answered) >= len(s.players) {
		s.signalAllAnsweredLocked()
	}

	return delta, correct, nil
}

func (s *session) signalAllAnsweredLocked() {
	select {
	case s.allAnswered <- struct{}{}:
	default:
	}
}

// completionSignal fires when every current player has answered the
// current question, letting the round loop cancel the countdown early.
func (s *session) completionSignal() <-chan struct{} {
	return s.allAnswered
}

type playerResult struct {
	playerID string
	score    int
	correct  bool
}

// roundResults returns the correct-answer key of the current question and
// each player's running total plus whether their own submission matched.
// Players who never answered count as incorrect.
func (s *session) roundResults() (correctAnswer string, results []playerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", nil
	}

	correctAnswer = normalizeKey(s.current.Answer)

	results = make([]playerResult, 0, len(s.players))
	for _, p := range s.players {
		results = append(results, playerResult{
			playerID: p.id,
			score:    p.score,
			correct:  s.answered[p.id],
		})
	}

	return correctAnswer, results
}

// leaderboard sorts players by descending score; equal scores keep join
// order, so the ranking is deterministic.
func (s *session) leaderboard() []standing {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranked := make([]*player, 0, len(s.players))
	for _, p := range s.players {
		ranked = append(ranked, p)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].joined < ranked[j].joined
	})

	standings := make([]standing, 0, len(ranked))
	for _, p := range ranked {
		standings = append(standings, standing{Name: p.name, Score: p.score})
	}

	return standings
}
