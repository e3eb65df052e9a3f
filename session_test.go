package main

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testBank(questions int) *questionBank {
	bank := &questionBank{defaultLimit: 15}
	for i := 0; i < questions; i++ {
		bank.questions = append(bank.questions, Question{
			ID:      i,
			Text:    fmt.Sprintf("Question %d", i+1),
			Options: []string{"A. first", "B. second", "C. third", "D. fourth"},
			Answer:  "B",
		})
	}
	return bank
}

// expectSignal asserts on the early-completion channel without hanging.
func expectSignal(t *testing.T, ch <-chan struct{}, want bool) {
	t.Helper()
	select {
	case <-ch:
		if !want {
			t.Fatal("unexpected early-completion signal")
		}
	case <-time.After(100 * time.Millisecond):
		if want {
			t.Fatal("timed out waiting for early-completion signal")
		}
	}
}

func TestStartPreconditions(t *testing.T) {
	s := newSession(testBank(3))

	err := s.start()
	require.Error(t, err)
	require.NotEmpty(t, err.Error())
	require.Equal(t, stateWaiting, s.stateNow(), "failed start must leave state WAITING")

	empty := newSession(testBank(0))
	empty.addPlayer("p1", "Alice")
	require.Error(t, empty.start())
	require.Equal(t, stateWaiting, empty.stateNow())
}

func TestCorrectAnswerScoresTenPoints(t *testing.T) {
	s := newSession(testBank(2))
	s.addPlayer("p1", "Alice")

	require.NoError(t, s.start())

	_, over := s.advance()
	require.False(t, over)

	delta, correct, err := s.submit("p1", "B")
	require.NoError(t, err)
	require.True(t, correct)
	require.Equal(t, pointsPerCorrect, delta)

	require.Equal(t, []standing{{Name: "Alice", Score: 10}}, s.leaderboard())
}

func TestSubmitScoresAtMostOncePerQuestion(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	require.NoError(t, s.start())

	_, over := s.advance()
	require.False(t, over)

	// Keys are matched case- and whitespace-insensitively.
	delta, correct, err := s.submit("p1", " b ")
	require.NoError(t, err)
	require.True(t, correct)
	require.Equal(t, 10, delta)

	delta, correct, err = s.submit("p1", "A")
	require.ErrorIs(t, err, errAlreadyAnswered)
	require.False(t, correct)
	require.Zero(t, delta)

	require.Equal(t, []standing{{Name: "Alice", Score: 10}}, s.leaderboard(),
		"duplicate submission must not change the score")
}

func TestSubmitIsNoopOutsidePlaying(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")

	delta, correct, err := s.submit("p1", "B")
	require.NoError(t, err)
	require.False(t, correct)
	require.Zero(t, delta)

	require.NoError(t, s.start())
	_, _ = s.advance()

	// Unknown players are a no-op too.
	delta, correct, err = s.submit("ghost", "B")
	require.NoError(t, err)
	require.False(t, correct)
	require.Zero(t, delta)
}

func TestWrongAnswerNeverSubtracts(t *testing.T) {
	s := newSession(testBank(2))
	s.addPlayer("p1", "Alice")
	require.NoError(t, s.start())

	_, _ = s.advance()
	delta, correct, err := s.submit("p1", "B")
	require.NoError(t, err)
	require.True(t, correct)
	require.Equal(t, 10, delta)

	_, _ = s.advance()
	delta, correct, err = s.submit("p1", "D")
	require.NoError(t, err)
	require.False(t, correct)
	require.Zero(t, delta)

	require.Equal(t, []standing{{Name: "Alice", Score: 10}}, s.leaderboard())
}

func TestAdvanceWalksEveryQuestionExactlyOnce(t *testing.T) {
	const total = 3

	s := newSession(testBank(total))
	s.addPlayer("p1", "Alice")
	require.NoError(t, s.start())

	for i := 1; i <= total; i++ {
		payload, over := s.advance()
		require.False(t, over)
		require.Equal(t, i, payload.QuestionNumber)
		require.Equal(t, total, payload.TotalQuestions)
		require.Equal(t, 15, payload.TimeLimit)
		require.Equal(t, statePlaying, s.stateNow())
	}

	_, over := s.advance()
	require.True(t, over)
	require.Equal(t, stateEnd, s.stateNow())

	// Advancing an ended session stays over.
	_, over = s.advance()
	require.True(t, over)
}

func TestLeaderboardOrdering(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	s.addPlayer("p2", "Bob")
	s.addPlayer("p3", "Carol")
	require.NoError(t, s.start())

	_, _ = s.advance()
	_, _, err := s.submit("p2", "B")
	require.NoError(t, err)

	// Bob leads; Alice and Carol tie at zero and keep join order.
	require.Equal(t, []standing{
		{Name: "Bob", Score: 10},
		{Name: "Alice", Score: 0},
		{Name: "Carol", Score: 0},
	}, s.leaderboard())
}

func TestEarlyCompletionSignal(t *testing.T) {
	s := newSession(testBank(2))
	s.addPlayer("p1", "Alice")
	s.addPlayer("p2", "Bob")
	require.NoError(t, s.start())

	_, _ = s.advance()

	_, _, err := s.submit("p1", "B")
	require.NoError(t, err)
	expectSignal(t, s.completionSignal(), false)

	_, _, err = s.submit("p2", "A")
	require.NoError(t, err)
	expectSignal(t, s.completionSignal(), true)

	// A new round starts with a clean answered set and a drained signal.
	_, over := s.advance()
	require.False(t, over)
	expectSignal(t, s.completionSignal(), false)
}

func TestRemovingLaggardCompletesRound(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	s.addPlayer("p2", "Bob")
	require.NoError(t, s.start())

	_, _ = s.advance()
	_, _, err := s.submit("p1", "B")
	require.NoError(t, err)

	s.removePlayer("p2")
	expectSignal(t, s.completionSignal(), true)
}

func TestLateJoinerStartsAtZero(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	require.NoError(t, s.start())

	_, _ = s.advance()
	s.addPlayer("p2", "Bob")

	delta, correct, err := s.submit("p2", "B")
	require.NoError(t, err)
	require.True(t, correct)
	require.Equal(t, 10, delta)

	require.Equal(t, []standing{
		{Name: "Bob", Score: 10},
		{Name: "Alice", Score: 0},
	}, s.leaderboard())
}

func TestRoundResultsRecordPerPlayerCorrectness(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	s.addPlayer("p2", "Bob")
	s.addPlayer("p3", "Carol")
	require.NoError(t, s.start())

	_, _ = s.advance()
	_, _, _ = s.submit("p1", "B")
	_, _, _ = s.submit("p2", "A")
	// Carol never answers.

	key, results := s.roundResults()
	require.Equal(t, "B", key)
	require.Len(t, results, 3)

	byID := make(map[string]playerResult, len(results))
	for _, r := range results {
		byID[r.playerID] = r
	}

	require.True(t, byID["p1"].correct)
	require.Equal(t, 10, byID["p1"].score)
	require.False(t, byID["p2"].correct)
	require.Zero(t, byID["p2"].score)
	require.False(t, byID["p3"].correct)
	require.Zero(t, byID["p3"].score)
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	s := newSession(testBank(1))
	s.addPlayer("p1", "Alice")
	s.addPlayer("p2", "Bob")
	require.NoError(t, s.start())

	_, _ = s.advance()

	const attempts = 32

	var wg sync.WaitGroup
	var mu sync.Mutex
	scored := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delta, _, err := s.submit("p1", "B")
			if err == nil && delta > 0 {
				mu.Lock()
				scored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, scored, "exactly one racing submission may score")
	require.Equal(t, []standing{
		{Name: "Alice", Score: 10},
		{Name: "Bob", Score: 0},
	}, s.leaderboard())
}
