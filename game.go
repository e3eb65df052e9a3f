package main

import (
	"sync/atomic"
	"time"
)

// game drives one session through the round loop: dispatch a question,
// run the countdown, collect answers, send per-player results, settle,
// repeat. It runs in its own goroutine; admin stop requests are honored
// at iteration boundaries, never mid-question.
type game struct {
	cfg      *Config
	sess     *session
	dispatch *dispatcher
	reg      *registry
	scores   *highscoreStore

	timer         countdown
	stopRequested atomic.Bool
	done          chan struct{}
}

func newGame(cfg *Config, sess *session, dispatch *dispatcher, reg *registry, scores *highscoreStore) *game {
	return &game{
		cfg:      cfg,
		sess:     sess,
		dispatch: dispatch,
		reg:      reg,
		scores:   scores,
		done:     make(chan struct{}),
	}
}

// requestStop asks the round loop to exit before its next question. It
// never aborts a question already in flight.
func (g *game) requestStop() {
	g.stopRequested.Store(true)
}

func (g *game) finished() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

func (g *game) run() {
	defer close(g.done)

	stopped := false

	for {
		if g.stopRequested.Load() {
			logf(g.cfg, "GAME: Stop requested, ending game early")
			g.sess.finish()
			stopped = true
			break
		}

		question, over := g.sess.advance()
		if over {
			break
		}

		logf(g.cfg, "GAME: Question %d/%d (%ds window)",
			question.QuestionNumber, question.TotalQuestions, question.TimeLimit)

		g.dispatch.broadcast(question, nil)

		g.playRound(question.TimeLimit)
		g.sendResults()

		time.Sleep(g.cfg.settleTime)
	}

	g.finishGame(stopped)
}

// playRound waits out the answer window. The round ends on natural
// expiry or as soon as every current player has answered, whichever
// comes first.
func (g *game) playRound(limit int) {
	expired := make(chan struct{}, 1)

	g.timer.start(limit, func() {
		expired <- struct{}{}
	})

	select {
	case <-expired:
		logf(g.cfg, "GAME: Time's up")
	case <-g.sess.completionSignal():
		logf(g.cfg, "GAME: All players answered with %ds remaining", g.timer.remainingSeconds())
	}

	g.timer.stop()
}

// sendResults unicasts each player their running total, the correct
// answer key, and whether their own submission matched it.
func (g *game) sendResults() {
	correctAnswer, results := g.sess.roundResults()

	for _, r := range results {
		c := g.reg.byID(r.playerID)
		if c == nil {
			continue
		}

		g.dispatch.unicast(c, resultMessage{
			Type:          typeResult,
			CorrectAnswer: correctAnswer,
			Score:         r.score,
			Correct:       r.correct,
		})
	}
}

func (g *game) finishGame(stopped bool) {
	leaderboard := g.sess.leaderboard()

	for _, s := range leaderboard {
		if err := g.scores.saveScore(s.Name, s.Score); err != nil {
			logf(g.cfg, "GAME: Failed to persist score for %q: %v", s.Name, err)
		}
	}

	message := "Game over! Thanks for playing."
	if stopped {
		message = "Game stopped by the admin."
	}

	g.dispatch.broadcast(gameOverMessage{
		Type:        typeGameOver,
		Message:     message,
		Leaderboard: leaderboard,
	}, nil)

	logf(g.cfg, "GAME: Finished with %d players on the leaderboard", len(leaderboard))
}
