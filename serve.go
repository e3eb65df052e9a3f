package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// server ties the coordinator together: the registry and dispatcher are
// fixed for the process lifetime, while the session (and its game runner)
// is swapped for a fresh one whenever a new game starts after END.
type server struct {
	cfg      *Config
	bank     *questionBank
	scores   *highscoreStore
	reg      *registry
	dispatch *dispatcher

	mu   sync.Mutex
	sess *session
	game *game
}

func newServer(cfg *Config, bank *questionBank, scores *highscoreStore) *server {
	s := &server{
		cfg:    cfg,
		bank:   bank,
		scores: scores,
		reg:    newRegistry(),
		sess:   newSession(bank),
	}

	s.dispatch = newDispatcher(s.reg)

	s.reg.onRemove = func(c *client, name string) {
		s.session().removePlayer(c.id)
		s.dispatch.broadcast(infoMessage{
			Type:    typeInfo,
			Message: fmt.Sprintf("%s left the room.", name),
		}, nil)
		logf(s.cfg, "PLAYER: %q (%s) left", name, c.remote)
	}

	return s
}

func (s *server) session() *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sess
}

// startGame begins the round loop. Starting is refused while a game is
// running or when the session preconditions fail; after an ended game it
// constructs a fresh session seeded with the logged-in roster.
func (s *server) startGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game != nil && !s.game.finished() {
		return errors.New("a game is already running")
	}

	if s.sess.stateNow() == stateEnd {
		fresh := newSession(s.bank)
		for _, p := range s.reg.attached() {
			fresh.addPlayer(p.id, p.name)
		}
		s.sess = fresh
	}

	if err := s.sess.start(); err != nil {
		return err
	}

	s.game = newGame(s.cfg, s.sess, s.dispatch, s.reg, s.scores)
	go s.game.run()

	return nil
}

// stopGame requests a cooperative stop. Reports whether a game was
// running to stop.
func (s *server) stopGame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game == nil || s.game.finished() {
		return false
	}

	s.game.requestStop()

	return true
}

// handleConn is the per-connection reader, shared by both transports. It
// blocks until the peer disconnects; undecodable records are logged and
// skipped, never fatal.
func (s *server) handleConn(conn recordConn, remote string) {
	c := newClient(conn, remote)
	s.reg.register(c)
	go c.writePump()

	logf(s.cfg, "CONN: New connection from %s", remote)

	defer func() {
		s.reg.remove(c)
		_ = conn.close()
		logf(s.cfg, "CONN: Closed connection from %s", remote)
	}()

	for {
		data, err := conn.readRecord()
		if err != nil {
			return
		}

		record, err := decodeRecord(data)
		if err != nil {
			logf(s.cfg, "CONN: Ignoring undecodable record from %s: %v", remote, err)
			continue
		}

		s.handleRecord(c, record)
	}
}

func (s *server) handleRecord(c *client, record clientRecord) {
	switch record.Type {
	case typeLogin:
		s.handleLogin(c, record)

	case typeAnswer:
		s.handleAnswer(c, record)

	default:
		logf(s.cfg, "CONN: Unknown record type %q from %s", record.Type, c.remote)
	}
}

func (s *server) handleLogin(c *client, record clientRecord) {
	name := strings.TrimSpace(record.Name)

	if err := s.reg.attach(c, name); err != nil {
		s.dispatch.unicast(c, errorMessage{Type: typeError, Message: err.Error()})
		return
	}

	s.session().addPlayer(c.id, name)

	logf(s.cfg, "PLAYER: %q (%s) joined", name, c.remote)

	s.dispatch.unicast(c, loginOKMessage{
		Type:    typeLoginOK,
		Message: fmt.Sprintf("Welcome, %s!", name),
	})
	s.dispatch.broadcast(infoMessage{
		Type:    typeInfo,
		Message: fmt.Sprintf("%s joined the room.", name),
	}, c)
}

func (s *server) handleAnswer(c *client, record clientRecord) {
	name := s.reg.name(c)
	if name == "" {
		s.dispatch.unicast(c, errorMessage{Type: typeError, Message: "log in before answering"})
		return
	}

	delta, correct, err := s.session().submit(c.id, record.Answer)
	if errors.Is(err, errAlreadyAnswered) {
		s.dispatch.unicast(c, errorMessage{Type: typeError, Message: "you have already answered this question"})
		return
	}

	logf(s.cfg, "ANSWER: %q answered %q (correct=%t, +%d)", name, record.Answer, correct, delta)
}

// Serve runs the trivia server until ctx is cancelled. The TCP listener
// failing to bind is the only fatal startup condition.
func Serve(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: quizbox v%s", releaseVersion)

	bank, err := loadQuestionBank(cfg.questions, cfg.answerTime)
	if err != nil {
		log.Printf("WARN: %v (starting with an empty question bank)", err)
	} else {
		logf(cfg, "START: Loaded %d questions from %s", bank.count(), cfg.questions)
	}

	srv := newServer(cfg, bank, newHighscoreStore(cfg.highscores))

	tcpAddr := net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.tcpPort))
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", tcpAddr, err)
	}

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, srv),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go srv.adminLoop(ctx)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return srv.serveTCP(ln)
	})

	eg.Go(func() error {
		logf(cfg, "SERVE: Listening on %s://%s/", cfg.scheme(), httpSrv.Addr)

		var err error
		if cfg.tlsCert != "" && cfg.tlsKey != "" {
			err = httpSrv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()

		srv.stopGame()
		_ = ln.Close()
		srv.reg.closeAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)

		return nil
	})

	return eg.Wait()
}
