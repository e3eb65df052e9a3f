package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"strings"
)

// adminLoop reads textual commands from stdin for the lifetime of the
// server. Command feedback is always printed, independent of --verbose,
// since this is the operator's console.
func (s *server) adminLoop(ctx context.Context) {
	log.Println("ADMIN: Commands: start, stop, players, help")

	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(strings.ToLower(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "start":
			if err := s.startGame(); err != nil {
				log.Printf("ADMIN: %v", err)
				continue
			}
			log.Println("ADMIN: Game started")

		case "stop":
			if s.stopGame() {
				log.Println("ADMIN: Stop requested; the current question will finish first")
			} else {
				log.Println("ADMIN: No game is running")
			}

		case "players":
			log.Printf("ADMIN: %d connections, %d players in session (state %s)",
				s.reg.count(), s.session().playerCount(), s.session().stateNow())

		case "help":
			log.Println("ADMIN: start   - begin the round loop")
			log.Println("ADMIN: stop    - end the game at the next question boundary")
			log.Println("ADMIN: players - show connection and roster counts")

		default:
			log.Printf("ADMIN: Unknown command %q (try help)", fields[0])
		}
	}
}
