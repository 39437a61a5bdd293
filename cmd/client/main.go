// Command client is a terminal client for the Cuttle websocket endpoint. With
// -replay it steps through a saved game instead.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/cuttlefree/cuttle-server-go/internal/game"
	"github.com/cuttlefree/cuttle-server-go/internal/game/board"
	"github.com/cuttlefree/cuttle-server-go/internal/game/cards"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/game/targeting"
	"github.com/cuttlefree/cuttle-server-go/internal/server"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	addr      = flag.String("addr", "ws://localhost:8080/ws", "websocket endpoint")
	roomID    = flag.String("room", "", "room to join; empty creates one")
	name      = flag.String("name", "", "player name")
	replay    = flag.String("replay", "", "saved replay to step through instead of playing")
	replayDir = flag.String("replay-dir", "replays", "directory holding saved replays")
	verbose   = flag.Bool("v", false, "log protocol traffic")
)

const help = `commands:
  draw                      draw a card
  select <key>              pick a hand card
  point | scuttle | effect | jack
                            play the selected card that way
  target <key>              aim the selected card at a table card
  counter <key>             counter with a Two from your hand
  allow                     let the pending one-off resolve
  fish <index>              take a card from the discard pile (Three)
  discard <key>             discard a card (Four)
  cancel                    drop the current selection
  restart | view | help | quit`

// session holds what the terminal knows about the game.
type session struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu   sync.Mutex
	seat match.PlayerID
	view *match.View
	aim  *targeting.Aim
}

func main() {
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	if *replay != "" {
		if err := stepReplay(*replayDir, *replay); err != nil {
			fmt.Fprintf(os.Stderr, "replay: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *name == "" {
		fmt.Fprintln(os.Stderr, "-name is required")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *addr, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	s := &session{conn: conn, logger: logger}
	if err := s.send(server.WSMessage{Type: server.MsgJoin, RoomID: *roomID, Name: *name}); err != nil {
		fmt.Fprintf(os.Stderr, "join: %v\n", err)
		os.Exit(1)
	}

	go s.readLoop(cancel)
	go s.inputLoop(cancel)
	<-ctx.Done()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *session) send(msg server.WSMessage) error {
	s.logger.Debug("send", zap.String("type", msg.Type))
	return s.conn.WriteJSON(msg)
}

func (s *session) readLoop(done func()) {
	defer done()
	for {
		var msg server.WSMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Printf("connection closed: %v\n", err)
			}
			return
		}
		s.logger.Debug("recv", zap.String("type", msg.Type))

		switch msg.Type {
		case server.MsgJoined:
			s.mu.Lock()
			s.seat = msg.Seat
			s.aim = targeting.NewAim(msg.Seat)
			s.mu.Unlock()
			fmt.Printf("joined room %s as %s\n", msg.RoomID, msg.Seat)
		case server.MsgView:
			s.mu.Lock()
			s.view = msg.View
			s.mu.Unlock()
			render(msg.View)
		case server.MsgError:
			fmt.Printf("! %s: %s\n", msg.Error.Code, msg.Error.Message)
		}
	}
}

func (s *session) inputLoop(done func()) {
	defer done()
	fmt.Println(help)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			return
		}
		msg, err := s.parse(fields)
		if err != nil {
			fmt.Printf("! %v\n", err)
			continue
		}
		if msg == nil {
			continue
		}
		if err := s.send(*msg); err != nil {
			fmt.Printf("! send: %v\n", err)
			return
		}
	}
}

// parse turns one input line into a message, or nil when the line only changed
// local state.
func (s *session) parse(fields []string) (*server.WSMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aim == nil {
		return nil, fmt.Errorf("not joined yet")
	}
	command := func(cmd *match.Command) *server.WSMessage {
		return &server.WSMessage{Type: server.MsgCommand, Command: cmd}
	}
	arg := func() (string, error) {
		if len(fields) < 2 {
			return "", fmt.Errorf("%s needs an argument", fields[0])
		}
		return fields[1], nil
	}

	switch fields[0] {
	case "help":
		fmt.Println(help)
		return nil, nil
	case "view":
		return &server.WSMessage{Type: server.MsgView}, nil
	case "restart":
		return &server.WSMessage{Type: server.MsgRestart}, nil
	case "cancel":
		s.aim.Cancel()
		return nil, nil
	case "draw":
		return command(&match.Command{Kind: match.MoveDraw}), nil
	case "allow":
		return command(&match.Command{Kind: match.MoveAllow}), nil

	case "counter", "discard":
		key, err := arg()
		if err != nil {
			return nil, err
		}
		kind := match.MoveCounter
		if fields[0] == "discard" {
			kind = match.MoveDiscard
		}
		return command(&match.Command{Kind: kind, Card: board.Key(key)}), nil

	case "fish":
		raw, err := arg()
		if err != nil {
			return nil, err
		}
		index, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("fish needs a discard index")
		}
		return command(&match.Command{Kind: match.MoveFish, Index: index}), nil

	case "select":
		key, err := arg()
		if err != nil {
			return nil, err
		}
		if s.view == nil || s.view.You == nil || s.view.You.Hand == nil {
			return nil, fmt.Errorf("no hand to select from")
		}
		card, ok := s.view.You.Hand.Get(board.Key(key))
		if !ok {
			return nil, fmt.Errorf("%s is not in your hand", key)
		}
		s.aim.SelectCard(board.Key(key), card)
		if _, selected := s.aim.Selected(); selected {
			fmt.Printf("selected %s\n", card)
		}
		return nil, nil

	case "point", "scuttle", "effect", "jack":
		kinds := map[string]match.MoveKind{
			"point":   match.MovePlayPoint,
			"scuttle": match.MoveScuttle,
			"effect":  match.MovePlayEffect,
			"jack":    match.MovePlayJack,
		}
		cmd, err := s.aim.Choose(kinds[fields[0]])
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			req, _ := s.aim.Requirement()
			fmt.Printf("pick a target (%s)\n", req.Type)
			return nil, nil
		}
		return command(cmd), nil

	case "target":
		key, err := arg()
		if err != nil {
			return nil, err
		}
		if s.view == nil {
			return nil, fmt.Errorf("no game state yet")
		}
		cmd, err := s.aim.ClickTable(s.view.Board(), board.Key(key))
		if err != nil {
			return nil, err
		}
		return command(cmd), nil
	}
	return nil, fmt.Errorf("unknown command %q (try help)", fields[0])
}

func render(v *match.View) {
	if v == nil {
		return
	}
	fmt.Printf("\n== room %s | %s | turn %s | deck %d ==\n", v.RoomID, v.Status, v.Turn, v.DeckCount)
	if v.Opponent != nil {
		renderSeat("opponent", v.Opponent)
	}
	if v.You != nil {
		renderSeat("you", v.You)
	}
	if n := len(v.DiscardPile); n > 0 {
		fmt.Printf("discard: %d cards, top %s\n", n, v.DiscardPile[n-1])
	}
	if v.PendingAction != nil {
		fmt.Printf("pending: %s from %s\n", v.PendingAction.Type, v.PendingAction.Source)
	}
	if v.LastAction != "" {
		fmt.Printf("last: %s\n", v.LastAction)
	}
	if v.Winner != "" {
		fmt.Printf("*** %s wins ***\n", v.Winner)
	}
}

func renderSeat(label string, sv *match.SeatView) {
	fmt.Printf("%s %s (%s): %d/%d points, %d wins\n", label, sv.Name, sv.Seat, sv.Score, sv.Goal, sv.Wins)
	if sv.Table != nil {
		sv.Table.Each(func(k board.Key, e board.Entry) bool {
			if e.IsAttachedJack() {
				fmt.Printf("  [%s] %s on %s\n", k, e.Card, e.Stealing)
			} else {
				fmt.Printf("  [%s] %s\n", k, e.Card)
			}
			return true
		})
	}
	if sv.Hand != nil {
		parts := make([]string, 0, sv.Hand.Len())
		sv.Hand.Each(func(k board.Key, c cards.Card) bool {
			parts = append(parts, fmt.Sprintf("%s=%s", k, c))
			return true
		})
		fmt.Printf("  hand: %s\n", strings.Join(parts, " "))
	} else {
		fmt.Printf("  hand: %d cards\n", sv.HandCount)
	}
}

// stepReplay prints a saved game one snapshot per Enter press.
func stepReplay(dir, name string) error {
	r, err := game.LoadReplayFromFile(dir, name)
	if err != nil {
		return err
	}
	fmt.Printf("replay of room %s, %d states; enter to step, b to go back, q to quit\n", r.RoomID, r.Size())

	scanner := bufio.NewScanner(os.Stdin)
	state := r.Next()
	for state != nil {
		fmt.Printf("\n-- #%d %s --\n", state.Sequence, state.Command)
		render(game.ViewOf(state.Room, match.Player1))

		if !scanner.Scan() {
			return nil
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "q":
			return nil
		case "b":
			// the cursor sits one past the state on screen
			r.Skip(-2)
			state = r.Next()
		default:
			state = r.Next()
		}
	}
	fmt.Println("end of replay")
	return nil
}
