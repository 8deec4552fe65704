package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/wfunc/guessduel/network"
)

// CLI joins a room over WebSocket and plays from stdin.
type CLI struct {
	Addr  string `help:"Server host:port." default:"localhost:8080"`
	Room  uint   `help:"Room to connect to." required:""`
	Token string `help:"Bearer token issued by the auth service." required:"" env:"GUESS_TOKEN"`
	Start bool   `help:"Send JOIN_GAME right after connecting." default:"true" negatable:""`
}

func send(c *websocket.Conn, msg network.Inbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

func describe(msg *network.Outbound) string {
	switch msg.Type {
	case network.MsgError:
		return fmt.Sprintf("error %s: %s", msg.Code, msg.Error)
	case network.MsgTurnUpdate, network.MsgGameEnd:
		if msg.Guess == nil || msg.Game == nil {
			break
		}
		line := fmt.Sprintf("%s guessed %d -> %s", msg.Guess.PlayerEmail, msg.Guess.GuessNumber, msg.Guess.Feedback)
		if msg.Game.WinnerEmail != nil {
			return line + fmt.Sprintf(", %s wins", *msg.Game.WinnerEmail)
		}
		return line + fmt.Sprintf(", %s to play", msg.Game.CurrentTurnEmail)
	case network.MsgGameStart, network.MsgGameState:
		if msg.Game == nil {
			break
		}
		return fmt.Sprintf("game %d %s, stake %s, %s to play",
			msg.Game.ID, msg.Game.Status, msg.Game.BetAmount.StringFixed(2), msg.Game.CurrentTurnEmail)
	case network.MsgRoomUpdate:
		if msg.Room == nil {
			break
		}
		return fmt.Sprintf("room %d %s, %d/2 players", msg.Room.ID, msg.Room.Status, msg.Room.PlayersCount)
	}
	if msg.Message != "" {
		return msg.Message
	}
	return ""
}

func render(msg *network.Outbound) {
	line := describe(msg)
	switch msg.Type {
	case network.MsgError:
		pterm.Error.Println(line)
	case network.MsgGameEnd:
		pterm.DefaultBox.WithTitle(pterm.LightGreen("|GAME OVER|")).WithTitleTopCenter().Println(line)
	case network.MsgGameStart:
		pterm.Success.Println(line)
	default:
		pterm.Info.Printfln("%s %s", pterm.LightCyan(string(msg.Type)), line)
	}
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("guessduel-client"),
		kong.Description("Play a guessing duel from the terminal. Type a number 1-100 or 'join'."),
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     cli.Addr,
		Path:     fmt.Sprintf("/ws/game/%d", cli.Room),
		RawQuery: url.Values{"token": {cli.Token}}.Encode(),
	}
	log.Printf("Connecting to %s://%s%s", u.Scheme, u.Host, u.Path)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					log.Printf("Connection closed: %d %s", ce.Code, ce.Text)
				} else {
					log.Println("Read error:", err)
				}
				return
			}
			var msg network.Outbound
			if err := json.Unmarshal(data, &msg); err != nil {
				pterm.Warning.Printfln("undecodable frame: %s", data)
				continue
			}
			render(&msg)
		}
	}()

	if cli.Start {
		if err := send(c, network.Inbound{Type: network.MsgJoinGame}); err != nil {
			log.Println("Write error:", err)
			return
		}
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			if text == "" {
				continue
			}
			if text == "join" {
				if err := send(c, network.Inbound{Type: network.MsgJoinGame}); err != nil {
					log.Println("Write error:", err)
					return
				}
				continue
			}
			n, err := strconv.Atoi(strings.TrimPrefix(text, "guess "))
			if err != nil {
				log.Printf("Not a number: %q", text)
				continue
			}
			if err := send(c, network.Inbound{Type: network.MsgMakeGuess, GuessNumber: &n}); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: guess %d", n)
		}
	}
}
