// Command client is a small interactive client for poking a running server.
//
//	go run ./client -addr localhost:3000 -name Alice
//
// Commands: create, join <roomId>, start, stop, caret <caretIdx> <wordIdx>,
// finish, round, leave.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/network"
)

// send encodes an event and writes it to the server.
func send(c *websocket.Conn, event string, payload interface{}) error {
	frame, err := network.Encode(event, payload)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

func main() {
	addr := flag.String("addr", "localhost:3000", "server address")
	name := flag.String("name", "Player", "player name")
	origin := flag.String("origin", "http://localhost:5173", "Origin header")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	header := map[string][]string{"Origin": {*origin}}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})
	roomIDs := make(chan string, 1)

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid frame: %v", err)
				continue
			}
			log.Printf("<- %s %s", packet.Event, string(packet.Data))

			if packet.Event == network.EventRoomCreated || packet.Event == network.EventRoomJoined {
				var snap models.RoomSnapshot
				if json.Unmarshal(packet.Data, &snap) == nil {
					select {
					case roomIDs <- snap.RoomID:
					default:
					}
				}
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	var roomID string
	for {
		select {
		case <-done:
			return
		case id := <-roomIDs:
			roomID = id
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
		case line := <-lines:
			event, payload := command(line, roomID, *name)
			if event == "" {
				log.Printf("unknown command %q", line)
				continue
			}
			if err := send(c, event, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> %s", event)
		}
	}
}

// command turns a typed line into an outbound event.
func command(line, roomID, name string) (string, interface{}) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	room := map[string]interface{}{"roomId": roomID}

	switch fields[0] {
	case "create":
		return network.EventCreateRoom, map[string]string{"playerName": name}
	case "join":
		if len(fields) < 2 {
			return "", nil
		}
		return network.EventJoinRoom, map[string]string{"roomId": fields[1], "playerName": name}
	case "leave":
		return network.EventLeaveRoom, room
	case "start":
		return network.EventStartGame, room
	case "stop":
		return network.EventStopGame, room
	case "caret":
		if len(fields) < 3 {
			return "", nil
		}
		caretIdx, _ := strconv.Atoi(fields[1])
		wordIdx, _ := strconv.Atoi(fields[2])
		room["caretIdx"] = caretIdx
		room["wordIdx"] = wordIdx
		return network.EventUpdateCaret, room
	case "finish":
		room["stats"] = models.PlayerStats{Wpm: 60, RawWpm: 62, Accuracy: 98, Correct: 50}
		return network.EventPlayerFinished, room
	case "round":
		room["results"] = models.RoundResult{PlayerStats: models.PlayerStats{Wpm: 60, Accuracy: 98}}
		return network.EventPlayerFinishRound, room
	}
	return "", nil
}
