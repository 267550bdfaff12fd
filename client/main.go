package main

import (
	"bufio"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/wordchain/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	packet, err := network.Marshal(msgID, v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	host := flag.String("host", "localhost:8080", "gateway address")
	serverID := flag.String("server", "local", "chat server id")
	channelID := flag.String("channel", "game", "game channel id")
	userID := flag.String("user", "cli", "member id")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

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
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			if packet.MsgID == network.MsgTypeHeartbeat {
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	if err := send(c, network.MsgTypeSubscribe, network.Subscribe{ServerIDs: []string{*serverID}}); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Printf("Playing on %s as %s. Type a word, '/user <id>' to switch members or '/check <word>'.", *serverID, *userID)

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- strings.TrimSpace(reader.Text())
		}
	}()

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()

	member := *userID
	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
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
			if id, ok := strings.CutPrefix(text, "/user "); ok {
				member = strings.TrimSpace(id)
				log.Printf("Now playing as %s", member)
				continue
			}
			if word, ok := strings.CutPrefix(text, "/check "); ok {
				err = send(c, network.MsgTypeCheckWord, network.CheckWord{
					ServerID:      *serverID,
					Text:          word,
					CorrelationID: uuid.New().String(),
				})
			} else {
				err = send(c, network.MsgTypeSubmitWord, network.SubmitWord{
					ServerID:      *serverID,
					ChannelID:     *channelID,
					UserID:        member,
					Text:          text,
					CorrelationID: uuid.New().String(),
				})
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
