package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-realtime/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

type target struct {
	to           string
	conversation string
	group        string
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "bearer token (see `wirechat token`)")
	to := flag.String("to", "", "user id to message directly")
	conversation := flag.String("conversation", "", "conversation id for direct messages")
	group := flag.String("group", "", "group id to join and message")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required")
	}
	if *to == "" && *conversation == "" && *group == "" {
		return errors.New("one of -to, -conversation or -group is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	t := target{to: *to, conversation: *conversation, group: *group}
	if t.group != "" {
		if err := send(ctx, conn, proto.TypeJoinGroup, proto.GroupData{GroupID: t.group}); err != nil {
			return err
		}
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. /typing toggles the typing indicator,")
	fmt.Println("/presence <user> asks whether a user is online. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, t)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func decode(out proto.Outbound, v any) bool {
	raw, err := json.Marshal(out.Data)
	if err != nil {
		log.Printf("marshal outbound data: %v", err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Printf("unmarshal %s: %v", out.Event, err)
		return false
	}
	return true
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Printf("! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventReceiveMessage:
			var evt proto.MessageEvent
			if decode(outbound, &evt) && !evt.Echo {
				fmt.Printf("%s: %s\n", evt.Sender, evt.Text)
			}
		case proto.EventReceiveGroupMessage:
			var evt proto.GroupMessageEvent
			if decode(outbound, &evt) {
				fmt.Printf("[%s] %s: %s\n", evt.GroupID, evt.Sender, evt.Text)
			}
		case proto.EventPresenceUpdate:
			var evt proto.PresenceUpdate
			if decode(outbound, &evt) {
				fmt.Printf("* %s is %s\n", evt.UserID, evt.Status)
			}
		case proto.EventTyping:
			var evt proto.TypingEvent
			if decode(outbound, &evt) && evt.IsTyping {
				fmt.Printf("* %s is typing\n", evt.From)
			}
		case proto.EventErrorMessage, proto.EventErrorGroupMessage, proto.EventGroupError:
			var evt proto.ErrorEvent
			if decode(outbound, &evt) {
				fmt.Printf("! %s: %s\n", evt.Code, evt.Message)
			}
		default:
			fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, t target) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	typing := false
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case text == "/typing":
				typing = !typing
				if t.group != "" {
					err = send(ctx, conn, proto.TypeGroupTyping, proto.GroupTypingData{GroupID: t.group, IsTyping: typing})
				} else {
					err = send(ctx, conn, proto.TypeTyping, proto.TypingData{To: t.to, IsTyping: typing})
				}
			case strings.HasPrefix(text, "/presence "):
				err = send(ctx, conn, proto.TypePresenceRequest, proto.PresenceRequestData{
					UserID: strings.TrimSpace(strings.TrimPrefix(text, "/presence ")),
				})
			case t.group != "":
				err = send(ctx, conn, proto.TypeSendGroupMessage, proto.SendGroupMessageData{GroupID: t.group, Text: text})
			default:
				err = send(ctx, conn, proto.TypeSendMessage, proto.SendMessageData{
					To:             t.to,
					ConversationID: t.conversation,
					Text:           text,
				})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
