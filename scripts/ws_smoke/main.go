package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-realtime/internal/proto"
)

const smokeSDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func main() {
	if err := run(); err != nil {
		log.Fatalf("ws_smoke: %v", err)
	}
	fmt.Println("ok")
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	callerToken := flag.String("caller-token", "", "bearer token of the caller")
	calleeToken := flag.String("callee-token", "", "bearer token of the callee")
	caller := flag.String("caller", "", "caller user id")
	callee := flag.String("callee", "", "callee user id")
	video := flag.Bool("video", false, "place a video call instead of a voice call")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *callerToken == "" || *calleeToken == "" || *caller == "" || *callee == "" {
		return errors.New("-caller, -callee, -caller-token and -callee-token are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := dial(ctx, *addr, *callerToken)
	if err != nil {
		return fmt.Errorf("dial caller: %w", err)
	}
	defer a.Close(websocket.StatusNormalClosure, "bye")

	b, err := dial(ctx, *addr, *calleeToken)
	if err != nil {
		return fmt.Errorf("dial callee: %w", err)
	}
	defer b.Close(websocket.StatusNormalClosure, "bye")

	callType, answerType, endType := proto.TypeCallUser, proto.TypeAnswerCall, proto.TypeEndCall
	incoming, answered, ended := proto.EventIncomingCall, proto.EventCallAnswered, proto.EventCallEnded
	if *video {
		callType, answerType, endType = proto.TypeVideoCallUser, proto.TypeAnswerVideoCall, proto.TypeEndVideoCall
		incoming, answered, ended = proto.EventIncomingVideo, proto.EventVideoAnswered, proto.EventVideoEnded
	}

	offer, _ := json.Marshal(map[string]string{"type": "offer", "sdp": smokeSDP})
	if err := send(ctx, a, callType, proto.CallUserData{To: *callee, Offer: offer}); err != nil {
		return err
	}
	if err := await(ctx, b, incoming); err != nil {
		return err
	}

	answer, _ := json.Marshal(map[string]string{"type": "answer", "sdp": smokeSDP})
	if err := send(ctx, b, answerType, proto.AnswerCallData{To: *caller, Answer: answer}); err != nil {
		return err
	}
	if err := await(ctx, a, answered); err != nil {
		return err
	}

	if err := send(ctx, a, endType, proto.CallPeerData{To: *callee}); err != nil {
		return err
	}
	return await(ctx, b, ended)
}

func dial(ctx context.Context, addr, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	return conn, err
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	fmt.Printf("-> %s\n", typ)
	return nil
}

// await reads until event arrives. Error envelopes and *_error events fail the run.
func await(ctx context.Context, conn *websocket.Conn, event string) error {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("waiting for %s: %w", event, err)
		}
		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}
		switch outbound.Event {
		case event:
			fmt.Printf("<- %s\n", event)
			return nil
		case proto.EventCallError, proto.EventVideoError:
			return fmt.Errorf("%s: %v", outbound.Event, outbound.Data)
		}
	}
}
