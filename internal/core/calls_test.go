package core

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testOffer     = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	testAnswer    = json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	testCandidate = json.RawMessage(`{"candidate":"candidate:1 1 udp 1 127.0.0.1 9 typ host"}`)
)

func callCmd(kind CommandKind, to UserID, modality Modality, payload json.RawMessage) *Command {
	return &Command{Kind: kind, To: to, Modality: modality, Payload: payload}
}

func TestCallAnswerAndEnd(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	incoming := mustEvent(t, bob.Events, EventIncomingCall)
	require.Equal(t, UserID("alice"), incoming.From)
	require.JSONEq(t, string(testOffer), string(incoming.Call.Payload))
	require.NotEmpty(t, incoming.Call.CallID)
	require.True(t, hub.Calls().Busy("alice"))
	require.True(t, hub.Calls().Busy("bob"))

	handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVoice, testAnswer))
	answered := mustEvent(t, alice.Events, EventCallAnswered)
	require.Equal(t, UserID("bob"), answered.From)
	require.Equal(t, incoming.Call.CallID, answered.Call.CallID)
	require.Nil(t, answered.Call.Media)

	rec, ok := hub.Calls().Snapshot("alice")
	require.True(t, ok)
	require.Equal(t, CallConnected, rec.Status)

	handle(hub, alice, callCmd(CommandIceCandidate, "bob", ModalityVoice, testCandidate))
	ice := mustEvent(t, bob.Events, EventIceCandidate)
	require.JSONEq(t, string(testCandidate), string(ice.Call.Payload))

	// Either party may hang up.
	handle(hub, bob, callCmd(CommandEndCall, "alice", ModalityVoice, nil))
	ended := mustEvent(t, alice.Events, EventCallEnded)
	require.Equal(t, UserID("bob"), ended.From)
	require.Empty(t, ended.Call.Reason)
	require.Zero(t, hub.Calls().Len())
	noEvent(t, bob.Events, EventCallEnded)
}

func TestCallDecline(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVideo, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)

	handle(hub, bob, callCmd(CommandDeclineCall, "alice", ModalityVideo, nil))
	ev := mustEvent(t, alice.Events, EventCallDeclined)
	require.Equal(t, ModalityVideo, ev.Call.Modality)
	require.Zero(t, hub.Calls().Len())
}

func TestCallToBusyUser(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")
	carol := connect(t, hub, "carol")

	// bob is mid-call with carol.
	handle(hub, carol, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)
	handle(hub, bob, callCmd(CommandAnswerCall, "carol", ModalityVoice, testAnswer))
	mustEvent(t, carol.Events, EventCallAnswered)

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	ev := mustEvent(t, alice.Events, EventCallError)
	require.Equal(t, ErrCodeUserBusy, ev.Error.Code)
	require.Equal(t, "User is busy", ev.Error.Message)

	require.Equal(t, 1, hub.Calls().Len())
	require.False(t, hub.Calls().Busy("alice"))
	noEvent(t, bob.Events, EventIncomingCall)

	// The pool is shared: a video call to bob is refused as well.
	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVideo, testOffer))
	ev = mustEvent(t, alice.Events, EventCallError)
	require.Equal(t, ErrCodeUserBusy, ev.Error.Code)
	require.Equal(t, ModalityVideo, ev.Call.Modality)
}

func TestCallPreconditions(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")
	connect(t, hub, "carol")

	handle(hub, alice, callCmd(CommandCallUser, "alice", ModalityVoice, testOffer))
	require.Equal(t, ErrCodeBadRequest, mustEvent(t, alice.Events, EventCallError).Error.Code)

	handle(hub, alice, callCmd(CommandCallUser, "dave", ModalityVoice, testOffer))
	require.Equal(t, ErrCodeUserOffline, mustEvent(t, alice.Events, EventCallError).Error.Code)

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)

	handle(hub, alice, callCmd(CommandCallUser, "carol", ModalityVideo, testOffer))
	ev := mustEvent(t, alice.Events, EventCallError)
	require.Equal(t, ErrCodeAlreadyInCall, ev.Error.Code)
	require.Equal(t, "You are already in a call", ev.Error.Message)

	// The target of a ringing call cannot start another one either.
	handle(hub, bob, callCmd(CommandCallUser, "carol", ModalityVoice, testOffer))
	require.Equal(t, ErrCodeAlreadyInCall, mustEvent(t, bob.Events, EventCallError).Error.Code)

	require.Equal(t, 1, hub.Calls().Len())
}

func TestMismatchedCallCommandsAreNoOps(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")
	carol := connect(t, hub, "carol")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)
	drain(alice.Events)
	drain(carol.Events)

	cmds := []struct {
		from *Client
		cmd  *Command
	}{
		// carol is not the target.
		{carol, callCmd(CommandAnswerCall, "alice", ModalityVoice, testAnswer)},
		{carol, callCmd(CommandDeclineCall, "alice", ModalityVoice, nil)},
		{carol, callCmd(CommandEndCall, "alice", ModalityVoice, nil)},
		{carol, callCmd(CommandIceCandidate, "alice", ModalityVoice, testCandidate)},
		// wrong modality.
		{bob, callCmd(CommandAnswerCall, "alice", ModalityVideo, testAnswer)},
		{bob, callCmd(CommandDeclineCall, "alice", ModalityVideo, nil)},
		{alice, callCmd(CommandEndCall, "bob", ModalityVideo, nil)},
		// caller cannot answer its own call.
		{alice, callCmd(CommandAnswerCall, "bob", ModalityVoice, testAnswer)},
		// toggles exist for video only.
		{alice, &Command{Kind: CommandToggleMute, To: "bob", Modality: ModalityVoice, Flag: true}},
		// nothing links bob and carol.
		{bob, callCmd(CommandEndCall, "carol", ModalityVoice, nil)},
	}
	for _, tc := range cmds {
		handle(hub, tc.from, tc.cmd)
	}

	for _, c := range []*Client{alice, bob, carol} {
		for _, ev := range pending(c.Events) {
			require.Equal(t, EventPresenceUpdate, ev.Kind, "client %s got %v", c.User, ev.Kind)
		}
	}

	rec, ok := hub.Calls().Snapshot("alice")
	require.True(t, ok)
	require.Equal(t, CallCalling, rec.Status)
	require.Equal(t, UserID("bob"), rec.Target)
}

func TestVideoToggles(t *testing.T) {
	hub := newTestHub(t, nil)
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVideo, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)
	handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVideo, testAnswer))
	mustEvent(t, alice.Events, EventCallAnswered)

	handle(hub, alice, &Command{Kind: CommandToggleMute, To: "bob", Modality: ModalityVideo, Flag: true})
	ev := mustEvent(t, bob.Events, EventMuteToggled)
	require.True(t, ev.Flag)
	require.Equal(t, UserID("alice"), ev.From)

	handle(hub, bob, &Command{Kind: CommandToggleCamera, To: "alice", Modality: ModalityVideo, Flag: true})
	ev = mustEvent(t, alice.Events, EventCameraToggled)
	require.True(t, ev.Flag)
}

func TestConcurrentInitiateSameTarget(t *testing.T) {
	for range 50 {
		hub := newTestHub(t, nil)
		alice := connect(t, hub, "alice")
		bob := connect(t, hub, "bob")
		carol := connect(t, hub, "carol")

		var wg sync.WaitGroup
		for _, c := range []*Client{alice, bob} {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				handle(hub, c, callCmd(CommandCallUser, "carol", ModalityVoice, testOffer))
			}(c)
		}
		wg.Wait()

		require.Equal(t, 1, hub.Calls().Len())
		require.Len(t, collect(carol.Events, EventIncomingCall), 1)

		errs := append(collect(alice.Events, EventCallError), collect(bob.Events, EventCallError)...)
		require.Len(t, errs, 1)
		require.Equal(t, ErrCodeUserBusy, errs[0].Error.Code)
	}
}

func TestDisconnectEndsCall(t *testing.T) {
	media := &fakeMedia{}
	hub := NewHub(Options{Media: media})
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVideo, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)
	handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVideo, testAnswer))

	answered := mustEvent(t, alice.Events, EventCallAnswered)
	require.NotNil(t, answered.Call.Media)
	require.Equal(t, "token-alice", answered.Call.Media.Token)
	media2 := mustEvent(t, bob.Events, EventCallMedia)
	require.Equal(t, "token-bob", media2.Call.Media.Token)

	hub.Disconnect(alice)

	ended := collect(bob.Events, EventCallEnded)
	require.Len(t, ended, 1)
	require.Equal(t, ReasonDisconnect, ended[0].Call.Reason)
	require.Equal(t, ModalityVideo, ended[0].Call.Modality)
	require.Zero(t, hub.Calls().Len())
	require.Equal(t, []string{answered.Call.CallID}, media.endedCalls())

	// bob is free again.
	carol := connect(t, hub, "carol")
	handle(hub, carol, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)
}

func TestDisconnectDuringAnswerSkipsMedia(t *testing.T) {
	media := &fakeMedia{}
	hub := NewHub(Options{Media: media})
	alice := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVideo, testOffer))
	incoming := mustEvent(t, bob.Events, EventIncomingCall)

	// The caller drops while the media room is being prepared.
	media.beforeJoinInfo = func() { hub.Disconnect(alice) }
	handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVideo, testAnswer))

	var kinds []EventKind
	for _, ev := range pending(bob.Events) {
		kinds = append(kinds, ev.Kind)
	}
	require.Contains(t, kinds, EventCallEnded)
	require.NotContains(t, kinds, EventCallMedia, "no media credentials after the call ended")
	require.Zero(t, hub.Calls().Len())
	require.Contains(t, media.endedCalls(), incoming.Call.CallID)
}

func TestDisconnectKeepsCallWhileOtherDeviceLive(t *testing.T) {
	hub := newTestHub(t, nil)
	alice1 := connect(t, hub, "alice")
	alice2 := connect(t, hub, "alice")
	bob := connect(t, hub, "bob")

	handle(hub, alice1, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
	mustEvent(t, bob.Events, EventIncomingCall)

	hub.Disconnect(alice1)
	noEvent(t, bob.Events, EventCallEnded)
	require.Equal(t, 1, hub.Calls().Len())

	// The answer reaches the remaining device.
	handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVoice, testAnswer))
	mustEvent(t, alice2.Events, EventCallAnswered)
}

func TestSimultaneousDisconnectNotifiesOnce(t *testing.T) {
	for range 50 {
		hub := newTestHub(t, nil)
		alice := connect(t, hub, "alice")
		bob := connect(t, hub, "bob")

		handle(hub, alice, callCmd(CommandCallUser, "bob", ModalityVoice, testOffer))
		handle(hub, bob, callCmd(CommandAnswerCall, "alice", ModalityVoice, testAnswer))
		require.Equal(t, 1, hub.Calls().Len())

		var wg sync.WaitGroup
		for _, c := range []*Client{alice, bob} {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				hub.Disconnect(c)
			}(c)
		}
		wg.Wait()

		// Both channels are closed now; count what each received before closing.
		total := len(collect(alice.Events, EventCallEnded)) + len(collect(bob.Events, EventCallEnded))
		require.Equal(t, 1, total)
		require.Zero(t, hub.Calls().Len())
	}
}
