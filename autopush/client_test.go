package autopush

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Hello(t *testing.T) {
	s, c := newFakeServer(t)

	res, err := c.Hello(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "uaid-1", res.UAID)
	assert.Equal(t, StatusOK, res.Status)

	sent := s.Sent()
	require.Len(t, sent, 1)
	hello, ok := sent[0].(HelloRequest)
	require.True(t, ok)
	assert.Equal(t, []string{}, hello.ChannelIDs)
	assert.True(t, hello.UseWebPush)

	data, err := json.Marshal(hello)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageType":"hello","uaid":"","channelIDs":[],"use_webpush":true}`, string(data))
}

func TestClient_RegisterUnregister(t *testing.T) {
	_, c := newFakeServer(t)
	ctx := context.Background()

	reg, err := c.Register(ctx, "chan-1", "")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", reg.ChannelID)
	assert.Equal(t, "https://updates.push.services.mozilla.com/wpush/v2/tok-chan-1", reg.PushEndpoint)

	unreg, err := c.Unregister(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, unreg.Status)
}

func TestClient_Timeout(t *testing.T) {
	s, c := newFakeServer(t)
	s.silent = true

	_, err := c.Register(context.Background(), "chan-1", "")
	assert.EqualError(t, err, "autopush: register timeout")
}

func TestClient_ContextCanceled(t *testing.T) {
	s, c := newFakeServer(t)
	s.silent = true
	c.timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Hello(ctx, "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_SendFailure(t *testing.T) {
	_, c := newFakeServer(t)
	c.send = func(any) error { return errors.New("broken pipe") }

	_, err := c.Unregister(context.Background(), "chan-1")
	assert.ErrorContains(t, err, "broken pipe")
}

func TestClient_Closed(t *testing.T) {
	s, c := newFakeServer(t)
	s.silent = true
	c.timeout = time.Minute
	c.close()

	_, err := c.Hello(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_Dispatch(t *testing.T) {
	t.Run("ping is answered", func(t *testing.T) {
		s, c := newFakeServer(t)
		c.dispatch([]byte(`{"messageType":"ping"}`))

		sent := s.Sent()
		require.Len(t, sent, 1)
		data, err := json.Marshal(sent[0])
		require.NoError(t, err)
		assert.Equal(t, `{}`, string(data))
	})

	t.Run("notification is acked and delivered", func(t *testing.T) {
		s, c := newFakeServer(t)
		c.dispatch([]byte(`{"messageType":"notification","channelID":"chan-1","version":"v1","data":""}`))

		assert.Equal(t, []any{Ack{
			Type:    MessageAck,
			Updates: []AckUpdate{{ChannelID: "chan-1", Version: "v1"}},
		}}, s.Sent())

		select {
		case n := <-c.Notifications():
			assert.Equal(t, "chan-1", n.ChannelID)
			assert.Equal(t, "v1", n.Version)
		default:
			t.Fatal("notification was not delivered")
		}
	})

	t.Run("unsolicited responses do not block", func(t *testing.T) {
		_, c := newFakeServer(t)
		c.dispatch([]byte(`{"messageType":"register","channelID":"a","status":200}`))
		c.dispatch([]byte(`{"messageType":"register","channelID":"b","status":200}`))

		res := <-c.registerChan
		assert.Equal(t, "a", res.ChannelID)
	})

	t.Run("garbage is ignored", func(t *testing.T) {
		s, c := newFakeServer(t)
		c.dispatch([]byte(`not json`))
		c.dispatch([]byte(`{"messageType":"broadcast"}`))
		c.dispatch([]byte(`{"messageType":"hello","status":"nope"}`))

		assert.Empty(t, s.Sent())
		assert.Len(t, c.helloChan, 0)
	})
}

func TestClient_LateResponseAfterTimeout(t *testing.T) {
	s, c := newFakeServer(t)
	ctx := context.Background()

	s.silent = true
	_, err := c.Register(ctx, "chan-a", "")
	require.Error(t, err)

	// the first answer turns up after its request gave up
	s.respond(RegisterResponse{Type: MessageRegister, ChannelID: "chan-a", Status: StatusOK, PushEndpoint: "https://push.example/tok-a"})

	s.silent = false
	res, err := c.Register(ctx, "chan-b", "")
	require.NoError(t, err)
	assert.Equal(t, "chan-b", res.ChannelID)
	assert.Equal(t, "https://updates.push.services.mozilla.com/wpush/v2/tok-chan-b", res.PushEndpoint)
}

func TestClient_MismatchedResponseIgnored(t *testing.T) {
	s, c := newFakeServer(t)

	c.send = func(payload any) error {
		if p, ok := payload.(UnregisterRequest); ok {
			s.respond(UnregisterResponse{Type: MessageUnregister, ChannelID: "other", Status: StatusOK})
			go func() {
				for len(c.unregisterChan) > 0 {
					time.Sleep(time.Millisecond)
				}
				s.respond(UnregisterResponse{Type: MessageUnregister, ChannelID: p.ChannelID, Status: StatusOK})
			}()
		}
		return nil
	}
	c.timeout = time.Second

	res, err := c.Unregister(context.Background(), "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", res.ChannelID)
}

func TestClient_NotificationBufferFull(t *testing.T) {
	s, c := newFakeServer(t)

	for i := 0; i < notificationBuffer+1; i++ {
		c.dispatch(notification(t, "chan-1", strconv.Itoa(i), ""))
	}

	assert.Len(t, c.Notifications(), notificationBuffer)
	acks := s.Sent()
	require.Len(t, acks, notificationBuffer)
	last, ok := acks[len(acks)-1].(Ack)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(notificationBuffer-1), last.Updates[0].Version)
}
