package network

import (
	"errors"
	"testing"
)

func TestEnetConnQueuesUntilClosed(t *testing.T) {
	s := NewEnetServer(0, 8, newRecordingHandler(), nil)
	c := &enetConn{server: s, remoteAddr: "127.0.0.1:1"}

	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := c.Send([]byte("b")); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}

	first := <-s.outbound
	if string(first.data) != "a" || first.disconnect {
		t.Fatalf("unexpected first command %+v", first)
	}
	second := <-s.outbound
	if !second.disconnect {
		t.Fatalf("close did not queue a disconnect")
	}
	select {
	case extra := <-s.outbound:
		t.Fatalf("unexpected extra command %+v", extra)
	default:
	}
}

func TestEnetSendAfterStopFails(t *testing.T) {
	s := NewEnetServer(0, 8, newRecordingHandler(), nil)
	c := &enetConn{server: s}

	for i := 0; i < enetOutboundSize; i++ {
		if err := c.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	s.stopOnce.Do(func() { close(s.done) })

	if err := c.Send([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("send to a stopped server: %v", err)
	}
}
