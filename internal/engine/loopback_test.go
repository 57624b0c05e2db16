package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callkeeper/callkeeper/internal/settings"
)

type recordingInbound struct {
	performed []Performed
	audioUp   int
	audioDown int
	resets    int
}

func (r *recordingInbound) EnginePerformed(p Performed) { r.performed = append(r.performed, p) }
func (r *recordingInbound) AudioSessionActivated()      { r.audioUp++ }
func (r *recordingInbound) AudioSessionDeactivated()    { r.audioDown++ }
func (r *recordingInbound) ProviderReset()              { r.resets++ }

func waitAck(t *testing.T, ack <-chan error) error {
	t.Helper()
	select {
	case err := <-ack:
		return err
	case <-time.After(time.Second):
		t.Fatal("acknowledgement never arrived")
		return nil
	}
}

func TestLoopbackAcknowledgesTransactions(t *testing.T) {
	l := NewLoopback()
	ack := make(chan error, 1)
	l.RequestTransaction(context.Background(), Transaction{Kind: TxAnswer, CallID: "a"}, func(err error) { ack <- err })
	if err := waitAck(t, ack); err != nil {
		t.Fatalf("ack error = %v", err)
	}
}

func TestLoopbackFailNextTransaction(t *testing.T) {
	l := NewLoopback()
	boom := errors.New("boom")
	l.FailNextTransaction(TxEnd, boom)

	ack := make(chan error, 1)
	l.RequestTransaction(context.Background(), Transaction{Kind: TxEnd}, func(err error) { ack <- err })
	if err := waitAck(t, ack); !errors.Is(err, boom) {
		t.Fatalf("ack error = %v, want injected failure", err)
	}

	// The injection is consumed by the first matching transaction.
	l.RequestTransaction(context.Background(), Transaction{Kind: TxEnd}, func(err error) { ack <- err })
	if err := waitAck(t, ack); err != nil {
		t.Fatalf("second ack error = %v", err)
	}
}

func TestLoopbackFailNextReport(t *testing.T) {
	l := NewLoopback()
	boom := errors.New("boom")
	l.FailNextReport(boom)

	ack := make(chan error, 1)
	l.ReportNewIncomingCall(context.Background(), CallUpdate{CallID: "a"}, func(err error) { ack <- err })
	if err := waitAck(t, ack); !errors.Is(err, boom) {
		t.Fatalf("ack error = %v, want injected failure", err)
	}
}

func TestLoopbackRegisterProvider(t *testing.T) {
	l := NewLoopback()
	if l.Registered() != nil {
		t.Fatal("Registered() != nil before registration")
	}
	cfg := settings.ProviderConfiguration{AppName: "LoopTest"}
	if err := l.RegisterProvider(context.Background(), cfg); err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}
	if got := l.Registered(); got == nil || got.AppName != "LoopTest" {
		t.Fatalf("Registered() = %+v", got)
	}
}

func TestLoopbackDrivesInbound(t *testing.T) {
	l := NewLoopback()
	in := &recordingInbound{}
	l.SetInbound(in)

	l.Perform(Performed{Kind: PerformedDTMF, CallID: "a", Digits: "5"})
	l.ActivateAudio()
	l.DeactivateAudio()
	l.Reset()

	if len(in.performed) != 1 || in.performed[0].Digits != "5" {
		t.Fatalf("performed = %+v", in.performed)
	}
	if in.audioUp != 1 || in.audioDown != 1 || in.resets != 1 {
		t.Fatalf("audioUp=%d audioDown=%d resets=%d", in.audioUp, in.audioDown, in.resets)
	}
}

func TestLoopbackInboundUnsetIsNoop(t *testing.T) {
	l := NewLoopback()
	l.Perform(Performed{Kind: PerformedAnswer, CallID: "a"})
	l.Reset()
}
