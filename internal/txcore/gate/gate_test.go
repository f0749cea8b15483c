package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/commune/internal/core/domain"
	"github.com/vietddude/commune/internal/core/txerr"
	"github.com/vietddude/commune/internal/txcore"
	"github.com/vietddude/commune/internal/txcore/encoder"
)

type mockSession struct {
	address   string
	connected bool
	chainID   uint64
	switchErr error
	switches  int
}

func (s *mockSession) Address() string { return s.address }
func (s *mockSession) Connected() bool { return s.connected }
func (s *mockSession) ChainID() uint64 { return s.chainID }

func (s *mockSession) SwitchChain(ctx context.Context, chainID uint64) error {
	s.switches++
	if s.switchErr != nil {
		return s.switchErr
	}
	s.chainID = chainID
	return nil
}

func (s *mockSession) SendTransaction(ctx context.Context, call domain.Call, opts txcore.SendOptions) (string, error) {
	return "", errors.New("gate must never send")
}

func connected(chain uint64) *mockSession {
	return &mockSession{address: "0xabc", connected: true, chainID: chain}
}

func TestCheck_NotConnected(t *testing.T) {
	g := New(421614)
	for _, s := range []txcore.SessionContext{nil, &mockSession{}, &mockSession{connected: true}} {
		err := g.Check(context.Background(), s, nil, nil)
		var nc *txerr.NotConnectedError
		if !errors.As(err, &nc) {
			t.Errorf("expected NotConnectedError, got %v", err)
		}
	}
}

func TestCheck_MissingField(t *testing.T) {
	g := New(421614)
	err := g.Check(context.Background(), connected(421614),
		[]string{encoder.FieldCommuneID, encoder.FieldTitle},
		encoder.Args{encoder.FieldCommuneID: "1", encoder.FieldTitle: "  "})

	var ve *txerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != encoder.FieldTitle {
		t.Errorf("expected field %s, got %s", encoder.FieldTitle, ve.Field)
	}
}

func TestCheck_ConnectionCheckedBeforeFields(t *testing.T) {
	err := New(1).Check(context.Background(), &mockSession{}, []string{encoder.FieldTitle}, encoder.Args{})
	var nc *txerr.NotConnectedError
	if !errors.As(err, &nc) {
		t.Fatalf("expected NotConnectedError first, got %v", err)
	}
}

func TestCheck_SwitchesChain(t *testing.T) {
	s := connected(1)
	if err := New(421614).Check(context.Background(), s, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.switches != 1 || s.chainID != 421614 {
		t.Errorf("expected one switch to 421614, got %d switches, chain %d", s.switches, s.chainID)
	}
}

func TestCheck_SwitchDeclined(t *testing.T) {
	s := connected(1)
	s.switchErr = errors.New("user rejected the request")

	err := New(421614).Check(context.Background(), s, nil, nil)
	var wc *txerr.WrongChainError
	if !errors.As(err, &wc) {
		t.Fatalf("expected WrongChainError, got %v", err)
	}
	if wc.Want != 421614 || wc.Have != 1 {
		t.Errorf("unexpected chains in %v", wc)
	}
}

func TestCheck_Idempotent(t *testing.T) {
	g := New(421614)
	s := connected(421614)
	args := encoder.Args{encoder.FieldTitle: "Dishes"}
	required := []string{encoder.FieldTitle, encoder.FieldFrequency}

	first := g.Check(context.Background(), s, required, args)
	for i := 0; i < 3; i++ {
		again := g.Check(context.Background(), s, required, args)
		if txerr.Kind(again) != txerr.Kind(first) {
			t.Fatalf("outcome changed: %v vs %v", first, again)
		}
	}
}
