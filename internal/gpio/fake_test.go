package gpio

import (
	"errors"
	"fmt"
	"testing"

	logx "waterbot/pkg/logx"
)

func TestFakePortWriteRead(t *testing.T) {
	p := NewFakePort(logx.Nop())

	if err := p.Write(17, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	on, err := p.Read(17)
	if err != nil || !on {
		t.Fatalf("Read = %v, %v; want on", on, err)
	}
	if p.Writes() != 1 {
		t.Fatalf("expected 1 write, got %d", p.Writes())
	}
}

func TestFakePortSelectiveFailure(t *testing.T) {
	p := NewFakePort(logx.Nop())
	p.WriteError = fmt.Errorf("boom")
	p.FailPins = map[int]bool{27: true}

	if err := p.Write(17, true); err != nil {
		t.Fatalf("pin 17 should succeed: %v", err)
	}
	if err := p.Write(27, true); !errors.Is(err, ErrIO) {
		t.Fatalf("pin 27 should fail with ErrIO, got %v", err)
	}
	if p.Level(27) {
		t.Fatalf("failed write must not change the level")
	}
}

func TestFakePortCloseDrivesLow(t *testing.T) {
	p := NewFakePort(logx.Nop())
	_ = p.Write(17, true)
	_ = p.Write(27, true)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Level(17) || p.Level(27) {
		t.Fatalf("Close must drive all pins low")
	}
	if !p.Closed() {
		t.Fatalf("Closed() should report true")
	}
}
