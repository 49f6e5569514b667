package app

import (
	"context"
	"testing"
	"time"

	"github.com/maia-sdr/sdrd/internal/ddc"
)

func TestDesignerReturnsDesign(t *testing.T) {
	d := NewDesigner()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := d.Design(ctx, 20, 61_440_000, ddc.DefaultTolerances())
	if err != nil {
		t.Fatalf("Design() error: %v", err)
	}
	if len(result.FIR1.Coefficients) == 0 {
		t.Fatal("expected a non-empty FIR1 design")
	}
	if result.FIR1.Decimation == 0 {
		t.Fatal("expected a nonzero stage-1 decimation")
	}
}

func TestDesignerCancelledContextBeforeSubmit(t *testing.T) {
	d := &Designer{jobs: make(chan designJob)} // no worker consuming: Design must respect ctx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Design(ctx, 20, 61_440_000, ddc.DefaultTolerances())
	if err == nil {
		t.Fatal("expected context-cancellation error when no worker is draining jobs")
	}
}
