// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/telespool/lib/testutil"
	"github.com/bureau-foundation/telespool/lib/transmission"
	"github.com/bureau-foundation/telespool/lib/workers"
)

func TestNewNetworkOutputValidation(t *testing.T) {
	transport := TransportFunc(func(context.Context, []byte, string, string) bool { return true })
	tests := []struct {
		name      string
		transport Transport
		k         int
	}{
		{"nil transport", nil, 1},
		{"zero concurrency", transport, 0},
		{"negative concurrency", transport, -1},
		{"over max", transport, workers.MaxWorkers + 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewNetworkOutput(test.transport, NetworkConfig{Concurrency: test.k})
			if !errors.Is(err, transmission.ErrInvalidArgument) {
				t.Fatalf("NewNetworkOutput error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	network, err := NewNetworkOutput(transport, NetworkConfig{Concurrency: workers.MaxWorkers})
	if err != nil {
		t.Fatalf("NewNetworkOutput at MaxWorkers: %v", err)
	}
	network.Stop(time.Second)
}

func TestNetworkOutputRejectsWhenSaturated(t *testing.T) {
	transport := newGatedTransport()
	network, err := NewNetworkOutput(transport, NetworkConfig{Concurrency: 1})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}
	defer network.Stop(5 * time.Second)

	ctx := context.Background()
	if !network.Send(ctx, newTestTransmission(t, "first")) {
		t.Fatal("first Send declined on an idle output")
	}
	testutil.RequireReceive(t, transport.started, 5*time.Second, "waiting for first post")

	if network.Send(ctx, newTestTransmission(t, "second")) {
		t.Fatal("second Send accepted while the only slot is busy")
	}

	testutil.RequireSend(t, transport.release, true, 5*time.Second, "releasing first post")
	network.Stop(5 * time.Second)

	stats := network.Stats()
	if stats.Accepted != 1 || stats.Rejected != 1 || stats.Delivered != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 accepted, 1 rejected, 1 delivered", stats)
	}
}

func TestNetworkOutputBlockPolicyWaitsForSlot(t *testing.T) {
	transport := newGatedTransport()
	network, err := NewNetworkOutput(transport, NetworkConfig{
		Concurrency: 1,
		Admission:   workers.AdmissionBlock,
	})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}
	defer network.Stop(5 * time.Second)

	ctx := context.Background()
	if !network.Send(ctx, newTestTransmission(t, "first")) {
		t.Fatal("first Send declined")
	}
	testutil.RequireReceive(t, transport.started, 5*time.Second, "waiting for first post")

	second := newTestTransmission(t, "second")
	admitted := make(chan bool, 1)
	go func() {
		admitted <- network.Send(ctx, second)
	}()

	select {
	case <-admitted:
		t.Fatal("second Send returned while the slot was still busy")
	case <-time.After(50 * time.Millisecond): //nolint:realclock negative check
	}

	testutil.RequireSend(t, transport.release, true, 5*time.Second, "releasing first post")
	if !testutil.RequireReceive(t, admitted, 5*time.Second, "waiting for second admission") {
		t.Fatal("second Send declined after the slot freed")
	}
	if got := string(testutil.RequireReceive(t, transport.started, 5*time.Second, "waiting for second post")); got != "second" {
		t.Errorf("second post payload = %q, want %q", got, "second")
	}
	testutil.RequireSend(t, transport.release, true, 5*time.Second, "releasing second post")
}

func TestNetworkOutputBlockPolicyHonorsContext(t *testing.T) {
	transport := newGatedTransport()
	network, err := NewNetworkOutput(transport, NetworkConfig{
		Concurrency: 1,
		Admission:   workers.AdmissionBlock,
	})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}

	if !network.Send(context.Background(), newTestTransmission(t, "first")) {
		t.Fatal("first Send declined")
	}
	testutil.RequireReceive(t, transport.started, 5*time.Second, "waiting for first post")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if network.Send(ctx, newTestTransmission(t, "second")) {
		t.Error("Send with a cancelled context was admitted")
	}

	testutil.RequireSend(t, transport.release, true, 5*time.Second, "releasing first post")
	network.Stop(5 * time.Second)
}

func TestNetworkOutputFailureGoesToFallback(t *testing.T) {
	fallback := &recordingOutput{accept: true}
	transport := TransportFunc(func(context.Context, []byte, string, string) bool { return false })
	network, err := NewNetworkOutput(transport, NetworkConfig{Concurrency: 2, OnFailure: fallback})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}

	sent := newTestTransmission(t, "doomed")
	if !network.Send(context.Background(), sent) {
		t.Fatal("Send declined on an idle output")
	}
	network.Stop(5 * time.Second)

	if fallback.count() != 1 {
		t.Fatalf("fallback saw %d sends, want 1", fallback.count())
	}
	if fallback.received[0] != sent {
		t.Error("fallback received a different transmission")
	}
	if stats := network.Stats(); stats.Failed != 1 || stats.Delivered != 0 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
}

func TestNetworkOutputTransportPanicGoesToFallback(t *testing.T) {
	fallback := &recordingOutput{accept: true}
	transport := TransportFunc(func(context.Context, []byte, string, string) bool { panic("transport exploded") })
	network, err := NewNetworkOutput(transport, NetworkConfig{Concurrency: 1, OnFailure: fallback})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}

	if !network.Send(context.Background(), newTestTransmission(t, "payload")) {
		t.Fatal("Send declined")
	}
	network.Stop(5 * time.Second)

	if fallback.count() != 1 {
		t.Errorf("fallback saw %d sends after a transport panic, want 1", fallback.count())
	}
}

func TestNetworkOutputSendAfterStop(t *testing.T) {
	transport := TransportFunc(func(context.Context, []byte, string, string) bool { return true })
	network, err := NewNetworkOutput(transport, NetworkConfig{Concurrency: 1})
	if err != nil {
		t.Fatalf("NewNetworkOutput: %v", err)
	}
	network.Stop(time.Second)
	if network.Send(context.Background(), newTestTransmission(t, "late")) {
		t.Error("Send accepted after Stop")
	}
	if network.Send(context.Background(), nil) {
		t.Error("Send accepted a nil transmission")
	}
}
