package camlink

import (
	"context"

	"github.com/backkem/camlink/pkg/channel"
	"github.com/backkem/camlink/pkg/store"
)

// Simulated install configuration written by SimulatedConfig.
const (
	SimulatedServerAddress = "127.0.0.1"
	SimulatedRelayToken    = "simulated-relay-token"
)

// SimulatedConfig returns a Config backed by an in-memory store and a
// channel.Simulator. The install configuration is already present, so
// cameras can be paired immediately.
//
// It is useful for tests and for exercising the CLI without a helper.
func SimulatedConfig() (Config, *channel.Simulator) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	s.Set(ctx, store.KeyServerAddress, SimulatedServerAddress)
	s.Set(ctx, store.KeyRelayToken, SimulatedRelayToken)
	store.SetUserCredentials(ctx, s, []byte("simulated-credentials"))

	sim := channel.NewSimulator()
	return Config{Store: s, Channel: sim}, sim
}
