// Command mixnode-server runs one node of the threshold mix network: it
// loads its crypto material and peer list, then serves the HTTP endpoints
// that let peers remix ciphertexts, request decryption shares, and drive
// the Hamming-distance protocol against this node.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/biomix/mixnode/api"
	"github.com/biomix/mixnode/bridge"
	"github.com/biomix/mixnode/config"
	"github.com/biomix/mixnode/coordinator"
	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/log"
	"github.com/biomix/mixnode/mixnet"
	"github.com/biomix/mixnode/storage"
	"github.com/biomix/mixnode/types"
)

func main() {
	baseConfigPath := os.Getenv("MIXNODE_CONFIG")
	cryptoConfigPath := os.Getenv("MIXNODE_CRYPTO_CONFIG")
	if cryptoConfigPath == "" {
		cryptoConfigPath = "crypto.json"
	}

	cfg, err := config.Load(baseConfigPath, cryptoConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mixnode-server: loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting mixnode-server", "whoami", cfg.Crypto.Whoami, "environment", cfg.Environment)

	self, err := buildSelf(cfg)
	if err != nil {
		log.Fatalf("building participant identity: %v", err)
	}

	peers := make([]mixnet.ParticipantId, len(cfg.Crypto.Participants))
	for i, p := range cfg.Crypto.Participants {
		peers[i] = mixnet.ParticipantId{Index: p.Index, URL: p.URL}
	}
	network := mixnet.NewNetwork(cfg.Crypto.Whoami, peers, cfg.Crypto.KeySet, cfg.Application.AuthToken, cfg.Application.PeerTimeout)

	pool := bridge.New()
	co := coordinator.New(pool, network, self)

	_, err = api.New(&api.APIConfig{
		Host:        cfg.Application.Host,
		Port:        cfg.Application.Port,
		AuthToken:   cfg.Application.AuthToken,
		Pool:        pool,
		Network:     network,
		Self:        self,
		Coordinator: co,
		Codes:       storage.NewMemoryStore(),
	})
	if err != nil {
		log.Fatalf("starting API: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// buildSelf decodes the secret key material from cfg into the in-memory
// ActiveParticipant this process holds for the lifetime of the run.
func buildSelf(cfg *config.Config) (curve.ActiveParticipant, error) {
	secretShare, err := types.HexStringToHexBytes(cfg.Crypto.SecretKey)
	if err != nil {
		return curve.ActiveParticipant{}, fmt.Errorf("decoding secret_key: %w", err)
	}
	self := curve.ActiveParticipant{
		KeySet:      cfg.Crypto.KeySet,
		Index:       cfg.Crypto.Whoami,
		SecretShare: secretShare,
	}
	if _, err := self.Scalar(); err != nil {
		return curve.ActiveParticipant{}, fmt.Errorf("invalid secret share: %w", err)
	}
	return self, nil
}
