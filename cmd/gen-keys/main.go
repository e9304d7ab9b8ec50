// Command gen-keys runs the offline dealer ceremony that bootstraps a new
// mix network. Invoked as `gen-keys THRESHOLD SHARES`, it samples a
// threshold key and prints the resulting ActiveParticipant records as
// pretty JSON to stdout, one array entry per participant. Passing --out
// switches to a convenience mode that instead writes one crypto-<index>.json
// file per participant, ready to be copied onto that participant's node.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/biomix/mixnode/curve"
	"github.com/biomix/mixnode/curve/dealer"
)

type peerEntry struct {
	URL   string `json:"url"`
	Index uint32 `json:"index"`
}

type cryptoFile struct {
	Whoami       uint32             `json:"whoami"`
	KeySet       curve.PublicKeySet `json:"key_set"`
	SecretKey    string             `json:"secret_key"`
	Participants []peerEntry        `json:"participants"`
}

func main() {
	outDir := flag.StringP("out", "o", "", "write one crypto-<index>.json file per participant into this directory, instead of printing to stdout")
	urlPrefix := flag.String("url-prefix", "http://127.0.0.1:", "URL prefix for --out mode; one port per participant is appended starting at --base-port")
	basePort := flag.Int("base-port", 9000, "first participant's port in --out mode; subsequent participants increment by 1")
	flag.Parse()

	threshold, shares, err := parsePositional(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "gen-keys: %v\n", err)
		fmt.Fprintln(os.Stderr, "usage: gen-keys THRESHOLD SHARES [--out DIR]")
		os.Exit(1)
	}

	if *outDir != "" {
		err = runFileMode(threshold, shares, *outDir, *urlPrefix, *basePort)
	} else {
		err = runStdoutMode(threshold, shares)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gen-keys: %v\n", err)
		os.Exit(1)
	}
}

// parsePositional parses the THRESHOLD SHARES positional arguments.
func parsePositional(args []string) (threshold, shares uint32, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 positional arguments, got %d", len(args))
	}
	t, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing threshold: %w", err)
	}
	n, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing shares: %w", err)
	}
	return uint32(t), uint32(n), nil
}

// runStdoutMode is the literal dealer contract: print the dealt
// ActiveParticipant records as a pretty-printed JSON array to stdout.
func runStdoutMode(threshold, shares uint32) error {
	participants, err := dealer.Deal(shares, threshold)
	if err != nil {
		return fmt.Errorf("dealing key set: %w", err)
	}
	data, err := json.MarshalIndent(participants, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling participants: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// runFileMode is the node-operator convenience: the same ceremony, but
// written out as one ready-to-deploy crypto.json per participant rather
// than a single combined array.
func runFileMode(threshold, shares uint32, outDir, urlPrefix string, basePort int) error {
	participants, err := dealer.Deal(shares, threshold)
	if err != nil {
		return fmt.Errorf("dealing key set: %w", err)
	}

	peers := make([]peerEntry, shares)
	for i := uint32(0); i < shares; i++ {
		peers[i] = peerEntry{
			URL:   fmt.Sprintf("%s%d", urlPrefix, basePort+int(i)),
			Index: i,
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, p := range participants {
		out := cryptoFile{
			Whoami:       p.Index,
			KeySet:       p.KeySet,
			SecretKey:    p.SecretShare.String(),
			Participants: peers,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling participant %d: %w", p.Index, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("crypto-%d.json", p.Index))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}
