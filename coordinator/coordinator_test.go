package coordinator

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/biomix/mixnode/bridge"
	"github.com/biomix/mixnode/internal/testutil"
)

// buildSelf returns a Coordinator acting as participant 0 of net.
func buildSelf(c *qt.C, net *testutil.Network) *Coordinator {
	self := net.Nodes[0].Participant
	network := net.BuildNetworkFor(self.Index)
	return New(bridge.New(), network, self)
}

func TestHammingRoundTripIdenticalInputsIsZero(t *testing.T) {
	c := qt.New(t)
	net := testutil.BuildNetwork(t, 3, 2, nil)
	defer net.Close()

	co := buildSelf(c, net)

	bits := []bool{true, false, true, true, false, false, true, false}
	x := testutil.EncryptCode(t, net.PublicKey, bits)
	y := testutil.EncryptCode(t, net.PublicKey, bits)

	dist, err := co.Hamming(context.Background(), x, y)
	c.Assert(err, qt.IsNil)
	c.Assert(dist, qt.Equals, 0)
}

func TestHammingUnitDistance(t *testing.T) {
	c := qt.New(t)
	net := testutil.BuildNetwork(t, 3, 2, nil)
	defer net.Close()

	co := buildSelf(c, net)

	xBits := []bool{true, false, true, true}
	yBits := []bool{true, false, true, false} // one bit flipped
	x := testutil.EncryptCode(t, net.PublicKey, xBits)
	y := testutil.EncryptCode(t, net.PublicKey, yBits)

	dist, err := co.Hamming(context.Background(), x, y)
	c.Assert(err, qt.IsNil)
	c.Assert(dist, qt.Equals, 1)
}

func TestHammingBadLengthRejected(t *testing.T) {
	c := qt.New(t)
	net := testutil.BuildNetwork(t, 3, 2, nil)
	defer net.Close()

	co := buildSelf(c, net)

	x := testutil.EncryptCode(t, net.PublicKey, []bool{true, false, true, true})
	y := testutil.EncryptCode(t, net.PublicKey, []bool{true, false})

	_, err := co.Hamming(context.Background(), x, y)
	c.Assert(err, qt.ErrorMatches, "remix: invalid length.*")
}

func TestHammingToleratesFaultyPeer(t *testing.T) {
	c := qt.New(t)
	faulty := map[uint32]bool{2: true}
	net := testutil.BuildNetwork(t, 3, 2, faulty)
	defer net.Close()

	co := buildSelf(c, net)

	bits := []bool{true, true, false, false, true, false}
	x := testutil.EncryptCode(t, net.PublicKey, bits)
	y := testutil.EncryptCode(t, net.PublicKey, bits)

	dist, err := co.Hamming(context.Background(), x, y)
	c.Assert(err, qt.IsNil)
	c.Assert(dist, qt.Equals, 0)
}
