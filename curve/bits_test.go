package curve

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestBits(t *testing.T) {
	c := qt.New(t)

	c.Run("set and get", func(c *qt.C) {
		b := NewBits(13)
		c.Assert(b.Len(), qt.Equals, 13)
		c.Assert(len(b.Bytes()), qt.Equals, 2)

		b.Set(0, true)
		b.Set(7, true)
		b.Set(8, true)
		b.Set(12, true)

		for i := 0; i < 13; i++ {
			want := i == 0 || i == 7 || i == 8 || i == 12
			c.Assert(b.Get(i), qt.Equals, want, qt.Commentf("bit %d", i))
		}
	})

	c.Run("round trip bytes", func(c *qt.C) {
		b := NewBits(10)
		b.Set(1, true)
		b.Set(9, true)

		again, err := BitsFromBytes(b.Bytes(), 10)
		c.Assert(err, qt.IsNil)
		for i := 0; i < 10; i++ {
			c.Assert(again.Get(i), qt.Equals, b.Get(i))
		}
	})

	c.Run("short backing slice errors", func(c *qt.C) {
		_, err := BitsFromBytes([]byte{0x00}, 16)
		c.Assert(err, qt.ErrorMatches, "curve: bits backing slice.*")
	})
}
