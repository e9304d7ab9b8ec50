package bridge

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestRunReturnsValue(t *testing.T) {
	c := qt.New(t)
	p := NewSized(2)

	got := Run(p, func() int { return 42 })
	c.Assert(got, qt.Equals, 42)
}

func TestRunPropagatesPanic(t *testing.T) {
	c := qt.New(t)
	p := NewSized(1)

	defer func() {
		r := recover()
		c.Assert(r, qt.Not(qt.IsNil))
		c.Assert(strings.Contains(r.(string), "boom"), qt.IsTrue)
	}()

	Run(p, func() int {
		panic("boom")
	})
}

func TestPoolRunsConcurrently(t *testing.T) {
	c := qt.New(t)
	p := NewSized(4)

	var inflight int32
	var maxSeen int32
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		ch := Spawn(p, func() int {
			n := atomic.AddInt32(&inflight, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			return 0
		})
		go func() { Await(ch); done <- struct{}{} }()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	c.Assert(atomic.LoadInt32(&maxSeen) > 1, qt.IsTrue)
}
