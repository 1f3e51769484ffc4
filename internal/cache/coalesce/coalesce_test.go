package coalesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleLeaderAcrossConcurrentCallers(t *testing.T) {
	c := New()
	var calls int32

	leaderFn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "payload", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	oks := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, res, _ := c.TryExecute("k", time.Second, leaderFn)
			oks[i] = ok
			if ok {
				results[i] = res.(string)
			}
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected leaderFn to run exactly once, ran %d times", calls)
	}
	for i, ok := range oks {
		if !ok || results[i] != "payload" {
			t.Fatalf("caller %d did not observe the leader's result: ok=%v result=%q", i, ok, results[i])
		}
	}
	if c.InFlightCount() != 0 {
		t.Fatal("expected in-flight map to be empty once the leader settles")
	}
}

func TestFollowerTimeoutDoesNotCancelLeader(t *testing.T) {
	c := New()
	leaderDone := make(chan struct{})

	leaderFn := func() (interface{}, error) {
		time.Sleep(50 * time.Millisecond)
		close(leaderDone)
		return "ok", nil
	}

	go c.TryExecute("k", time.Second, leaderFn)
	time.Sleep(5 * time.Millisecond) // let the leader register first

	ok, _, _ := c.TryExecute("k", 0, leaderFn)
	if ok {
		t.Fatal("expected immediate follower with 0 timeout to fail")
	}

	select {
	case <-leaderDone:
	case <-time.After(time.Second):
		t.Fatal("leader never completed")
	}
}
