package repository

import (
	"sync"
)

// Subscription is a live query. Snapshots are coalesced: a slow reader
// always receives the newest full snapshot and never a stale one.
type Subscription struct {
	mtx    sync.Mutex
	out    chan Snapshot
	closed bool
	err    error
	stop   func()
}

// NewSubscription wraps a producer. stop is called once when the
// subscription is closed, from either side.
func NewSubscription(stop func()) *Subscription {
	return &Subscription{
		out:  make(chan Snapshot, 1),
		stop: stop,
	}
}

// Snapshots is closed after Close or a terminal error.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.out
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.err
}

// Publish replaces any undelivered snapshot with snap.
func (s *Subscription) Publish(snap Snapshot) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.out <- snap:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

// Fail ends the subscription with err.
func (s *Subscription) Fail(err error) {
	s.mtx.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mtx.Unlock()
	s.Close()
}

func (s *Subscription) Close() {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return
	}
	s.closed = true
	close(s.out)
	stop := s.stop
	s.mtx.Unlock()

	if stop != nil {
		stop()
	}
}

func (s *Subscription) Closed() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.closed
}
