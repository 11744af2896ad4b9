// Package debounce joins text fragments that arrive in quick succession for
// the same key into one message.
package debounce

import (
	"strings"
	"sync"
	"time"
)

// DefaultWindow is how long a key must stay quiet before its buffer is
// delivered.
const DefaultWindow = time.Second

// FlushFunc receives one logical message for key.
type FlushFunc func(key int64, text string)

type buffer struct {
	parts []string
	timer *time.Timer
	gen   uint64
}

// Debouncer buffers fragments per key and hands the joined text to a
// FlushFunc once no new fragment arrived for the window.
type Debouncer struct {
	window time.Duration
	flush  FlushFunc

	mu       sync.Mutex
	buffers  map[int64]*buffer
	gen      uint64
	stopped  bool
	inflight sync.WaitGroup
}

func New(window time.Duration, flush FlushFunc) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:  window,
		flush:   flush,
		buffers: make(map[int64]*buffer),
	}
}

// Push appends text to the buffer of key and restarts its quiet window.
func (d *Debouncer) Push(key int64, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	buf, found := d.buffers[key]
	if !found {
		buf = &buffer{}
		d.buffers[key] = buf
	} else if buf.timer != nil {
		buf.timer.Stop()
	}

	d.gen++
	gen := d.gen
	buf.parts = append(buf.parts, text)
	buf.gen = gen
	buf.timer = time.AfterFunc(d.window, func() {
		d.expire(key, gen)
	})
}

// Immediate delivers whatever is buffered for key and then text, without
// waiting. Forwarded messages go this way.
func (d *Debouncer) Immediate(key int64, text string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	pending, ok := d.take(key)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	if ok {
		d.flush(key, pending)
	}
	d.flush(key, text)
}

// Stop delivers every buffered message, refuses new ones and waits for
// running deliveries to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.inflight.Wait()
		return
	}
	d.stopped = true

	type flushed struct {
		key  int64
		text string
	}
	var drained []flushed
	for key := range d.buffers {
		if text, ok := d.take(key); ok {
			drained = append(drained, flushed{key, text})
		}
	}
	d.mu.Unlock()

	for _, f := range drained {
		d.flush(f.key, f.text)
	}
	d.inflight.Wait()
}

func (d *Debouncer) expire(key int64, gen uint64) {
	d.mu.Lock()
	buf, found := d.buffers[key]
	if !found || buf.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	text, _ := d.take(key)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	d.flush(key, text)
}

// take removes the buffer of key. d.mu must be held.
func (d *Debouncer) take(key int64) (string, bool) {
	buf, found := d.buffers[key]
	if !found {
		return "", false
	}
	delete(d.buffers, key)
	if buf.timer != nil {
		buf.timer.Stop()
	}
	return strings.Join(buf.parts, "\n"), true
}
