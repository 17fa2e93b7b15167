package statsig

import (
	"strconv"
	"sync"
	"time"
)

// logger buffers exposure events and ships them in batches: on a timer, on
// reaching the buffer threshold, and once on shutdown. A batch that fails
// to send is dropped, never requeued.
type logger struct {
	transport *transport
	mu        sync.Mutex
	events    []Event
	maxEvents int
	tick      *time.Ticker
	done      chan struct{}
}

func newLogger(transport *transport, options *Options) *logger {
	l := &logger{
		transport: transport,
		maxEvents: options.maxQueuedEvents(),
		tick:      time.NewTicker(options.loggingInterval()),
		done:      make(chan struct{}),
	}
	go l.backgroundFlush()
	return l
}

func (l *logger) backgroundFlush() {
	for {
		select {
		case <-l.tick.C:
			l.flush()
		case <-l.done:
			return
		}
	}
}

func (l *logger) logGateExposure(user User, gate string, res *evalResult) {
	value := strconv.FormatBool(res.Pass)
	l.enqueue(Event{
		EventName: gateExposureEventName,
		Value:     value,
		Time:      nowUnixString(),
		User:      user,
		Metadata: map[string]string{
			"gate":      gate,
			"gateValue": value,
			"ruleID":    res.ID,
		},
	})
}

func (l *logger) logConfigExposure(user User, config string, res *evalResult) {
	l.enqueue(Event{
		EventName: configExposureEventName,
		Value:     strconv.FormatBool(res.Pass),
		Time:      nowUnixString(),
		User:      user,
		Metadata: map[string]string{
			"config": config,
			"ruleID": res.ID,
		},
	})
}

// enqueue appends without blocking on I/O. Reaching the threshold schedules
// a flush; the threshold is soft, producers keep appending past it.
func (l *logger) enqueue(evt Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	full := len(l.events) >= l.maxEvents
	l.mu.Unlock()

	if full {
		go l.flush()
	}
}

// flush swaps the buffer for an empty one and sends the drained batch
// outside the lock. The swap is the only critical section, so a timer
// flush and a threshold flush racing is harmless.
func (l *logger) flush() {
	l.mu.Lock()
	events := l.events
	l.events = nil
	l.mu.Unlock()

	if len(events) == 0 {
		return
	}
	if err := l.transport.logEvents(events); err != nil {
		log.WithError(err).Errorf("dropping %d events after failed flush", len(events))
	}
}

func (l *logger) shutdown() {
	l.tick.Stop()
	close(l.done)
	l.flush()
}

func nowUnixString() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
