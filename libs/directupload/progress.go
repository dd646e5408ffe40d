package directupload

import "sync"

// EventKind distinguishes progress updates from the terminal event
type EventKind int

const (
	EventProgress EventKind = iota
	EventSucceeded
	EventFailed
)

// Event is a single progress notification.
// Percent never decreases across the events a subscriber receives.
type Event struct {
	Kind       EventKind
	Percent    int
	Descriptor *Descriptor
	Err        error
}

// Terminal reports whether no further events follow
func (e Event) Terminal() bool {
	return e.Kind != EventProgress
}

// progress fans out events to subscribers without ever blocking the producer.
// Each subscriber channel holds at most one pending event; a newer progress event replaces an unread one.
// The terminal event is always delivered, after which the channel is closed.
type progress struct {
	mu       sync.Mutex
	subs     []chan Event
	percent  int
	terminal *Event
}

func newProgress() *progress {
	return &progress{percent: -1}
}

func (p *progress) subscribe() <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Event, 1)
	if p.terminal != nil {
		ch <- *p.terminal
		close(ch)
		return ch
	}
	if p.percent >= 0 {
		ch <- Event{Kind: EventProgress, Percent: p.percent}
	}
	p.subs = append(p.subs, ch)
	return ch
}

// publish emits percent if it is higher than the last emitted value
func (p *progress) publish(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal != nil || percent <= p.percent {
		return
	}
	p.percent = percent
	ev := Event{Kind: EventProgress, Percent: percent}
	for _, ch := range p.subs {
		replace(ch, ev)
	}
}

func (p *progress) finish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal != nil {
		return
	}
	if ev.Kind == EventSucceeded {
		ev.Percent = 100
	} else if p.percent > 0 {
		ev.Percent = p.percent
	}
	p.terminal = &ev
	for _, ch := range p.subs {
		replace(ch, ev)
		close(ch)
	}
	p.subs = nil
}

// replace sends ev, dropping an unread event if the buffer is full. Callers hold p.mu, so they are the only sender.
func replace(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
