package docstore

import (
	"context"
	"sync"
)

// hub fans change notifications out to live subscriptions. Every watcher
// re-evaluates its query when its collection changes and delivers the new
// snapshot if it differs from the last one it sent.
type hub struct {
	mu       sync.Mutex
	closed   bool
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	collection string
	eval       func(context.Context) (Snapshot, error)
	wake       chan struct{}
	out        chan Snapshot
	ctx        context.Context
	cancel     context.CancelFunc
	last       *Snapshot
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *hub) watch(ctx context.Context, collection string, eval func(context.Context) (Snapshot, error)) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.mu.Unlock()

	first, err := eval(ctx)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		collection: collection,
		eval:       eval,
		wake:       make(chan struct{}, 1),
		out:        make(chan Snapshot, 1),
		ctx:        wctx,
		cancel:     cancel,
		last:       &first,
	}
	w.out <- first

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[*watcher]struct{})
	}
	h.watchers[collection][w] = struct{}{}
	h.mu.Unlock()

	// A write may have landed between the first evaluation and registration.
	w.notify()
	go w.run(h)

	return &Subscription{updates: w.out, stop: cancel}, nil
}

// publish wakes every watcher of collection. It never blocks.
func (h *hub) publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		w.notify()
	}
}

func (h *hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers[w.collection], w)
	if len(h.watchers[w.collection]) == 0 {
		delete(h.watchers, w.collection)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*watcher
	for _, set := range h.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()

	for _, w := range all {
		w.cancel()
	}
}

func (w *watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) run(h *hub) {
	defer func() {
		h.remove(w)
		close(w.out)
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}

		snap, err := w.eval(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			snap = Snapshot{Err: err}
		} else if sameSnapshot(w.last, snap) {
			continue
		}
		w.last = &snap
		w.deliver(snap)
	}
}

// deliver replaces any undelivered snapshot with snap so slow readers only
// ever see the latest state.
func (w *watcher) deliver(snap Snapshot) {
	for {
		select {
		case w.out <- snap:
			return
		default:
		}
		select {
		case <-w.out:
		default:
		}
	}
}
