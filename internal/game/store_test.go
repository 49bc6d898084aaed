package game

import (
	"sync"
	"testing"
	"time"
)

type counter struct {
	A, B int
}

func TestStoreNotifiesOncePerChange(t *testing.T) {
	store := NewStore(counter{})
	var seen []counter
	store.Subscribe(func(c counter) { seen = append(seen, c) })

	steps := []Reducer[counter]{
		func(c counter) counter { c.A = 1; return c },
		func(c counter) counter { return c }, // no change
		func(c counter) counter { c.B = 2; return c },
		func(c counter) counter { c.A = 1; return c }, // same value again
		func(c counter) counter { c.A, c.B = 3, 4; return c },
	}
	for _, step := range steps {
		store.Dispatch(step)
	}

	want := []counter{{1, 0}, {1, 2}, {3, 4}}
	if len(seen) != len(want) {
		t.Fatalf("expected %d notifications, got %d: %+v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notification %d: expected %+v, got %+v", i, want[i], seen[i])
		}
	}
	if got := store.Get(); got != (counter{3, 4}) {
		t.Fatalf("unexpected final state %+v", got)
	}
}

func TestStoreNotifiesInRegistrationOrder(t *testing.T) {
	store := NewStore(counter{})
	var order []string
	store.Subscribe(func(counter) { order = append(order, "first") })
	unsubscribe := store.Subscribe(func(counter) { order = append(order, "second") })
	store.Subscribe(func(counter) { order = append(order, "third") })

	store.Dispatch(func(c counter) counter { c.A++; return c })
	unsubscribe()
	unsubscribe()
	store.Dispatch(func(c counter) counter { c.A++; return c })

	want := []string{"first", "second", "third", "first", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestStoreQueuesDispatchFromListener(t *testing.T) {
	store := NewStore(counter{})
	var firstSeen, secondSeen []counter

	store.Subscribe(func(c counter) {
		firstSeen = append(firstSeen, c)
		if c.A == 1 {
			store.Dispatch(func(c counter) counter { c.B = 10; return c })
			if store.Get().B != 10 {
				t.Error("nested dispatch should be visible to Get right away")
			}
		}
	})
	store.Subscribe(func(c counter) { secondSeen = append(secondSeen, c) })

	store.Dispatch(func(c counter) counter { c.A = 1; return c })

	want := []counter{{1, 0}, {1, 10}}
	for name, seen := range map[string][]counter{"first": firstSeen, "second": secondSeen} {
		if len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
			t.Fatalf("%s listener: expected %+v, got %+v", name, want, seen)
		}
	}
}

func TestStoreConcurrentDispatch(t *testing.T) {
	store := NewStore(counter{})
	var mu sync.Mutex
	notified := 0
	store.Subscribe(func(counter) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(func(c counter) counter { c.A++; return c })
		}()
	}
	wg.Wait()

	if got := store.Get().A; got != 50 {
		t.Fatalf("expected 50 increments, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if notified != 50 {
		t.Fatalf("expected 50 notifications, got %d", notified)
	}
}

func TestStoreDispatchVisibleWhileAnotherGoroutineNotifies(t *testing.T) {
	store := NewStore(counter{})
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.Subscribe(func(counter) {
		once.Do(func() {
			close(entered)
			<-release
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Dispatch(func(c counter) counter { c.A = 1; return c })
	}()
	<-entered

	store.Dispatch(func(c counter) counter { c.A += 10; return c })
	if got := store.Get().A; got != 11 {
		t.Fatalf("expected own dispatch to be visible, got A=%d", got)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifying goroutine did not finish")
	}
}

func TestStoreRecoversFromPanickingListener(t *testing.T) {
	store := NewStore(counter{})
	var seen []counter
	store.Subscribe(func(c counter) {
		if c.A == 1 {
			panic("listener failed")
		}
		seen = append(seen, c)
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the listener panic to propagate")
			}
		}()
		store.Dispatch(func(c counter) counter { c.A = 1; return c })
	}()

	store.Dispatch(func(c counter) counter { c.A = 2; return c })
	if got := store.Get().A; got != 2 {
		t.Fatalf("expected A=2 after recovery, got %d", got)
	}
	if len(seen) != 1 || seen[0].A != 2 {
		t.Fatalf("expected one notification with A=2, got %+v", seen)
	}
}
