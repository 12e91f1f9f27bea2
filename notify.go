package feedcache

import "sync"

// notifier fans out commit signals to label subscribers.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]subscription
}

type subscription struct {
	label string
	ch    chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]subscription)}
}

// subscribe registers interest in label ("" for all labels).
func (n *notifier) subscribe(label string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = subscription{label: label, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// notify signals subscribers of label without blocking. A pending signal
// already covers this commit, so extra ones are dropped.
func (n *notifier) notify(label string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		if sub.label != "" && sub.label != label {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, sub := range n.subs {
		delete(n.subs, id)
		close(sub.ch)
	}
}
