package feedcache

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultPrefetchDistance is how close to the end of the cached items a
// consumer may read before Seen triggers an append.
const DefaultPrefetchDistance = 5

// LoadStatus is the phase of one load edge.
type LoadStatus int

const (
	// StatusSuccess means no load is running and the last one (if any)
	// succeeded.
	StatusSuccess LoadStatus = iota
	StatusLoading
	StatusError
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "success"
	}
}

// LoadState is the state of one edge of a Pager.
type LoadState struct {
	Status          LoadStatus `json:"status"`
	EndOfPagination bool       `json:"end_of_pagination"`
	Err             error      `json:"-"`
}

// LoadStates holds the state of every edge. Prepend always reports success
// with end of pagination.
type LoadStates struct {
	Refresh LoadState `json:"refresh"`
	Prepend LoadState `json:"prepend"`
	Append  LoadState `json:"append"`
}

// Pager is the paging front for one feed. It guarantees at most one load
// cycle in flight for its label: identical concurrent requests share one
// cycle and different load types run one after another.
type Pager struct {
	feed     Feed
	mediator *Mediator
	store    *Store
	prefetch int

	group  singleflight.Group
	loadMu sync.Mutex

	mu      sync.Mutex
	states  LoadStates
	subs    map[int]chan LoadStates
	nextSub int
}

// NewPager creates a pager for feed.
func NewPager(m *Mediator, s *Store, feed Feed) (*Pager, error) {
	if err := feed.Validate(); err != nil {
		return nil, err
	}
	return &Pager{
		feed:     feed,
		mediator: m,
		store:    s,
		prefetch: DefaultPrefetchDistance,
		states: LoadStates{
			Prepend: LoadState{Status: StatusSuccess, EndOfPagination: true},
		},
		subs: make(map[int]chan LoadStates),
	}, nil
}

// Feed returns the feed this pager loads.
func (p *Pager) Feed() Feed {
	return p.feed
}

// Items returns the cached items of the feed in order.
func (p *Pager) Items(ctx context.Context) iter.Seq2[Item, error] {
	return p.store.Items(ctx, p.feed.Label)
}

// Refresh reloads the feed from the first page.
func (p *Pager) Refresh(ctx context.Context) (Result, error) {
	return p.load(ctx, Refresh{})
}

// LoadMore appends the next page after the stored cursor.
func (p *Pager) LoadMore(ctx context.Context) (Result, error) {
	return p.load(ctx, Append{})
}

// Prepend reports end of pagination; backward paging is not supported. It
// never waits for a running load.
func (p *Pager) Prepend(context.Context) (Result, error) {
	return Result{EndOfPagination: true}, nil
}

// Clear deletes the cached items and cursor of the feed. It waits for any
// running load cycle and resets the load states.
func (p *Pager) Clear(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if err := p.store.ClearPartition(ctx, p.feed.Label); err != nil {
		return err
	}

	p.mu.Lock()
	p.states.Refresh = LoadState{Status: StatusSuccess}
	p.states.Append = LoadState{Status: StatusSuccess}
	p.broadcastLocked()
	p.mu.Unlock()
	return nil
}

// Seen tells the pager the consumer has read up to index (zero based) of
// count cached items. When that is within the prefetch distance of the end
// and the append edge is not exhausted, an append is run. It reports whether
// a load was triggered.
func (p *Pager) Seen(ctx context.Context, index, count int) (bool, error) {
	if index < count-p.prefetch {
		return false, nil
	}
	st := p.States().Append
	if st.EndOfPagination || st.Status == StatusLoading {
		return false, nil
	}
	_, err := p.LoadMore(ctx)
	return true, err
}

// States returns a snapshot of the load states.
func (p *Pager) States() LoadStates {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states
}

// Subscribe returns a stream of load states. The current state is delivered
// first; a slow reader only sees the latest state. The channel is closed by
// the returned cancel function.
func (p *Pager) Subscribe() (<-chan LoadStates, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan LoadStates, 1)
	ch <- p.states
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
}

// load runs lt once for every caller waiting on it. The shared cycle is
// detached from the caller that started it; each caller stops waiting when
// its own ctx is done.
func (p *Pager) load(ctx context.Context, lt LoadType) (Result, error) {
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(lt.String(), func() (any, error) {
		p.loadMu.Lock()
		defer p.loadMu.Unlock()

		p.update(lt, LoadState{Status: StatusLoading})
		res, err := p.mediator.Load(shared, p.feed, lt)
		p.finish(lt, res, err)
		return res, err
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pager) finish(lt LoadType, res Result, err error) {
	if err != nil {
		p.update(lt, LoadState{Status: StatusError, Err: err})
		return
	}

	done := LoadState{Status: StatusSuccess, EndOfPagination: res.EndOfPagination}
	p.mu.Lock()
	switch lt.(type) {
	case Refresh:
		p.states.Refresh = LoadState{Status: StatusSuccess}
		p.states.Append = done
	case Append:
		p.states.Append = done
	}
	p.broadcastLocked()
	p.mu.Unlock()
}

func (p *Pager) update(lt LoadType, st LoadState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch lt.(type) {
	case Refresh:
		p.states.Refresh = st
	case Append:
		p.states.Append = st
	default:
		panic(fmt.Sprintf("feedcache: unhandled load type %T", lt))
	}
	p.broadcastLocked()
}

// broadcastLocked replaces any unread state in each subscriber channel.
func (p *Pager) broadcastLocked() {
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p.states
	}
}
