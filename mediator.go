package feedcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hyperengineering/feedcache"

// Mediator runs load cycles: it fetches one page from the Source and applies
// it to the Store.
//
// A Mediator holds no per-label state and takes no per-label locks. Callers
// that need at most one load per label in flight use a Pager.
type Mediator struct {
	source Source
	store  *Store
	debug  *DebugLogger
	tracer trace.Tracer
}

// NewMediator creates a mediator. A nil source puts it in offline mode:
// Refresh and Append fail with ErrOffline (an Append with no cursor still
// reports end of pagination).
func NewMediator(source Source, store *Store) *Mediator {
	return &Mediator{
		source: source,
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
}

// WithDebugLogger enables load-cycle logging.
func (m *Mediator) WithDebugLogger(l *DebugLogger) *Mediator {
	m.debug = l
	return m
}

// Load runs one cycle of the given type for feed.
//
// The store is written at most once, and only after the fetch has completed;
// that write ignores cancellation of ctx so it is never left half applied.
// Failures are returned as *LoadError.
func (m *Mediator) Load(ctx context.Context, feed Feed, lt LoadType) (Result, error) {
	if err := feed.Validate(); err != nil {
		return Result{}, err
	}
	if lt == nil {
		return Result{}, errors.New("load: nil load type")
	}

	cycleID := ulid.Make().String()
	ctx, span := m.tracer.Start(ctx, "feedcache.load", trace.WithAttributes(
		attribute.String("feedcache.cycle_id", cycleID),
		attribute.String("feedcache.label", feed.Label),
		attribute.String("feedcache.load_type", lt.String()),
	))
	defer span.End()

	var (
		res Result
		err error
	)
	switch lt.(type) {
	case Refresh:
		res, err = m.loadRefresh(ctx, feed)
	case Append:
		res, err = m.loadAppend(ctx, feed)
	case Prepend:
		res = Result{EndOfPagination: true}
	default:
		panic(fmt.Sprintf("feedcache: unhandled load type %T", lt))
	}
	res.CycleID = cycleID

	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Label = feed.Label
			le.LoadType = lt
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.debug.LogLoad(cycleID, lt, feed.Label, res, err)
		return res, err
	}

	span.SetAttributes(
		attribute.Int("feedcache.fetched", res.Fetched),
		attribute.Bool("feedcache.end_of_pagination", res.EndOfPagination),
	)
	m.debug.LogLoad(cycleID, lt, feed.Label, res, nil)
	return res, nil
}

func (m *Mediator) loadRefresh(ctx context.Context, feed Feed) (Result, error) {
	if m.source == nil {
		return Result{}, ErrOffline
	}
	return m.fetchAndApply(ctx, feed, FirstPage, true)
}

func (m *Mediator) loadAppend(ctx context.Context, feed Feed) (Result, error) {
	token, err := m.store.GetCursor(ctx, feed.Label)
	if err != nil {
		return Result{}, &LoadError{Kind: KindStorage, Err: err}
	}
	if token == nil {
		return Result{EndOfPagination: true}, nil
	}
	if m.source == nil {
		return Result{}, ErrOffline
	}
	return m.fetchAndApply(ctx, feed, *token, false)
}

func (m *Mediator) fetchAndApply(ctx context.Context, feed Feed, token PageToken, refresh bool) (Result, error) {
	items, err := m.source.Fetch(ctx, feed.fetchParams(token))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return Result{}, &LoadError{Kind: classifyFetch(err), Err: err}
	}

	next := NextToken(token, len(items))
	if err := m.store.ApplyPage(context.WithoutCancel(ctx), feed.Label, items, next, refresh); err != nil {
		return Result{}, &LoadError{Kind: KindStorage, Err: err}
	}

	return Result{EndOfPagination: len(items) == 0, Fetched: len(items)}, nil
}

// classifyFetch separates remote failures from cancellation.
func classifyFetch(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnclassified
	}
	return KindTransientFetch
}
