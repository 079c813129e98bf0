package upload

import (
	"context"
	"errors"
	"log/slog"
)

// Batch is the result of processing one request body.
type Batch struct {
	// Outcomes holds one entry per decoded record, in body order.
	Outcomes []Outcome

	// Err is non-nil when scanning stopped at a malformed record. Records
	// before it have been relocated; nothing after it was looked at.
	Err error

	// Cursor is the body offset where scanning stopped.
	Cursor int
}

// Moved returns the number of relocated records.
func (b *Batch) Moved() int { return b.count(KindMoved) }

// Skipped returns the number of records there was nothing to do for.
func (b *Batch) Skipped() int { return b.count(KindSkipped) }

// Failed returns the number of records whose move failed.
func (b *Batch) Failed() int { return b.count(KindFailed) }

// OK reports whether the body was fully scanned and no move failed.
func (b *Batch) OK() bool {
	return b.Err == nil && b.Failed() == 0
}

// Partial reports whether the body was fully scanned but some moves failed.
func (b *Batch) Partial() bool {
	return b.Err == nil && b.Failed() > 0
}

// Malformed returns the scan error that ended the batch, if any.
func (b *Batch) Malformed() *MalformedError {
	var me *MalformedError
	if errors.As(b.Err, &me) {
		return me
	}
	return nil
}

func (b *Batch) count(k Kind) int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Middleware wraps the processing of a batch.
type Middleware interface {
	// Handle processes the batch for body. It must call next exactly once
	// and return its batch, possibly after observing it.
	Handle(ctx context.Context, body []byte, next func(context.Context) *Batch) *Batch
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, body []byte, next func(context.Context) *Batch) *Batch

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, body []byte, next func(context.Context) *Batch) *Batch {
	return f(ctx, body, next)
}

// Processor scans request bodies and relocates every upload they describe.
//
// A Processor keeps no per-body state: the body and its cursor live only for
// the duration of Process, so one Processor may serve concurrent requests.
type Processor struct {
	relocator  Relocator
	layout     Layout
	logger     *slog.Logger
	middleware []Middleware
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLayout sets the body layout. Default: DefaultLayout.
func WithLayout(l Layout) ProcessorOption {
	return func(p *Processor) {
		p.layout = l
	}
}

// WithLogger sets the logger outcomes are reported to. Default: slog.Default().
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMiddleware appends middleware. The first one added is the outermost.
func WithMiddleware(mw ...Middleware) ProcessorOption {
	return func(p *Processor) {
		p.middleware = append(p.middleware, mw...)
	}
}

// NewProcessor creates a Processor relocating through r.
func NewProcessor(r Relocator, opts ...ProcessorOption) *Processor {
	p := &Processor{
		relocator: r,
		layout:    DefaultLayout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Layout returns the layout bodies are scanned with.
func (p *Processor) Layout() Layout {
	return p.layout
}

// Process scans body and relocates each record it finds, in order.
//
// A malformed record ends the batch; relocation failures do not. The
// returned Batch is never nil.
func (p *Processor) Process(ctx context.Context, body []byte) *Batch {
	next := func(ctx context.Context) *Batch {
		return p.process(ctx, body)
	}
	for i := len(p.middleware) - 1; i >= 0; i-- {
		mw, inner := p.middleware[i], next
		next = func(ctx context.Context) *Batch {
			return mw.Handle(ctx, body, inner)
		}
	}
	return next(ctx)
}

func (p *Processor) process(ctx context.Context, body []byte) *Batch {
	batch := &Batch{Outcomes: []Outcome{}}
	cursor := 0
	for {
		rec, next, err := p.layout.ScanNext(body, cursor)
		if errors.Is(err, ErrEndOfBuffer) {
			break
		}
		if err != nil {
			batch.Err = err
			p.logMalformed(err)
			break
		}

		outcome := p.relocator.Relocate(ctx, rec)
		p.logOutcome(outcome)
		batch.Outcomes = append(batch.Outcomes, outcome)
		cursor = next
	}
	batch.Cursor = cursor
	return batch
}

func (p *Processor) logOutcome(o Outcome) {
	switch o.Kind {
	case KindMoved:
		p.logger.Info("upload relocated", "name", o.Name, "from", o.From, "to", o.To, "size", o.Size)
	case KindSkipped:
		p.logger.Warn("upload skipped", "name", o.Name, "reason", o.Reason)
	case KindFailed:
		p.logger.Error("failed to relocate upload", "name", o.Name, "reason", o.Reason)
	}
}

func (p *Processor) logMalformed(err error) {
	var me *MalformedError
	if errors.As(err, &me) {
		p.logger.Error("malformed upload body", "field", me.Field.String(), "offset", me.Offset, "reason", me.Reason)
		return
	}
	p.logger.Error("malformed upload body", "error", err)
}
