package searchsync

import "context"

// Options are call-scoped update options. They travel on the context,
// so overrides apply to one execution path only and can never leak
// between concurrent goroutines; the previous values are restored
// simply by returning to the parent context.
type Options struct {
	// Async routes updates through the queue instead of running them
	// inline. Default true.
	Async bool

	// Disabled suppresses all index updates. Default false.
	Disabled bool

	// Percolate reserves notification-on-match semantics. Recognized
	// and carried through, not acted on yet. Default true.
	Percolate bool
}

// DefaultOptions returns the process-wide defaults.
func DefaultOptions() Options {
	return Options{Async: true, Disabled: false, Percolate: true}
}

// Option overrides a single named option within one scope.
type Option func(*Options)

// Async overrides the async option.
func Async(v bool) Option { return func(o *Options) { o.Async = v } }

// Disabled overrides the disabled option.
func Disabled(v bool) Option { return func(o *Options) { o.Disabled = v } }

// Percolate overrides the percolate option.
func Percolate(v bool) Option { return func(o *Options) { o.Percolate = v } }

type optionsKey struct{}

// WithOptions derives a context whose options are the current ones
// with the given overrides applied. Use it to scope behavior:
//
//	ctx = searchsync.WithOptions(ctx, searchsync.Async(false))
//	router.EntitySaved(ctx, post) // runs inline
func WithOptions(ctx context.Context, overrides ...Option) context.Context {
	opts := OptionsFrom(ctx)
	for _, apply := range overrides {
		apply(&opts)
	}
	return context.WithValue(ctx, optionsKey{}, opts)
}

// OptionsFrom returns the options in effect for this context, falling
// back to DefaultOptions when none were set.
func OptionsFrom(ctx context.Context) Options {
	if opts, ok := ctx.Value(optionsKey{}).(Options); ok {
		return opts
	}
	return DefaultOptions()
}

// unitOfWork collapses repeated dispatches for the same identifier
// within one transactional scope. The producing side derives a context
// per transaction; the first dispatch for each key wins and the rest
// are dropped, so rapid repeated saves of one entity become a single
// queued update.
type unitOfWork struct {
	seen map[string]struct{}
}

type unitOfWorkKey struct{}

// WithUnitOfWork derives a context that deduplicates index dispatches
// per identifier until the context is discarded. Intended to span one
// database transaction on the producing side.
//
// The returned context must not be shared between goroutines; like the
// transaction it models, a unit of work is single-threaded.
func WithUnitOfWork(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitOfWorkKey{}, &unitOfWork{seen: make(map[string]struct{})})
}

// firstDispatch reports whether this is the first dispatch for key in
// the current unit of work. Without a unit of work every dispatch is
// a first dispatch.
func firstDispatch(ctx context.Context, key string) bool {
	uow, ok := ctx.Value(unitOfWorkKey{}).(*unitOfWork)
	if !ok {
		return true
	}
	if _, dup := uow.seen[key]; dup {
		return false
	}
	uow.seen[key] = struct{}{}
	return true
}
