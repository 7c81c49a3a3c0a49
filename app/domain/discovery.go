package domain

import (
	"context"
	"errors"
	"sync"
)

// Warning records a provider-scoped failure that discovery recovered from.
// The walk of that provider (or branch) stops; every other provider
// continues.
type Warning struct {
	Provider string
	Err      error
}

// Stream is the lazy output of Discover. It is pull-based: provider
// enumeration and pagination only advance as the consumer calls Next, so a
// caller that stops after N items never pays for more than roughly N items
// of enumeration work. A stream is consumed once; re-running a query means
// calling Discover again.
type Stream struct {
	out      chan RepositoryHandle
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	warnings []Warning
	err      error
}

// Discover walks each provider's hierarchy only as deep as the pattern's
// wildcards require and emits matching handles. When several providers are
// targeted the stream round-robins between them instead of draining one
// before starting the next, so a consumer with a global limit sees a
// representative mix.
func Discover(ctx context.Context, providers []RepositoryProvider, pattern Pattern) *Stream {
	s := &Stream{
		out:  make(chan RepositoryHandle),
		stop: make(chan struct{}),
	}

	// One producer per provider on an unbuffered channel keeps each
	// walk strictly demand-driven.
	chans := make([]chan RepositoryHandle, len(providers))
	for i, p := range providers {
		ch := make(chan RepositoryHandle)
		chans[i] = ch
		go s.walkProvider(ctx, p, pattern, ch)
	}
	go s.merge(ctx, pattern, chans)

	return s
}

// Next pulls the next matching handle. ok is false once the stream is
// exhausted, stopped, or ctx is done; check Err and Warnings afterwards.
func (s *Stream) Next(ctx context.Context) (RepositoryHandle, bool) {
	select {
	case h, ok := <-s.out:
		return h, ok
	case <-ctx.Done():
		return RepositoryHandle{}, false
	}
}

// Stop abandons the stream. Producers unwind without further enumeration.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Collect pulls up to limit handles (limit <= 0 means all) and stops the
// stream if the limit cut it short.
func (s *Stream) Collect(ctx context.Context, limit int) []RepositoryHandle {
	var out []RepositoryHandle
	for {
		if limit > 0 && len(out) == limit {
			s.Stop()
			return out
		}
		h, ok := s.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, h)
	}
}

// Warnings returns the provider failures recovered during the walk.
func (s *Stream) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Err is meaningful after exhaustion: a *NotFoundError when a fully
// literal pattern produced zero matches, nil otherwise.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) warn(provider string, err error) {
	s.mu.Lock()
	s.warnings = append(s.warnings, Warning{Provider: provider, Err: err})
	s.mu.Unlock()
}

// merge forwards handles from the per-provider channels in round-robin
// order until all producers are done.
func (s *Stream) merge(ctx context.Context, pattern Pattern, chans []chan RepositoryHandle) {
	defer close(s.out)

	emitted := 0
	for len(chans) > 0 {
		remaining := chans[:0]
		for _, ch := range chans {
			h, ok := <-ch
			if !ok {
				continue
			}
			remaining = append(remaining, ch)
			select {
			case s.out <- h:
				emitted++
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
		chans = remaining
	}

	if emitted == 0 && pattern.FullyLiteral() {
		s.mu.Lock()
		s.err = &NotFoundError{Resource: pattern.String()}
		s.mu.Unlock()
	}
}

func (s *Stream) walkProvider(ctx context.Context, p RepositoryProvider, pattern Pattern, out chan<- RepositoryHandle) {
	defer close(out)

	if err := p.Authenticate(ctx); err != nil {
		s.warn(p.Name(), err)
		return
	}

	orgs, err := resolveLevel(ctx, pattern.Organization(), p.Organizations)
	if err != nil {
		s.recoverBranch(p.Name(), err)
		return
	}

	for _, org := range orgs {
		if s.stopped(ctx) {
			return
		}

		var projects []string
		if !p.HasProjects() {
			// 2-level provider: the project segment is implicitly
			// satisfied and the synthetic empty project keeps the
			// triple uniform.
			projects = []string{""}
		} else {
			projects, err = resolveLevel(ctx, pattern.Project(), func(ctx context.Context) ([]string, error) {
				return p.Projects(ctx, org)
			})
			if err != nil {
				s.recoverBranch(p.Name(), err)
				continue
			}
		}

		for _, project := range projects {
			if s.stopped(ctx) {
				return
			}
			err := p.Repositories(ctx, org, project, func(h RepositoryHandle) bool {
				if !pattern.Repository().Matches(h.Name) {
					return true
				}
				select {
				case out <- h:
					return true
				case <-s.stop:
					return false
				case <-ctx.Done():
					return false
				}
			})
			if err != nil {
				s.recoverBranch(p.Name(), err)
			}
		}
	}
}

// recoverBranch records a branch failure as a warning. A NotFound from a
// directly addressed literal segment is the expected outcome when that
// provider simply does not hold the named org or project, so it is not
// worth a warning; the fully-literal zero-match case is reported by merge.
func (s *Stream) recoverBranch(provider string, err error) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return
	}
	s.warn(provider, err)
}

func (s *Stream) stopped(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// resolveLevel applies the literal-skip-or-enumerate rule for one hierarchy
// level: a literal segment is a direct address and costs no enumeration
// call; a wildcard enumerates and filters.
func resolveLevel(ctx context.Context, seg SegmentMatcher, enumerate func(context.Context) ([]string, error)) ([]string, error) {
	if seg.IsLiteral() {
		return []string{seg.Literal()}, nil
	}
	all, err := enumerate(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, v := range all {
		if seg.Matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
