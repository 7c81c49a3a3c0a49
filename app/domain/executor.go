package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// UpdateMode decides what Clone does when the destination already exists.
type UpdateMode string

const (
	UpdateSkip  UpdateMode = "skip"
	UpdatePull  UpdateMode = "pull"
	UpdateForce UpdateMode = "force"
)

// ParseUpdateMode validates an operator-supplied update mode.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(s) {
	case UpdateSkip, UpdatePull, UpdateForce:
		return UpdateMode(s), nil
	}
	return "", validationErrorf("unknown update mode %q (want skip, pull or force)", s)
}

type opKind int

const (
	opClone opKind = iota
	opPull
	opStatus
)

// Operation is the per-repository unit of work a batch applies: clone into
// a destination tree, pull existing checkouts, or a read-only status check.
type Operation struct {
	kind        opKind
	destRoot    string
	updateMode  UpdateMode
	checkRemote bool
}

func CloneOp(destRoot string, mode UpdateMode) Operation {
	return Operation{kind: opClone, destRoot: destRoot, updateMode: mode}
}

func PullOp(destRoot string) Operation {
	return Operation{kind: opPull, destRoot: destRoot}
}

func StatusOp(destRoot string, checkRemote bool) Operation {
	return Operation{kind: opStatus, destRoot: destRoot, checkRemote: checkRemote}
}

func (o Operation) Name() string {
	switch o.kind {
	case opClone:
		return "clone"
	case opPull:
		return "pull"
	default:
		return "status"
	}
}

// Dest is the checkout path for h: destRoot/org[/project]/repo.
func (o Operation) Dest(h RepositoryHandle) string {
	return filepath.Join(o.destRoot, filepath.FromSlash(h.Slug()))
}

// HandleSource feeds handles to the executor. *Stream implements it; a
// pre-materialized list can be wrapped with SliceSource.
type HandleSource interface {
	Next(ctx context.Context) (RepositoryHandle, bool)
}

// SliceSource adapts a materialized handle list to HandleSource.
func SliceSource(handles []RepositoryHandle) HandleSource {
	return &sliceSource{handles: handles}
}

type sliceSource struct {
	handles []RepositoryHandle
	i       int
}

func (s *sliceSource) Next(context.Context) (RepositoryHandle, bool) {
	if s.i >= len(s.handles) {
		return RepositoryHandle{}, false
	}
	h := s.handles[s.i]
	s.i++
	return h, true
}

// Executor fans a batch out to at most `concurrency` in-flight units. One
// OperationResult is emitted per handle consumed; a unit's failure never
// aborts the batch.
type Executor struct {
	Registry *Registry
	Git      GitExecutor
	// Mask scrubs credentials out of any detail derived from an
	// authenticated URL. Optional; identity when nil.
	Mask func(string) string
	// Progress, when set, is invoked once per completed result so an
	// external renderer can show live progress.
	Progress func(OperationResult)
}

// Run consumes src until exhaustion or until ctx is cancelled. On
// cancellation no new units are admitted; in-flight units finish naturally
// so no partial clones are left behind, and the report covers everything
// that completed. Handles already pulled when the signal arrives are
// accounted as Skipped.
func (e *Executor) Run(ctx context.Context, src HandleSource, op Operation, concurrency int) *BatchReport {
	if concurrency < 1 {
		concurrency = 1
	}

	report := NewBatchReport()

	// The group limit is the admission gate: Go blocks while
	// `concurrency` units are in flight, which also throttles how fast
	// we pull from a lazy source.
	var g errgroup.Group
	g.SetLimit(concurrency)

	for ctx.Err() == nil {
		h, ok := src.Next(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			var res OperationResult
			if ctx.Err() != nil {
				res = OperationResult{Handle: h, Status: StatusSkipped, Detail: "batch cancelled"}
			} else {
				// The unit itself runs on an uncancellable
				// context: in-flight git work is allowed to
				// finish rather than being killed mid-clone.
				res = e.runUnit(context.WithoutCancel(ctx), h, op)
			}
			report.add(res)
			if e.Progress != nil {
				e.Progress(res)
			}
			return nil
		})
	}

	_ = g.Wait()
	return report
}

func (e *Executor) runUnit(ctx context.Context, h RepositoryHandle, op Operation) OperationResult {
	start := time.Now()

	res, err := e.apply(ctx, h, op)
	res.Handle = h
	if err != nil {
		res.Status = StatusFailed
		res.Detail = e.mask(err.Error())
	}
	res.Duration = time.Since(start)
	return res
}

func (e *Executor) apply(ctx context.Context, h RepositoryHandle, op Operation) (OperationResult, error) {
	if h.IsDisabled {
		return OperationResult{Status: StatusSkipped, Detail: "repository disabled"}, nil
	}

	switch op.kind {
	case opClone:
		return e.clone(ctx, h, op)
	case opPull:
		return e.pull(ctx, h, op)
	default:
		return e.status(ctx, h, op)
	}
}

func (e *Executor) clone(ctx context.Context, h RepositoryHandle, op Operation) (OperationResult, error) {
	dest := op.Dest(h)

	if _, statErr := os.Stat(dest); statErr == nil {
		switch op.updateMode {
		case UpdateSkip:
			return OperationResult{Status: StatusSkipped, Detail: "destination exists"}, nil
		case UpdatePull:
			return e.pull(ctx, h, op)
		case UpdateForce:
			if err := os.RemoveAll(dest); err != nil {
				return OperationResult{}, fmt.Errorf("remove existing checkout: %w", err)
			}
		}
	}

	url, err := e.cloneURL(h)
	if err != nil {
		return OperationResult{}, err
	}
	if err := e.Git.Clone(ctx, url, dest); err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Status: StatusSuccess, Detail: "cloned"}, nil
}

func (e *Executor) pull(ctx context.Context, h RepositoryHandle, op Operation) (OperationResult, error) {
	dest := op.Dest(h)

	if !e.Git.IsValidCheckout(dest) {
		// Never attempt a destructive recovery on a path we do not
		// recognize as a checkout.
		return OperationResult{}, fmt.Errorf("%s is not a git checkout", dest)
	}
	if err := e.Git.Pull(ctx, dest); err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Status: StatusSuccess, Detail: "pulled"}, nil
}

func (e *Executor) status(ctx context.Context, h RepositoryHandle, op Operation) (OperationResult, error) {
	dest := op.Dest(h)

	if !e.Git.IsValidCheckout(dest) {
		return OperationResult{}, fmt.Errorf("%s is not a git checkout", dest)
	}
	summary, err := e.Git.Status(ctx, dest, op.checkRemote)
	if err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Status: StatusSuccess, Detail: summary}, nil
}

// cloneURL is the one place authenticated URLs are produced in the
// executor; anything derived from the result goes through Mask.
func (e *Executor) cloneURL(h RepositoryHandle) (string, error) {
	p, ok := e.Registry.Provider(h.ProviderName)
	if !ok {
		return "", fmt.Errorf("unknown provider %q", h.ProviderName)
	}
	return p.AuthenticatedCloneURL(h)
}

func (e *Executor) mask(s string) string {
	if e.Mask == nil {
		return s
	}
	return e.Mask(s)
}
