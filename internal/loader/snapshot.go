package loader

import (
	stderrors "errors"

	"github.com/vango-dev/treediff/internal/errors"
	"github.com/vango-dev/treediff/pkg/vdom"
)

type position struct {
	line, col int
}

// Snapshot is a decoded tree together with its source, kept for diagnostics.
type Snapshot struct {
	Name   string
	Format Format
	Source []byte
	Tree   vdom.Tree

	positions map[string]position
}

// Locate returns the line and column of the entry stored under key.
func (s *Snapshot) Locate(key string) (line, col int, ok bool) {
	if s == nil {
		return 0, 0, false
	}
	p, ok := s.positions[key]
	return p.line, p.col, ok
}

// Annotate points e at the entry for key, when the snapshot has one.
func (s *Snapshot) Annotate(e *errors.Error, key string) *errors.Error {
	if line, col, ok := s.Locate(key); ok {
		e.WithSource(s.Name, s.Source, line, col)
	}
	return e
}

// Explain converts a reconciliation error into a diagnostic and, for
// snapshot errors, points it at the offending entry of prev or next.
func Explain(err error, prev, next *Snapshot) *errors.Error {
	e := errors.FromReconcile(err)
	if e == nil || e.Location != nil {
		return e
	}

	pick := func(side vdom.Side) *Snapshot {
		switch side {
		case vdom.SideOld:
			return prev
		case vdom.SideNew:
			return next
		}
		return nil
	}

	var me *vdom.MalformedTreeError
	if stderrors.As(err, &me) {
		key := me.Key
		if me.Parent != "" {
			key = me.Parent
		}
		return pick(me.Side).Annotate(e, key)
	}

	var de *vdom.DuplicateKeyError
	if stderrors.As(err, &de) {
		return pick(de.Side).Annotate(e, de.Parent)
	}
	return e
}
