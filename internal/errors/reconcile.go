package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/treediff/pkg/protocol"
	"github.com/vango-dev/treediff/pkg/vdom"
)

// FromReconcile turns an error from vdom or protocol into a registered Error
// with a hint naming the offending keys. Errors already of type *Error are
// returned as is.
func FromReconcile(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e
	}

	var me *vdom.MalformedTreeError
	if stderrors.As(err, &me) {
		return fromMalformed(me).Wrap(err)
	}

	var de *vdom.DuplicateKeyError
	if stderrors.As(err, &de) {
		return New(CodeDuplicateKey).Wrap(err).
			WithSuggestion(fmt.Sprintf("Remove the repeated %q from the children of %q in the %s snapshot (positions %d and %d).",
				de.Key, de.Parent, sideName(de.Side), de.First, de.Second))
	}

	switch {
	case stderrors.Is(err, protocol.ErrFrameTooLarge):
		return New(CodeFrameTooLarge).Wrap(err).
			WithSuggestion("Use --json output, or split large text props into child nodes.")
	case stderrors.Is(err, protocol.ErrUnsupportedValue), stderrors.Is(err, protocol.ErrMaxDepthExceeded):
		return New(CodeEncode).Wrap(err)
	}

	return New(CodeReconcile).Wrap(err)
}

func fromMalformed(me *vdom.MalformedTreeError) *Error {
	side := sideName(me.Side)
	switch me.Kind {
	case vdom.MalformedRootMissing:
		return New(CodeRootMissing).
			WithSuggestion(fmt.Sprintf("Add a %q node to the %s snapshot, or choose another root with --root.", me.Key, side)).
			WithExample(`{"` + me.Key + `": {"key": "` + me.Key + `", "type": "Div", "children": []}}`)
	case vdom.MalformedDanglingChild:
		return New(CodeDanglingChild).
			WithSuggestion(fmt.Sprintf("Add a %q node to the %s snapshot or remove it from the children of %q.", me.Key, side, me.Parent))
	case vdom.MalformedSharedChild:
		return New(CodeSharedChild).
			WithSuggestion(fmt.Sprintf("%q is listed again under %q; give each occurrence its own key.", me.Key, me.Parent))
	case vdom.MalformedKeyMismatch:
		return New(CodeKeyMismatch).
			WithSuggestion(fmt.Sprintf("Make the key field of entry %q match, or leave it empty.", me.Key))
	default:
		return New(CodeReconcile)
	}
}

func sideName(s vdom.Side) string {
	if s == "" {
		return "given"
	}
	return string(s)
}
