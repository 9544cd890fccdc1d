// Package errors provides structured, actionable error messages for treediff.
//
// Every error carries a registered code, a category, a plain-language message
// and, where one can be given, a hint on how to fix the input. Errors that
// point into a snapshot also carry the file location and the lines around it.
//
// # Error Categories
//
//   - snapshot: the input trees cannot be read or are not well-formed
//   - reconcile: reconciliation failed for another reason
//   - protocol: patches could not be encoded for the wire
//   - config: treediff.json is invalid
//   - cli, server: command and server failures
//
// # Error Codes
//
// Each code (e.g. "E201") maps to a template holding the message and a
// longer explanation. GetAllCodes lists them.
//
// # Usage
//
//	err := errors.New(errors.CodeDanglingChild).
//	    WithLocation("snapshots/next.json", 12, 19).
//	    WithSuggestion(`Add a "footer" node or remove it from the children of "root".`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E201: Child references unknown key
//	//
//	//   snapshots/next.json:12:19
//	//
//	//     10 │   "root": {
//	//     11 │     "type": "Div",
//	//   → 12 │     "children": ["header", "footer"]
//	//        │                   ^
//	//
//	//   A children list names a key that has no node in the same snapshot.
//	//
//	//   Hint: Add a "footer" node or remove it from the children of "root".
//
// Errors returned by the reconciler are converted with FromReconcile, which
// picks the code from the error kind.
package errors
