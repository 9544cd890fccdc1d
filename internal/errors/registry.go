package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Registered error codes.
const (
	CodeRootMissing    = "E200"
	CodeDanglingChild  = "E201"
	CodeSharedChild    = "E202"
	CodeKeyMismatch    = "E203"
	CodeDuplicateKey   = "E204"
	CodeSnapshotSyntax = "E205"
	CodeInvalidNode    = "E206"
	CodeSourceNotFound = "E207"
	CodeSourceFormat   = "E208"
	CodeSourceFetch    = "E209"
	CodeReconcile      = "E210"

	CodeEncode        = "E220"
	CodeFrameTooLarge = "E221"

	CodeInvalidConfig   = "E120"
	CodeMissingConfig   = "E121"
	CodeInvalidPort     = "E122"
	CodeInvalidDiffOpts = "E123"
	CodeInvalidLogLevel = "E124"

	CodeUsage       = "E140"
	CodeWatchFailed = "E141"
	CodeServeFailed = "E142"
	CodeBadRequest  = "E143"
	CodeTooLarge    = "E144"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Snapshot and reconciliation errors (E200-E219)
	// ============================================

	CodeRootMissing: {
		Category: CategorySnapshot,
		Message:  "Root key missing",
		Detail:   "Every snapshot must contain the node reconciliation starts from. Two empty snapshots are the only exception.",
	},
	CodeDanglingChild: {
		Category: CategorySnapshot,
		Message:  "Child references unknown key",
		Detail:   "A children list names a key that has no node in the same snapshot.",
	},
	CodeSharedChild: {
		Category: CategorySnapshot,
		Message:  "Key reachable through more than one parent",
		Detail:   "The nodes reachable from the root must form a tree. A key listed under two parents, or a cycle back to an ancestor, is rejected.",
	},
	CodeKeyMismatch: {
		Category: CategorySnapshot,
		Message:  "Record key does not match its entry",
		Detail:   "A node's key field must equal the key it is stored under, or be left empty.",
	},
	CodeDuplicateKey: {
		Category: CategorySnapshot,
		Message:  "Duplicate key in children list",
		Detail:   "Sibling keys identify nodes across snapshots, so a children list may name each key only once.",
	},
	CodeSnapshotSyntax: {
		Category: CategorySnapshot,
		Message:  "Snapshot could not be decoded",
		Detail:   "The snapshot is not valid JSON or YAML, or does not have the shape of a key to node mapping.",
	},
	CodeInvalidNode: {
		Category: CategorySnapshot,
		Message:  "Invalid node record",
		Detail:   "Every node needs a non-empty type.",
	},
	CodeSourceNotFound: {
		Category: CategorySnapshot,
		Message:  "Snapshot source not found",
	},
	CodeSourceFormat: {
		Category: CategorySnapshot,
		Message:  "Unsupported snapshot format",
		Detail:   "Snapshots are read as JSON (.json) or YAML (.yaml, .yml).",
	},
	CodeSourceFetch: {
		Category: CategorySnapshot,
		Message:  "Snapshot could not be fetched",
		Detail:   "Reading the snapshot from object storage failed.",
	},
	CodeReconcile: {
		Category: CategoryReconcile,
		Message:  "Reconciliation failed",
	},

	// ============================================
	// Protocol errors (E220-E229)
	// ============================================

	CodeEncode: {
		Category: CategoryProtocol,
		Message:  "Patch encoding failed",
		Detail:   "A prop value has a type the wire format cannot carry, or nests too deeply.",
	},
	CodeFrameTooLarge: {
		Category: CategoryProtocol,
		Message:  "Patch too large for a frame",
		Detail:   "A single patch encodes to more than 65535 bytes.",
	},

	// ============================================
	// Configuration errors (E120-E139)
	// ============================================

	CodeInvalidConfig: {
		Category: CategoryConfig,
		Message:  "Invalid treediff.json",
		Detail:   "The treediff.json configuration file is malformed.",
	},
	CodeMissingConfig: {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
		Detail:   "A required configuration value is not set.",
	},
	CodeInvalidPort: {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured port must be between 1 and 65535.",
	},
	CodeInvalidDiffOpts: {
		Category: CategoryConfig,
		Message:  "Invalid diff options",
		Detail:   "parallelDepth and workers must not be negative.",
	},
	CodeInvalidLogLevel: {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "Use one of debug, info, warn or error.",
	},

	// ============================================
	// CLI errors (E140-E159)
	// ============================================

	CodeUsage: {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	CodeWatchFailed: {
		Category: CategoryCLI,
		Message:  "Watching snapshots failed",
		Detail:   "The file watcher could not be created or stopped unexpectedly.",
	},
	CodeServeFailed: {
		Category: CategoryServer,
		Message:  "Server failed",
		Detail:   "The HTTP server could not start or stopped with an error.",
	},
	CodeBadRequest: {
		Category: CategoryServer,
		Message:  "Invalid request",
		Detail:   `A reconcile request is a JSON object {"old": snapshot, "new": snapshot, "root": key}.`,
	},
	CodeTooLarge: {
		Category: CategoryServer,
		Message:  "Request too large",
		Detail:   "The request body exceeds server.maxBodyBytes.",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
