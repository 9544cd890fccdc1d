// Package loader reads tree snapshots for the CLI and the server.
//
// A snapshot is a JSON object or YAML mapping from node key to node record:
//
//	{
//	  "root":  {"type": "Div", "children": ["title", "list"]},
//	  "title": {"type": "Text", "props": {"text": "Hello"}},
//	  "list":  {"type": "Ul"}
//	}
//
// Records may omit their key; it is taken from the entry. Numbers decode to
// int64 when they are integral and to float64 otherwise.
//
// Snapshots come from local files, standard input ("-"), or S3 objects
// ("s3://bucket/key"). With a bucket configured, a reference that is not a
// local file is looked up under the bucket and prefix.
//
// Decoding errors carry the source location of the offending entry, and
// Explain maps reconciler errors back to the entries they name.
package loader
