// Package format provides alternative snapshot codecs for file backends:
// JSON with comment-tolerant decoding, YAML, and a compact checksummed
// binary layout. The textual default lives in the root package; these are
// drop-ins via WithCodec.
package format
