// Package httputil writes the API's response bodies. JSON replies and the
// {"error": ..., "code": ...} envelope share one encoder, and CSV downloads
// are rendered into a buffer first so a failed render still gets a JSON
// error instead of a truncated file. InternalError logs the cause and
// returns a generic message.
package httputil
