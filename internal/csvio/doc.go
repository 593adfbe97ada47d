// Package csvio reads reservation CSV exports of unknown Japanese encodings
// and writes the canonical merged output table.
//
// Source files come from assorted Windows export tools, so reading tries an
// ordered list of encodings and accepts the first clean decode. Each attempt
// is all-or-nothing: a candidate that would need replacement characters is
// rejected rather than partially decoded. The canonical output is always
// UTF-8 with a byte-order mark, written to a temporary file and renamed into
// place so readers never observe a half-written table.
package csvio
