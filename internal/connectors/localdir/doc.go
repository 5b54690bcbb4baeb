// Package localdir provides a content source backed by a directory of JSON
// files, one item per file.
//
// The fetcher diffs the directory against a cursor of content hashes, so it
// behaves like a sync API: an empty token returns every item, and a token
// returns only what changed since it was issued. The watcher turns file
// system events into trigger events.
package localdir
