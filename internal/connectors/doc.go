// Package connectors groups the content sources indexsync can sync from.
// Each subpackage implements driven.ChangeFetcher for one source type
// (contentful, localdir).
//
// The CLI picks one at startup from the [source] section of the config.
package connectors
