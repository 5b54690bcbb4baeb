// Package contentful fetches change sets from the Contentful Content
// Delivery API sync endpoint.
//
// The first request asks for an initial sync; every response carries a
// sync token embedded in nextPageUrl (more pages follow) or nextSyncUrl
// (caught up). That token is the continuation token persisted by the
// orchestrator. Entries and assets become upserts; DeletedEntry and
// DeletedAsset items become deletions.
//
// Requests authenticate with a bearer token through golang.org/x/oauth2 and
// are throttled with golang.org/x/time/rate. Server-side 429 responses are
// reported as transient errors carrying the X-Contentful-RateLimit-Reset hint.
package contentful
