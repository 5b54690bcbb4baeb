package contentful

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

const (
	// DefaultBaseURL is the Content Delivery API host.
	DefaultBaseURL = "https://cdn.contentful.com"

	// DefaultEnvironment is used when no environment is configured.
	DefaultEnvironment = "master"

	// DefaultRatePerSecond stays well below the CDA limit of 55 requests/second.
	DefaultRatePerSecond = 10.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Sync types accepted by the sync endpoint's type parameter.
const (
	SyncTypeAll          = "all"
	SyncTypeAsset        = "Asset"
	SyncTypeEntry        = "Entry"
	SyncTypeDeletion     = "Deletion"
	SyncTypeDeletedAsset = "DeletedAsset"
	SyncTypeDeletedEntry = "DeletedEntry"
)

var validSyncTypes = map[string]bool{
	SyncTypeAll:          true,
	SyncTypeAsset:        true,
	SyncTypeEntry:        true,
	SyncTypeDeletion:     true,
	SyncTypeDeletedAsset: true,
	SyncTypeDeletedEntry: true,
}

// Config holds connector settings.
type Config struct {
	// SpaceID is the Contentful space.
	SpaceID string

	// Environment defaults to "master".
	Environment string

	// AccessToken is a Content Delivery API token.
	AccessToken string

	// BaseURL defaults to DefaultBaseURL. Tests point it at a local server.
	BaseURL string

	// SyncType restricts an initial sync to one item type.
	SyncType string

	// ContentType restricts an initial sync to one content model.
	// Requires SyncType Entry, which is implied when SyncType is empty.
	ContentType string

	// Locale, when set, replaces each locale-keyed field with its value
	// in that locale.
	Locale string

	// RatePerSecond throttles requests. Zero selects DefaultRatePerSecond.
	RatePerSecond float64

	// Timeout bounds each HTTP request. Zero selects DefaultTimeout.
	Timeout time.Duration
}

// withDefaults returns a copy with empty settings filled in.
func (c Config) withDefaults() Config {
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ContentType != "" && c.SyncType == "" {
		c.SyncType = SyncTypeEntry
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = DefaultRatePerSecond
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate checks required settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SpaceID) == "" {
		return fmt.Errorf("%w: contentful space id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: contentful access token is required", domain.ErrInvalidInput)
	}
	if c.SyncType != "" && !validSyncTypes[c.SyncType] {
		return fmt.Errorf("%w: contentful sync type %q", domain.ErrInvalidInput, c.SyncType)
	}
	if c.ContentType != "" && c.SyncType != "" && c.SyncType != SyncTypeEntry {
		return fmt.Errorf("%w: content type filter requires sync type %s", domain.ErrInvalidInput, SyncTypeEntry)
	}
	return nil
}
