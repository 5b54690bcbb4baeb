package contentful

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{SpaceID: "s", AccessToken: "t", BaseURL: "http://localhost:9000/", ContentType: "post"}.withDefaults()

	assert.Equal(t, DefaultEnvironment, cfg.Environment)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, SyncTypeEntry, cfg.SyncType, "content type filter implies entries")
	assert.Equal(t, DefaultRatePerSecond, cfg.RatePerSecond)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)

	cfg = Config{}.withDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Empty(t, cfg.SyncType)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "minimal", cfg: Config{SpaceID: "s", AccessToken: "t"}},
		{name: "all types", cfg: Config{SpaceID: "s", AccessToken: "t", SyncType: SyncTypeAll}},
		{name: "entries of one model", cfg: Config{SpaceID: "s", AccessToken: "t", SyncType: SyncTypeEntry, ContentType: "post"}},
		{name: "missing space", cfg: Config{AccessToken: "t"}, wantErr: true},
		{name: "blank token", cfg: Config{SpaceID: "s", AccessToken: "  "}, wantErr: true},
		{name: "unknown type", cfg: Config{SpaceID: "s", AccessToken: "t", SyncType: "entry"}, wantErr: true},
		{name: "content type with deletions", cfg: Config{SpaceID: "s", AccessToken: "t", SyncType: SyncTypeDeletion, ContentType: "post"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
