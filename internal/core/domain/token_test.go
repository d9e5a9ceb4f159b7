package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenRefreshThreshold(t *testing.T) {
	assert.Equal(t, 60*24*time.Hour, MaxTokenLifetime)
	assert.Equal(t, 6*24*time.Hour, TokenRefreshThreshold)
}

func TestAccount_NeedsTokenRefresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"already expired", now.Add(-time.Hour), true},
		{"two days left", now.Add(48 * time.Hour), true},
		{"just under threshold", now.Add(TokenRefreshThreshold - time.Second), true},
		{"exactly at threshold", now.Add(TokenRefreshThreshold), false},
		{"thirty days left", now.Add(30 * 24 * time.Hour), false},
		{"zero expiry", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := &Account{TokenExpiresAt: tt.expiry}
			assert.Equal(t, tt.want, acct.NeedsTokenRefresh(now))
		})
	}
}

func TestTokenGrant_Lifetime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	reported := TokenGrant{AccessToken: "t", ExpiresIn: 5183944 * time.Second}
	assert.Equal(t, 5183944*time.Second, reported.Lifetime())
	assert.Equal(t, now.Add(5183944*time.Second), reported.ExpiresAt(now))

	missing := TokenGrant{AccessToken: "t"}
	assert.Equal(t, MaxTokenLifetime, missing.Lifetime())
	assert.Equal(t, now.Add(MaxTokenLifetime), missing.ExpiresAt(now))
}

func TestAccount_DisplayNameAndWatermark(t *testing.T) {
	acct := &Account{ExternalUserID: "1784"}
	assert.Equal(t, "1784", acct.DisplayName())
	assert.False(t, acct.HasWatermark())

	ts := time.Now()
	acct.Name = "Campus Club"
	acct.LastSyncedAt = &ts
	assert.Equal(t, "Campus Club", acct.DisplayName())
	assert.True(t, acct.HasWatermark())
}

func TestMediaItem_ResolvedMediaURL(t *testing.T) {
	assert.Equal(t, "https://cdn/x.jpg", MediaItem{MediaURL: "https://cdn/x.jpg", Permalink: "https://ig/p/x"}.ResolvedMediaURL())
	assert.Equal(t, "https://ig/p/x", MediaItem{Permalink: "https://ig/p/x"}.ResolvedMediaURL())
}
