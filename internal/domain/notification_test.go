package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Notification{}).Expired(now), "no expiry never expires")
	assert.True(t, (&Notification{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&Notification{ExpiresAt: &future}).Expired(now))
	// Exactly at the boundary counts as expired.
	assert.True(t, (&Notification{ExpiresAt: &now}).Expired(now))
}
