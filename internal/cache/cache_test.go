package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightloop/campaign-insights/internal/directive"
)

func newTestCache(t *testing.T) (*DirectiveCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0, 5*time.Minute)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func sampleDirective() directive.Directive {
	d := directive.Directive{SegmentID: 7}
	d.DeliverySettings.Channel = "push_notification"
	d.DeliverySettings.SendTimingDays = 10
	d.AudienceProfile.PrimaryValueDriver = "premium quality and reliability"
	return d
}

func TestGetMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)
	d, err := c.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 7, sampleDirective()))

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 7, got.SegmentID)
	assert.Equal(t, "push_notification", got.DeliverySettings.Channel)
	assert.Equal(t, 10, got.DeliverySettings.SendTimingDays)
}

func TestEntryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 7, sampleDirective()))
	mr.FastForward(6 * time.Minute)

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, 7, sampleDirective()))
	require.NoError(t, c.Invalidate(ctx, 7))

	got, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}
