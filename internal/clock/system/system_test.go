package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	require.NotNil(t, clk)

	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.After(before) && got.Before(after), "expected %v between %v and %v", got, before, after)
}

func TestClockNowIn(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*60*60+30*60)
	got := NewIn(ist).Now()
	assert.Equal(t, ist, got.Location())

	assert.Equal(t, time.UTC, NewIn(nil).Now().Location())
}

func TestFixed(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	clk := Fixed{At: at}
	assert.Equal(t, at, clk.Now())
	assert.Equal(t, clk.Now(), clk.Now())
}
