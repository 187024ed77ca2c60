package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "RBI/2025/January/a.pdf", ObjectPath("RBI", []string{"2025", "January"}, "/tmp/downloads/a.pdf"))
	assert.Equal(t, "2025/January/a.pdf", ObjectPath("", []string{"2025", "January"}, "a.pdf"))
	assert.Equal(t, "RBI/a.pdf", ObjectPath("/RBI/", nil, "a.pdf"))
	assert.Equal(t, "RBI/2025/a.pdf", ObjectPath("RBI", []string{"", "/2025/"}, "a.pdf"))
}
