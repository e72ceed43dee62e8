package requestid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-7f3a")
	assert.Equal(t, "req-7f3a", FromContext(ctx))
}

func TestWithRequestID_Overwrites(t *testing.T) {
	ctx := WithRequestID(context.Background(), "outer")
	ctx = WithRequestID(ctx, "inner")
	assert.Equal(t, "inner", FromContext(ctx))
}

func TestNew_AttachesParseableID(t *testing.T) {
	ctx, id := New(context.Background())
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_GeneratesWhenAbsent(t *testing.T) {
	first := FromContext(context.Background())
	second := FromContext(context.Background())
	assert.NotEmpty(t, first)
	// Each bare lookup mints a fresh ID rather than caching one.
	assert.NotEqual(t, first, second)
}
