package ctxutil

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "ops@example.com")
	assert.Equal(t, "ops@example.com", ActorFromContext(ctx, "fallback"))
}

func TestActorFallback(t *testing.T) {
	assert.Equal(t, "AI_JUDGE", ActorFromContext(context.Background(), "AI_JUDGE"))
	assert.Equal(t, "mcp", ActorFromContext(WithActor(context.Background(), ""), "mcp"))
	long := strings.Repeat("a", MaxActorLen+1)
	assert.Equal(t, "mcp", ActorFromContext(WithActor(context.Background(), long), "mcp"))
}
