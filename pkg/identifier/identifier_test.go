package identifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PrefixEncodesKind(t *testing.T) {
	cases := map[Kind]string{
		KindExperiment: "e_",
		KindVariant:    "v_",
		KindAgent:      "a_",
		KindCodeAgent:  "ca_",
	}
	for kind, prefix := range cases {
		id := New(kind)
		assert.True(t, strings.HasPrefix(id, prefix), "id %s should start with %s", id, prefix)

		got, ok := KindOf(id)
		require.True(t, ok, "generated id should be well formed: %s", id)
		assert.Equal(t, kind, got)
	}
}

func TestNew_NoCollisions(t *testing.T) {
	seen := make(map[string]struct{}, 40000)
	for i := 0; i < 10000; i++ {
		for _, kind := range []Kind{KindExperiment, KindVariant, KindAgent, KindCodeAgent} {
			id := New(kind)
			_, dup := seen[id]
			require.False(t, dup, "duplicate id generated: %s", id)
			seen[id] = struct{}{}
		}
	}
}

func TestKindOf_RejectsMalformed(t *testing.T) {
	for _, id := range []string{
		"",
		"e",
		"e_",
		"x_01HQ5W1JYFYZV0ABCDEF012345",
		"e-01HQ5W1JYFYZV0ABCDEF012345",
		"e_not-a-ulid",
	} {
		_, ok := KindOf(id)
		assert.False(t, ok, "expected %q to be rejected", id)
	}
}

func TestIs_DistinguishesAgentFromCodeAgent(t *testing.T) {
	agentID := New(KindAgent)
	codeAgentID := New(KindCodeAgent)

	assert.True(t, Is(agentID, KindAgent))
	assert.False(t, Is(agentID, KindCodeAgent))
	assert.True(t, Is(codeAgentID, KindCodeAgent))
	assert.False(t, Is(codeAgentID, KindAgent))
}
