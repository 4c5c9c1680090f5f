package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ieql/engine/pkg/fusion"
	"github.com/ieql/engine/pkg/ieql"
)

func mustBuildGroup(t *testing.T, queries []ieql.Query) *fusion.CompiledQueryGroup {
	t.Helper()
	compiled := make([]fusion.CompilingQuery, 0, len(queries))
	for i := range queries {
		require.NoError(t, queries[i].Validate())
		cq, err := fusion.CompileSingle(&queries[i])
		require.NoError(t, err)
		compiled = append(compiled, cq)
	}
	group, err := fusion.Build(compiled)
	require.NoError(t, err)
	return group
}

func TestDriverEmitsResponseOnMatch(t *testing.T) {
	q := ieql.Query{
		ID: "q1",
		Triggers: []ieql.Trigger{
			{ID: "A", Pattern: ieql.Pattern{Content: "hello", Kind: ieql.Literal}},
		},
		Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Raw},
		Threshold: ieql.Group([]ieql.Threshold{ieql.TriggerRef("A")}, 1, false),
		Response:  ieql.NewResponseDescriptor(ieql.Full, ieql.IncludeURL, ieql.IncludeExcerpt),
	}
	group := mustBuildGroup(t, []ieql.Query{q})
	defer group.Close()

	d := New(group, Config{WorkerCount: 1, InputQueueCapacity: 4, OutputQueueCapacity: 4, ExcerptWindowBytes: 8}, nil, zap.NewNop())
	d.Start()

	require.NoError(t, d.Submit(ieql.Document{URL: "http://example.com", Content: []byte("say hello world")}))

	select {
	case r := <-d.Results():
		require.Equal(t, "q1", r.QueryID)
		require.True(t, r.HasExcerpt())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestDriverSkipsOutOfScopeDocument(t *testing.T) {
	q := ieql.Query{
		ID: "q1",
		Triggers: []ieql.Trigger{
			{ID: "A", Pattern: ieql.Pattern{Content: "hello", Kind: ieql.Literal}},
		},
		Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: "only-this-host\\.test", Kind: ieql.Regex}, Content: ieql.Raw},
		Threshold: ieql.TriggerRef("A"),
		Response:  ieql.NewResponseDescriptor(ieql.Partial),
	}
	group := mustBuildGroup(t, []ieql.Query{q})
	defer group.Close()

	d := New(group, Config{WorkerCount: 1, InputQueueCapacity: 4, OutputQueueCapacity: 4}, nil, zap.NewNop())
	d.Start()

	require.NoError(t, d.Submit(ieql.Document{URL: "http://other-host.test", Content: []byte("say hello world")}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	select {
	case r, ok := <-d.Results():
		if ok {
			t.Fatalf("expected no responses, got %+v", r)
		}
	default:
	}
}

func TestDriverSkipsDocumentOnExtractionFailureWithoutFallback(t *testing.T) {
	q := ieql.Query{
		ID: "q1",
		Triggers: []ieql.Trigger{
			{ID: "A", Pattern: ieql.Pattern{Content: "hello", Kind: ieql.Literal}},
		},
		Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Text},
		Threshold: ieql.TriggerRef("A"),
		Response:  ieql.NewResponseDescriptor(ieql.Partial),
	}
	group := mustBuildGroup(t, []ieql.Query{q})
	defer group.Close()

	d := New(group, Config{WorkerCount: 1, InputQueueCapacity: 4, OutputQueueCapacity: 4, AllowPartialTextFallback: false}, nil, zap.NewNop())
	d.extractor = failingExtractor{}
	d.Start()

	require.NoError(t, d.Submit(ieql.Document{URL: "http://example.com", Content: []byte("say hello world")}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	select {
	case r, ok := <-d.Results():
		if ok {
			t.Fatalf("expected no responses, got %+v", r)
		}
	default:
	}
}

type failingExtractor struct{}

func (failingExtractor) Extract(content []byte) (string, bool) { return "", false }
