package scan_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ieql/engine/internal/scan"
	"github.com/ieql/engine/pkg/fusion"
	"github.com/ieql/engine/pkg/ieql"
)

func buildGroup(queries ...ieql.Query) *fusion.CompiledQueryGroup {
	compiled := make([]fusion.CompilingQuery, 0, len(queries))
	for i := range queries {
		Expect(queries[i].Validate()).To(Succeed())
		cq, err := fusion.CompileSingle(&queries[i])
		Expect(err).NotTo(HaveOccurred())
		compiled = append(compiled, cq)
	}
	group, err := fusion.Build(compiled)
	Expect(err).NotTo(HaveOccurred())
	return group
}

func newDriver(group *fusion.CompiledQueryGroup, workerCount int) *scan.Driver {
	d := scan.New(group, scan.Config{
		WorkerCount:         workerCount,
		InputQueueCapacity:  16,
		OutputQueueCapacity: 16,
		ExcerptWindowBytes:  16,
	}, nil, zap.NewNop())
	d.Start()
	return d
}

func drainResponses(d *scan.Driver, expected int) []ieql.Response {
	var got []ieql.Response
	for i := 0; i < expected; i++ {
		select {
		case r := <-d.Results():
			got = append(got, r)
		case <-time.After(2 * time.Second):
			Fail("timed out waiting for response")
		}
	}
	return got
}

func shutdown(d *scan.Driver) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	Expect(d.Shutdown(ctx)).To(Succeed())
}

func triggerRef(id, content string) ieql.Trigger {
	return ieql.Trigger{ID: id, Pattern: ieql.Pattern{Content: content, Kind: ieql.Literal}}
}

var textScope = ieql.Scope{Pattern: ieql.Pattern{Content: ".+", Kind: ieql.Regex}, Content: ieql.Text}

var _ = Describe("Scanner driver", func() {
	Describe("simple OR threshold", func() {
		It("matches on a single fired trigger and reports the correct witness", func() {
			q := ieql.Query{
				ID:        "s1",
				Triggers:  []ieql.Trigger{triggerRef("A", "hello"), triggerRef("B", "world")},
				Scope:     textScope,
				Threshold: ieql.Group([]ieql.Threshold{ieql.TriggerRef("A"), ieql.TriggerRef("B")}, 1, false),
				Response:  ieql.NewResponseDescriptor(ieql.Full, ieql.IncludeExcerpt),
			}
			group := buildGroup(q)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<html><body>say hello</body></html>")})).To(Succeed())

			responses := drainResponses(d, 1)
			Expect(responses[0].QueryID).To(Equal("s1"))
			Expect(responses[0].Excerpt).To(ContainSubstring("hello"))
		})
	})

	Describe("nested threshold", func() {
		query := func() ieql.Query {
			return ieql.Query{
				ID: "s2",
				Triggers: []ieql.Trigger{
					triggerRef("A", "hello"),
					triggerRef("B", "everyone"),
					triggerRef("C", "around"),
				},
				Scope: textScope,
				Threshold: ieql.Group([]ieql.Threshold{
					ieql.TriggerRef("A"),
					ieql.Group([]ieql.Threshold{ieql.TriggerRef("B"), ieql.TriggerRef("C")}, 2, false),
				}, 2, false),
				Response: ieql.NewResponseDescriptor(ieql.Partial),
			}
		}

		It("matches when all three fire", func() {
			group := buildGroup(query())
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>hello everyone around</p>")})).To(Succeed())
			responses := drainResponses(d, 1)
			Expect(responses[0].QueryID).To(Equal("s2"))
		})

		It("does not match when only A and B fire", func() {
			group := buildGroup(query())
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>hello everyone</p>")})).To(Succeed())
			Consistently(d.Results(), 300*time.Millisecond).ShouldNot(Receive())
		})

		It("does not match when only A fires", func() {
			group := buildGroup(query())
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>hello</p>")})).To(Succeed())
			Consistently(d.Results(), 300*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("inverse threshold", func() {
		query := ieql.Query{
			ID:        "s3",
			Triggers:  []ieql.Trigger{triggerRef("A", "a"), triggerRef("B", "b"), triggerRef("C", "c")},
			Scope:     textScope,
			Threshold: ieql.Group([]ieql.Threshold{ieql.TriggerRef("A"), ieql.TriggerRef("B"), ieql.TriggerRef("C")}, 1, true),
			Response:  ieql.NewResponseDescriptor(ieql.Partial),
		}

		It("matches when none of the triggers fire", func() {
			group := buildGroup(query)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>nothing here</p>")})).To(Succeed())
			responses := drainResponses(d, 1)
			Expect(responses[0].QueryID).To(Equal("s3"))
		})

		It("does not match when one trigger fires", func() {
			group := buildGroup(query)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>contains a</p>")})).To(Succeed())
			Consistently(d.Results(), 300*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("scope exclusion", func() {
		It("never emits a response for a document outside the URL scope", func() {
			q := ieql.Query{
				ID:        "s4",
				Triggers:  []ieql.Trigger{triggerRef("A", "secret")},
				Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: `^https?://example\.com/`, Kind: ieql.Regex}, Content: ieql.Raw},
				Threshold: ieql.TriggerRef("A"),
				Response:  ieql.NewResponseDescriptor(ieql.Partial),
			}
			group := buildGroup(q)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://other.com/", Content: []byte("secret secret secret")})).To(Succeed())
			Consistently(d.Results(), 300*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("fusion identity", func() {
		It("reports exactly the queries whose own triggers fired", func() {
			q1 := ieql.Query{
				ID:        "q1",
				Triggers:  []ieql.Trigger{triggerRef("A", "foo")},
				Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Raw},
				Threshold: ieql.TriggerRef("A"),
				Response:  ieql.NewResponseDescriptor(ieql.Partial),
			}
			q2 := ieql.Query{
				ID:        "q2",
				Triggers:  []ieql.Trigger{triggerRef("B", "bar")},
				Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Raw},
				Threshold: ieql.TriggerRef("B"),
				Response:  ieql.NewResponseDescriptor(ieql.Partial),
			}
			group := buildGroup(q1, q2)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("foo and bar both appear")})).To(Succeed())

			responses := drainResponses(d, 2)
			ids := []string{responses[0].QueryID, responses[1].QueryID}
			Expect(ids).To(ConsistOf("q1", "q2"))
		})
	})

	Describe("unicode alternation", func() {
		query := ieql.Query{
			ID: "s6",
			Triggers: []ieql.Trigger{
				{ID: "A", Pattern: ieql.Pattern{Content: "M[aä]rtens", Kind: ieql.Regex}},
				{ID: "B", Pattern: ieql.Pattern{Content: "G[uü]ntersen", Kind: ieql.Regex}},
			},
			Scope:     textScope,
			Threshold: ieql.Group([]ieql.Threshold{ieql.TriggerRef("A"), ieql.TriggerRef("B")}, 2, false),
			Response:  ieql.NewResponseDescriptor(ieql.Partial),
		}

		It("matches the accented form", func() {
			group := buildGroup(query)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>Liv Märtens-Güntersen</p>")})).To(Succeed())
			responses := drainResponses(d, 1)
			Expect(responses[0].QueryID).To(Equal("s6"))
		})

		It("does not match an unrelated name", func() {
			group := buildGroup(query)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("<p>Liv Martens</p>")})).To(Succeed())
			Consistently(d.Results(), 300*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("determinism across worker counts", func() {
		It("produces the same matched query set with one worker and with four", func() {
			q := ieql.Query{
				ID:        "det",
				Triggers:  []ieql.Trigger{triggerRef("A", "marker")},
				Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Raw},
				Threshold: ieql.TriggerRef("A"),
				Response:  ieql.NewResponseDescriptor(ieql.Partial),
			}

			for _, workers := range []int{1, 4} {
				group := buildGroup(q)
				d := newDriver(group, workers)

				for i := 0; i < 10; i++ {
					Expect(d.Submit(ieql.Document{URL: "http://x/", Content: []byte("has marker inside")})).To(Succeed())
				}
				responses := drainResponses(d, 10)
				shutdown(d)
				group.Close()

				Expect(responses).To(HaveLen(10))
				for _, r := range responses {
					Expect(r.QueryID).To(Equal("det"))
				}
			}
		})
	})

	Describe("document independence", func() {
		It("evaluating two documents yields the union of evaluating each alone", func() {
			q := ieql.Query{
				ID:        "ind",
				Triggers:  []ieql.Trigger{triggerRef("A", "alpha"), triggerRef("B", "beta")},
				Scope:     ieql.Scope{Pattern: ieql.Pattern{Content: ".*", Kind: ieql.Regex}, Content: ieql.Raw},
				Threshold: ieql.Group([]ieql.Threshold{ieql.TriggerRef("A"), ieql.TriggerRef("B")}, 1, false),
				Response:  ieql.NewResponseDescriptor(ieql.Partial),
			}
			group := buildGroup(q)
			defer group.Close()
			d := newDriver(group, 1)
			defer shutdown(d)

			Expect(d.Submit(ieql.Document{URL: "http://x/d1", Content: []byte("only alpha here")})).To(Succeed())
			Expect(d.Submit(ieql.Document{URL: "http://x/d2", Content: []byte("only beta here")})).To(Succeed())

			responses := drainResponses(d, 2)
			Expect(responses).To(HaveLen(2))
			Expect(responses[0].QueryID).To(Equal("ind"))
			Expect(responses[1].QueryID).To(Equal("ind"))
		})
	})
})
