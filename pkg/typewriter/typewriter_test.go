package typewriter_test

import (
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/formu/pkg/typewriter"
)

// drain ticks a manual buffer until it stops revealing.
func drain(b *typewriter.Buffer) int {
	n := 0
	for b.Tick() {
		n++
	}
	return n
}

var _ = Describe("Buffer", func() {
	Context("with manual ticks", func() {
		var (
			b        *typewriter.Buffer
			revealed strings.Builder
		)

		BeforeEach(func() {
			revealed.Reset()
			b = typewriter.NewBuffer(
				typewriter.WithManualTicks(),
				typewriter.WithRevealFunc(func(r rune) { revealed.WriteRune(r) }),
			)
		})

		It("reveals exactly one rune per tick", func() {
			b.Enqueue("abc")
			Expect(b.Active()).To(BeTrue())
			Expect(b.Revealed()).To(BeEmpty())

			Expect(b.Tick()).To(BeTrue())
			Expect(b.Revealed()).To(Equal("a"))

			Expect(b.Tick()).To(BeTrue())
			Expect(b.Revealed()).To(Equal("ab"))
			Expect(b.Pending()).To(Equal(1))
		})

		It("stops the flush task once it has caught up", func() {
			b.Enqueue("hi")
			Expect(drain(b)).To(Equal(2))
			Expect(b.Active()).To(BeFalse())
			Expect(b.Tick()).To(BeFalse())
		})

		It("restarts the flush task when text arrives after it stopped", func() {
			b.Enqueue("one ")
			drain(b)
			Expect(b.Active()).To(BeFalse())

			b.Enqueue("two")
			Expect(b.Active()).To(BeTrue())
			drain(b)
			Expect(b.Revealed()).To(Equal("one two"))
		})

		It("reveals the concatenation of all enqueued text exactly once", func() {
			parts := []string{"Hel", "lo, ", "", "wörld", " ✓"}
			for i, p := range parts {
				b.Enqueue(p)
				if i%2 == 0 {
					b.Tick()
				}
			}
			drain(b)

			Expect(b.Revealed()).To(Equal(strings.Join(parts, "")))
			Expect(revealed.String()).To(Equal(strings.Join(parts, "")))
		})

		It("keeps the revealed text a prefix of the accumulated text", func() {
			b.Enqueue("prefix check")
			for b.Tick() {
				Expect(b.Text()).To(HavePrefix(b.Revealed()))
			}
		})

		It("reveals multi-byte characters whole", func() {
			b.Enqueue("日本")
			b.Tick()
			Expect(b.Revealed()).To(Equal("日"))
		})

		It("ignores empty text", func() {
			b.Enqueue("")
			Expect(b.Active()).To(BeFalse())
		})

		Describe("Reset", func() {
			It("clears text and cursor and cancels the flush task", func() {
				b.Enqueue("stale text")
				b.Tick()
				b.Reset()

				Expect(b.Active()).To(BeFalse())
				Expect(b.Text()).To(BeEmpty())
				Expect(b.Revealed()).To(BeEmpty())
				Expect(b.Tick()).To(BeFalse())
			})

			It("is idempotent", func() {
				b.Enqueue("x")
				b.Reset()
				b.Reset()

				Expect(b.Text()).To(BeEmpty())
				Expect(b.Active()).To(BeFalse())
			})

			It("never lets a previous run bleed into the next one", func() {
				b.Enqueue("old")
				b.Tick()
				b.Reset()
				revealed.Reset()

				b.Enqueue("new")
				drain(b)
				Expect(b.Revealed()).To(Equal("new"))
				Expect(revealed.String()).To(Equal("new"))
			})
		})

		Context("when the reveal callback calls back into the buffer", func() {
			It("allows Reset from the callback", func() {
				var cb *typewriter.Buffer
				seen := 0
				cb = typewriter.NewBuffer(
					typewriter.WithManualTicks(),
					typewriter.WithRevealFunc(func(r rune) {
						seen++
						if r == '!' {
							cb.Reset()
						}
					}),
				)

				cb.Enqueue("ab!cd")
				Expect(drain(cb)).To(Equal(3))
				Expect(seen).To(Equal(3))
				Expect(cb.Text()).To(BeEmpty())
				Expect(cb.Active()).To(BeFalse())
			})

			It("allows Enqueue from the callback", func() {
				var cb *typewriter.Buffer
				echoed := false
				cb = typewriter.NewBuffer(
					typewriter.WithManualTicks(),
					typewriter.WithRevealFunc(func(r rune) {
						if r == 'x' && !echoed {
							echoed = true
							cb.Enqueue("yz")
						}
					}),
				)

				cb.Enqueue("x")
				drain(cb)
				Expect(cb.Revealed()).To(Equal("xyz"))
			})
		})
	})

	Context("with the internal ticker", func() {
		It("reveals everything and then stops", func() {
			b := typewriter.NewBuffer(typewriter.WithTick(time.Millisecond))
			b.Enqueue("streamed text")

			Eventually(b.Revealed).Should(Equal("streamed text"))
			Eventually(b.Active).Should(BeFalse())
		})

		It("restarts after going idle", func() {
			b := typewriter.NewBuffer(typewriter.WithTick(time.Millisecond))
			b.Enqueue("first")
			Eventually(b.Active).Should(BeFalse())

			b.Enqueue(" second")
			Eventually(b.Revealed).Should(Equal("first second"))
		})

		It("stops revealing after Reset", func() {
			var mu sync.Mutex
			count := 0
			b := typewriter.NewBuffer(
				typewriter.WithTick(time.Millisecond),
				typewriter.WithRevealFunc(func(rune) {
					mu.Lock()
					count++
					mu.Unlock()
				}),
			)

			b.Enqueue(strings.Repeat("x", 10_000))
			Eventually(b.Pending).Should(BeNumerically("<", 10_000))
			b.Reset()

			mu.Lock()
			after := count
			mu.Unlock()

			// One reveal may already be past the state lock when Reset runs.
			Consistently(func() int {
				mu.Lock()
				defer mu.Unlock()
				return count
			}, 30*time.Millisecond, time.Millisecond).Should(BeNumerically("<=", after+1))
			Expect(b.Revealed()).To(BeEmpty())
		})

		It("finishes when the callback resets the buffer", func() {
			var cb *typewriter.Buffer
			cb = typewriter.NewBuffer(
				typewriter.WithTick(time.Millisecond),
				typewriter.WithRevealFunc(func(r rune) {
					if r == '!' {
						cb.Reset()
					}
				}),
			)

			cb.Enqueue("abc!" + strings.Repeat("z", 1000))
			Eventually(cb.Active).Should(BeFalse())
			Expect(cb.Text()).To(BeEmpty())
		})

		It("runs independent buffers concurrently", func() {
			a := typewriter.NewBuffer(typewriter.WithTick(time.Millisecond))
			c := typewriter.NewBuffer(typewriter.WithTick(time.Millisecond))

			var wg sync.WaitGroup
			for _, w := range []struct {
				buf  *typewriter.Buffer
				text string
			}{{a, "analysis"}, {c, "prompt"}} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for _, r := range w.text {
						w.buf.Enqueue(string(r))
					}
				}()
			}
			wg.Wait()

			Eventually(a.Revealed).Should(Equal("analysis"))
			Eventually(c.Revealed).Should(Equal("prompt"))
		})
	})
})
