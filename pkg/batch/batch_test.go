package batch_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/formu/pkg/backend"
	"github.com/papercomputeco/formu/pkg/batch"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/session"
)

// fakeServer completes every restyle on its second status check and fails
// any upload named "bad.png".
type fakeServer struct {
	*httptest.Server

	mu         sync.Mutex
	polls      map[string]int
	submitted  atomic.Int32
	increments atomic.Int32
	used       atomic.Int32
}

func newFakeServer() *fakeServer {
	f := &fakeServer{polls: make(map[string]int)}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sora/image-to-image", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := f.submitted.Add(1)
		id := fmt.Sprintf("task-%d", n)
		if header.Filename == "bad.png" {
			id = "bad-" + id
		}
		fmt.Fprintf(w, `{"task_id":%q}`, id)
	})

	mux.HandleFunc("GET /sora/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		f.polls[id]++
		n := f.polls[id]
		f.mu.Unlock()

		switch {
		case n < 2:
			fmt.Fprint(w, `{"status":"running"}`)
		case len(id) > 4 && id[:4] == "bad-":
			fmt.Fprint(w, `{"status":"failed","failure_reason":"content policy violation"}`)
		default:
			fmt.Fprintf(w, `{"status":"succeeded","data":[{"url":"https://cdn.example.com/%s.png"}]}`, id)
		}
	})

	mux.HandleFunc("GET /api/usage", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"used":%d,"remaining":null,"can_use":true,"user_type":"pro","config":{"name":"Pro","maxUsage":null,"color":"#ff6600"}}`, f.used.Load())
	})

	mux.HandleFunc("POST /api/usage/increment", func(w http.ResponseWriter, _ *http.Request) {
		f.increments.Add(1)
		f.used.Add(1)
		fmt.Fprint(w, `{"success":true}`)
	})

	f.Server = httptest.NewServer(mux)
	return f
}

var _ = Describe("Run", func() {
	var (
		srv *fakeServer
		s   *session.Session
		out *bytes.Buffer
		img = backend.Image{Filename: "cat.png", Data: []byte("\x89PNG\r\n\x1a\n")}
		bad = backend.Image{Filename: "bad.png", Data: []byte("\x89PNG\r\n\x1a\n")}
	)

	BeforeEach(func() {
		srv = newFakeServer()
		DeferCleanup(srv.Close)

		v, err := config.InitViper(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		v.Set("api.base_url", srv.URL)
		v.Set("auth.token", "tok")
		v.Set("restyle.poll_interval", "1ms")
		v.Set("jobs.queue_size", 1)

		s, err = session.New(v, session.Options{Quiet: true})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		out = &bytes.Buffer{}
	})

	It("runs a fixed list in plain mode and counts usage per success", func() {
		// One worker keeps the quota refreshes in order.
		s.Viper.Set("jobs.workers", 1)

		list := []jobs.Job{
			jobs.NewJob(jobs.KindRestyle, "a.png", img, "watercolor"),
			jobs.NewJob(jobs.KindRestyle, "b.png", img, "watercolor"),
			jobs.NewJob(jobs.KindRestyle, "bad.png", bad, "watercolor"),
		}

		summary, err := batch.Run(context.Background(), batch.Config{
			Session:  s,
			Out:      out,
			MinQueue: len(list),
		}, batch.Jobs(list...))
		Expect(err).NotTo(HaveOccurred())

		Expect(summary.Outcomes).To(HaveLen(3))
		Expect(summary.Failed).To(Equal(1))
		Expect(summary.Err()).To(MatchError("1 of 3 jobs did not succeed"))

		Expect(srv.increments.Load()).To(Equal(int32(2)))
		Expect(s.Quota.Snapshot().Used).To(Equal(2))

		Expect(out.String()).To(ContainSubstring("content policy violation"))
		Expect(out.String()).To(ContainSubstring("https://cdn.example.com/"))
	})

	It("reports jobs dropped by a full queue", func() {
		list := make([]jobs.Job, 0, 20)
		for i := range 20 {
			list = append(list, jobs.NewJob(jobs.KindRestyle, fmt.Sprintf("%d.png", i), img, "p"))
		}

		_, err := batch.Run(context.Background(), batch.Config{Session: s, Out: out}, batch.Jobs(list...))
		Expect(err).To(MatchError(ContainSubstring("could not be queued")))
	})

	It("drives the jobs board until every job finishes", func() {
		list := []jobs.Job{
			jobs.NewJob(jobs.KindRestyle, "a.png", img, "p"),
			jobs.NewJob(jobs.KindRestyle, "b.png", img, "p"),
		}

		summary, err := batch.Run(context.Background(), batch.Config{
			Session:     s,
			Title:       "restyle",
			Interactive: true,
			MinQueue:    len(list),
			Out:         out,
			ProgramOptions: []bubbletea.ProgramOption{
				bubbletea.WithInput(nil),
				bubbletea.WithOutput(io.Discard),
				bubbletea.WithoutSignalHandler(),
			},
		}, batch.Jobs(list...))
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Err()).NotTo(HaveOccurred())
		Expect(summary.Outcomes).To(HaveLen(2))
		Expect(out.String()).To(ContainSubstring("a.png"))
	})

	It("requires a session and a writer", func() {
		_, err := batch.Run(context.Background(), batch.Config{}, batch.Jobs())
		Expect(err).To(HaveOccurred())
	})
})
