package formucmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	formucmder "github.com/papercomputeco/formu/cmd/formu"
	"github.com/papercomputeco/formu/pkg/config"
	"github.com/papercomputeco/formu/pkg/dotdir"
)

const promptStream = "event: analysis\ndata: a cat on a sofa\n\n" +
	"event: prompt\ndata: a watercolor cat\n\n" +
	"data: [DONE]\n\n"

// backendStub serves every route the CLI talks to. Jobs finish on their second
// status check.
type backendStub struct {
	*httptest.Server

	mu         sync.Mutex
	polls      map[string]int
	prompts    []string
	styles     []string
	increments atomic.Int32
}

func newBackendStub() *backendStub {
	b := &backendStub{polls: make(map[string]int)}
	mux := http.NewServeMux()

	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer tok"
	}

	mux.HandleFunc("POST /prompt-generation", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.styles = append(b.styles, r.URL.Query().Get("style"))
		b.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, promptStream)
	})

	mux.HandleFunc("POST /sora/image-to-image", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.prompts = append(b.prompts, r.FormValue("prompt"))
		b.mu.Unlock()
		fmt.Fprint(w, `{"task_id":"sora-1"}`)
	})

	mux.HandleFunc("GET /sora/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.poll(r.PathValue("id")) < 2 {
			fmt.Fprint(w, `{"status":"running"}`)
			return
		}
		fmt.Fprint(w, `{"status":"succeeded","data":[{"url":"https://cdn.example.com/restyled.png"}]}`)
	})

	mux.HandleFunc("POST /3d-generation/submit", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"task_id":"tripo-1"}`)
	})

	mux.HandleFunc("GET /3d-generation/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if b.poll(r.PathValue("id")) < 2 {
			fmt.Fprint(w, `{"data":{"status":"running","progress":50}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"status":"success","progress":100},"model_url":"https://cdn.example.com/model.glb"}`)
	})

	mux.HandleFunc("GET /api/usage", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"used":%d,"remaining":%d,"can_use":true,"user_type":"pro","config":{"name":"Pro","maxUsage":10,"color":"#ff6600"}}`,
			b.increments.Load(), 10-b.increments.Load())
	})

	mux.HandleFunc("POST /api/usage/increment", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.increments.Add(1)
		fmt.Fprint(w, `{"success":true}`)
	})

	b.Server = httptest.NewServer(mux)
	return b
}

func (b *backendStub) poll(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls[id]++
	return b.polls[id]
}

func (b *backendStub) promptStyles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.styles...)
}

func (b *backendStub) restylePrompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

var _ = Describe("NewFormuCmd", func() {
	It("registers every subcommand", func() {
		cmd := formucmder.NewFormuCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("prompt", "restyle", "model3d", "watch", "quota", "config", "version"))
	})

	It("registers the global flags", func() {
		cmd := formucmder.NewFormuCmd()
		for _, name := range []string{"debug", "config-dir", "log-file", "token"} {
			Expect(cmd.PersistentFlags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("formu", func() {
	var (
		stub      *backendStub
		configDir string
		imagePath string
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := formucmder.NewFormuCmd()
		cmd.SetArgs(append(args, "--config-dir", configDir))
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		return cmd.Execute()
	}

	BeforeEach(func() {
		stub = newBackendStub()
		DeferCleanup(stub.Close)

		configDir = GinkgoT().TempDir()
		cfger, err := config.NewConfiger(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("api.base_url", stub.URL)).To(Succeed())

		imagePath = filepath.Join(GinkgoT().TempDir(), "cat.png")
		Expect(os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\n"), 0o600)).To(Succeed())

		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	Describe("prompt", func() {
		It("writes the prompt to stdout and saves it", func() {
			Expect(run("prompt", imagePath, "--plain", "--style", "anime")).To(Succeed())

			Expect(stdout.String()).To(Equal("a watercolor cat\n"))
			Expect(stderr.String()).To(ContainSubstring("a cat on a sofa"))
			Expect(stderr.String()).To(ContainSubstring("Saved"))
			Expect(stub.promptStyles()).To(Equal([]string{"anime"}))

			last, err := dotdir.NewManager().LoadLastPrompt(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).NotTo(BeNil())
			Expect(last.Prompt).To(Equal("a watercolor cat"))
			Expect(last.Analysis).To(Equal("a cat on a sofa"))
			Expect(last.Source).To(Equal(imagePath))
			Expect(last.Style).To(Equal("anime"))
		})

		It("requires an image or a url", func() {
			Expect(run("prompt")).To(MatchError(ContainSubstring("an image path or --url is required")))
		})

		It("rejects an image together with a url", func() {
			err := run("prompt", imagePath, "--url", "https://example.com/cat.png")
			Expect(err).To(MatchError(ContainSubstring("not both")))
		})

		It("fails for a missing image", func() {
			Expect(run("prompt", filepath.Join(configDir, "missing.png"))).To(MatchError(ContainSubstring("reading image")))
		})
	})

	Describe("restyle", func() {
		It("reuses the saved prompt when none is given", func() {
			Expect(run("prompt", imagePath, "--plain")).To(Succeed())
			stdout.Reset()

			err := run("restyle", imagePath, "--plain", "--token", "tok", "--poll-interval", "1ms")
			Expect(err).NotTo(HaveOccurred())

			Expect(stub.restylePrompts()).To(Equal([]string{"a watercolor cat"}))
			Expect(stub.increments.Load()).To(BeEquivalentTo(1))
			Expect(stdout.String()).To(ContainSubstring("https://cdn.example.com/restyled.png"))
		})

		It("prefers an explicit prompt", func() {
			err := run("restyle", imagePath, "-p", "an oil painting", "--plain", "--token", "tok", "--poll-interval", "1ms")
			Expect(err).NotTo(HaveOccurred())
			Expect(stub.restylePrompts()).To(Equal([]string{"an oil painting"}))
		})

		It("fails without any prompt", func() {
			err := run("restyle", imagePath, "--plain", "--token", "tok")
			Expect(err).To(MatchError(ContainSubstring("no saved prompt")))
			Expect(stub.restylePrompts()).To(BeEmpty())
		})

		It("rejects the job when logged out", func() {
			err := run("restyle", imagePath, "-p", "p", "--plain", "--poll-interval", "1ms")
			Expect(err).To(MatchError(ContainSubstring("1 of 1 jobs did not succeed")))
			Expect(stdout.String()).To(ContainSubstring("usage allowance exhausted"))
			Expect(stdout.String()).To(ContainSubstring("FORMU_AUTH_TOKEN"))
			Expect(stub.restylePrompts()).To(BeEmpty())
		})
	})

	Describe("model3d", func() {
		It("prints the model url once the job succeeds", func() {
			err := run("model3d", imagePath, "--plain", "--token", "tok", "--poll-interval", "1ms")
			Expect(err).NotTo(HaveOccurred())

			Expect(stdout.String()).To(ContainSubstring("https://cdn.example.com/model.glb"))
			Expect(stub.increments.Load()).To(BeEquivalentTo(1))
		})
	})

	Describe("quota", func() {
		It("prints the snapshot as JSON", func() {
			Expect(run("quota", "--json", "--token", "tok")).To(Succeed())

			var snap map[string]any
			Expect(json.Unmarshal(stdout.Bytes(), &snap)).To(Succeed())
			Expect(snap).To(HaveKeyWithValue("plan_name", "Pro"))
			Expect(snap).To(HaveKeyWithValue("remaining", BeEquivalentTo(10)))
			Expect(snap).To(HaveKeyWithValue("can_use", true))
		})

		It("shows the logged-out plan without a token", func() {
			Expect(run("quota")).To(Succeed())
			Expect(stdout.String()).To(ContainSubstring("please log in"))
			Expect(stderr.String()).To(ContainSubstring("Fetching usage"))
		})
	})

	Describe("watch", func() {
		It("requires a prompt for restyle jobs", func() {
			Expect(run("watch", configDir, "--plain")).To(MatchError(ContainSubstring("--prompt")))
		})

		It("fails for a missing directory", func() {
			err := run("watch", filepath.Join(configDir, "missing"), "-p", "p", "--plain")
			Expect(err).To(HaveOccurred())
		})

		It("restyles images as they land until cancelled", func() {
			cfger, err := config.NewConfiger(configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SetConfigValue("restyle.poll_interval", "1ms")).To(Succeed())

			dir := GinkgoT().TempDir()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cmd := formucmder.NewFormuCmd()
			cmd.SetArgs([]string{"watch", dir, "-p", "pencil sketch", "--plain", "--token", "tok", "--config-dir", configDir})
			cmd.SetOut(stdout)
			cmd.SetErr(stderr)

			done := make(chan error, 1)
			go func() { done <- cmd.ExecuteContext(ctx) }()

			// Give the watcher time to register the directory.
			time.Sleep(100 * time.Millisecond)
			Expect(os.WriteFile(filepath.Join(dir, "dog.png"), []byte("\x89PNG\r\n\x1a\n"), 0o600)).To(Succeed())

			Eventually(stub.increments.Load, 5*time.Second).Should(BeEquivalentTo(1))
			cancel()

			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			Expect(stub.restylePrompts()).To(Equal([]string{"pencil sketch"}))
			Expect(stdout.String()).To(ContainSubstring("dog.png"))
		})

		It("rejects unknown job kinds", func() {
			Expect(run("watch", configDir, "--kind", "video", "--plain")).To(HaveOccurred())
		})
	})

	Describe("version", func() {
		It("prints only the version with --short", func() {
			Expect(run("version", "--short")).To(Succeed())
			Expect(stdout.String()).NotTo(ContainSubstring("Sha:"))
			Expect(stdout.String()).NotTo(BeEmpty())
		})
	})
})
