package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/formu/cmd/formu/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetArgs(args)
		cmd.SetOut(out)
		cmd.SetErr(out)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "formu-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .formu dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".formu"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "restyle.size", "512x512")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".formu", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`size = "512x512"`))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("refuses to store the auth token", func() {
			Expect(run("set", "auth.token", "secret")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "restyle.size")).To(HaveOccurred())
			Expect(run("set")).To(HaveOccurred())
		})

		It("rejects invalid durations", func() {
			Expect(run("set", "restyle.poll_interval", "often")).To(MatchError(ContainSubstring("invalid value")))
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "jobs.workers", "7")).To(Succeed())
			out.Reset()

			Expect(run("get", "jobs.workers")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("7"))
		})

		It("shows the default for an unset key", func() {
			Expect(run("get", "prompt.style")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("realistic"))
		})

		It("marks keys without a default as not set", func() {
			Expect(run("get", "events.kafka_brokers")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key with defaults", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`api\.base_url\s+= "http://localhost:8000"`))
			Expect(out.String()).To(MatchRegexp(`events\.kafka_brokers\s+= <not set>`))
		})

		It("shows values from the config file", func() {
			Expect(run("set", "restyle.model", "sora_image_hd")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"sora_image_hd"`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
