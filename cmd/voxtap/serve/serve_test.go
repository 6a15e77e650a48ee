package servecmder

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/eventstream/kafka"
	"github.com/papercomputeco/voxtap/pkg/eventstream/nop"
	"github.com/papercomputeco/voxtap/pkg/logger"
)

// resolve runs flag parsing and config resolution without starting the
// server. The root command normally provides the persistent flags.
func resolve(args ...string) (*config.Config, error) {
	cmder := &ServeCommander{}
	cmd := newServeCmd(cmder)
	cmd.PersistentFlags().BoolP("debug", "d", false, "")
	cmd.PersistentFlags().String("config-dir", "", "")

	if err := cmd.ParseFlags(args); err != nil {
		return nil, err
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		return nil, err
	}
	return cmder.cfg, nil
}

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		Expect(NewServeCmd().Use).To(Equal("serve"))
	})

	It("registers every config flag", func() {
		cmd := NewServeCmd()
		for _, key := range serveFlags {
			Expect(cmd.Flags().Lookup(config.Flags[key].Name)).NotTo(BeNil(), key)
		}
		Expect(cmd.Flags().Lookup("in-memory")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
	})

	It("rejects positional arguments", func() {
		cmd := NewServeCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})
})

var _ = Describe("config resolution", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		for _, key := range config.ValidConfigKeys() {
			name := config.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			GinkgoT().Setenv(name, "")
			Expect(os.Unsetenv(name)).To(Succeed())
		}
	})

	It("uses config.toml values when no flag is given", func() {
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[delivery]
endpoint = "https://file.example.com"

[api]
listen = ":9999"
`), 0o644)).To(Succeed())

		cfg, err := resolve("--config-dir", dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Delivery.Endpoint).To(Equal("https://file.example.com"))
		Expect(cfg.API.Listen).To(Equal(":9999"))
		Expect(cfg.Delivery.AuthHeader).To(Equal("x-pype-token"))
	})

	It("lets flags win over config.toml", func() {
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[delivery]
endpoint = "https://file.example.com"
`), 0o644)).To(Succeed())

		cfg, err := resolve("--config-dir", dir,
			"--endpoint", "https://flag.example.com",
			"--workers", "7",
			"--brokers", "k1:9092,k2:9092",
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Delivery.Endpoint).To(Equal("https://flag.example.com"))
		Expect(cfg.Delivery.Workers).To(Equal(uint(7)))
		Expect(cfg.EventStream.Brokers).To(Equal([]string{"k1:9092", "k2:9092"}))
	})
})

var _ = Describe("newPublisher", func() {
	newCmder := func(provider string, brokers ...string) *ServeCommander {
		cfg := config.NewDefaultConfig()
		cfg.EventStream.Provider = provider
		cfg.EventStream.Brokers = brokers
		return &ServeCommander{cfg: cfg, logger: logger.Nop()}
	}

	It("defaults to the nop publisher", func() {
		p, err := newCmder(config.EventStreamNone).newPublisher()
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("builds a kafka publisher", func() {
		p, err := newCmder(config.EventStreamKafka, "localhost:9092").newPublisher()
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(p.Close()).To(Succeed())
	})

	It("requires brokers for kafka", func() {
		_, err := newCmder(config.EventStreamKafka).newPublisher()
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown providers", func() {
		_, err := newCmder("nats").newPublisher()
		Expect(err).To(MatchError(ContainSubstring("unknown event stream provider")))
	})
})

var _ = Describe("setupLogger", func() {
	It("also writes JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "voxtap.log")
		cmder := &ServeCommander{logFile: path}

		closeLog, err := cmder.setupLogger()
		Expect(err).NotTo(HaveOccurred())
		cmder.logger.Info("hello from serve")
		closeLog()

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"hello from serve"`))
	})
})
