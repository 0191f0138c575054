package migration_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/dogmatiq/procyon/migration"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type FileReader", func() {
	var (
		ctx context.Context
		dir string
	)

	write := func(name, content string) {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600)
		Expect(err).ShouldNot(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
	})

	Describe("func Plans()", func() {
		It("reads plans from YAML and JSON files in lexical order", func() {
			write("b.json", `{
				"plans": [
					{
						"name": "<plan-b>",
						"source": {"processId": "<process-b>", "version": "1"},
						"target": {"processId": "<process-b>", "version": "2"}
					}
				]
			}`)

			write("a.yaml", `
plans:
  - name: <plan-a>
    source:
      processId: <process-a>
      version: "1"
    target:
      processId: <process-a>
      version: "2"
    nodes:
      <node-1>: <node-2>
`)

			plans, err := FileReader{Dir: dir}.Plans(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(plans).To(Equal([]Plan{
				{
					Name:   "<plan-a>",
					Source: Definition{ProcessID: "<process-a>", Version: "1"},
					Target: Definition{ProcessID: "<process-a>", Version: "2"},
					Nodes:  map[string]string{"<node-1>": "<node-2>"},
				},
				{
					Name:   "<plan-b>",
					Source: Definition{ProcessID: "<process-b>", Version: "1"},
					Target: Definition{ProcessID: "<process-b>", Version: "2"},
				},
			}))
		})

		It("ignores other files and directories", func() {
			write("README.md", "not a plan")
			write("empty.yml", "")
			Expect(os.Mkdir(filepath.Join(dir, "nested.yaml"), 0700)).To(Succeed())

			plans, err := FileReader{Dir: dir}.Plans(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(plans).To(BeEmpty())
		})

		It("returns an error if a plan is invalid", func() {
			write("invalid.yaml", `
plans:
  - name: <plan>
    source:
      processId: <process>
      version: "1"
`)

			_, err := FileReader{Dir: dir}.Plans(ctx)
			Expect(err).To(MatchError(ContainSubstring("target process ID must not be empty")))
			Expect(err).To(MatchError(ContainSubstring("invalid.yaml")))
		})

		It("returns an error if a file can not be decoded", func() {
			write("malformed.yaml", "plans: [")

			_, err := FileReader{Dir: dir}.Plans(ctx)
			Expect(err).To(MatchError(ContainSubstring("unable to decode migration plans")))
		})

		It("returns an error if the directory does not exist", func() {
			_, err := FileReader{Dir: filepath.Join(dir, "missing")}.Plans(ctx)
			Expect(err).To(MatchError(os.ErrNotExist))
		})
	})
})

var _ = Describe("type Plan", func() {
	Describe("func Validate()", func() {
		It("returns an error if the source process ID is empty", func() {
			p := Plan{
				Target: Definition{ProcessID: "<process>"},
			}

			Expect(p.Validate()).To(MatchError("source process ID must not be empty"))
		})

		It("returns an error if the source and target are the same", func() {
			d := Definition{ProcessID: "<process>", Version: "1"}
			p := Plan{
				Source: d,
				Target: d,
			}

			Expect(p.Validate()).To(MatchError("source and target are both <process>@1"))
		})

		It("accepts a plan that changes only the version", func() {
			p := Plan{
				Source: Definition{ProcessID: "<process>", Version: "1"},
				Target: Definition{ProcessID: "<process>", Version: "2"},
			}

			Expect(p.Validate()).To(Succeed())
		})
	})
})
