package artifactcache_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coreruntime/kernel/artifactcache"
)

var _ = Describe("ArtifactDB lifecycle", func() {
	var dbPath string

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "artifactcache")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(dir, "artifacts.db")
	})

	It("reopens an existing database without losing rows", func() {
		db, err := artifactcache.OpenArtifactDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.PutEmitData(artifactcache.EmitData{
			Specifier: "https://example.com/mod.ts", Version: "1", Text: "1",
		})).To(Succeed())
		Expect(db.Close()).To(Succeed())

		reopened, err := artifactcache.OpenArtifactDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		row, ok, err := reopened.GetEmitData("https://example.com/mod.ts", "1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(row.Text).To(Equal("1"))
	})

	It("starts empty on a fresh path", func() {
		db, err := artifactcache.OpenArtifactDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		_, ok, err := db.GetEmitData("https://example.com/missing.ts", "1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
