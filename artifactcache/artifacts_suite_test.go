package artifactcache_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestArtifactCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ArtifactCache Suite")
}
