package metaindex_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMetaIndexSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "metaindex suite")
}
