package rag

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/Yates-Labs/fewshot/internal/examples"
)

// CollectionFingerprint hashes the embedding model, its dimension and every
// example's position, input and answer. Two collections share a fingerprint
// only if a store indexed from one can serve the other.
func CollectionFingerprint(model string, dimension int, exs []examples.Example) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%d:%s|%d|", len(model), model, dimension)
	for _, ex := range exs {
		fmt.Fprintf(h, "%d|%d:%s|%d:%s|", ex.Position, len(ex.Input), ex.Input, len(ex.Answer), ex.Answer)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
