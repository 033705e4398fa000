package mirrorgen

import (
	"bytes"
	"encoding/json"
	"math/rand"

	"github.com/klauspost/compress/gzip"
)

// bodyGenerator creates random JSON payloads out of dictionary words
type bodyGenerator struct {
	dict     *Dictionary
	maxDepth int
	maxNodes int
	rng      *rand.Rand
}

func newBodyGenerator(dict *Dictionary, maxDepth, maxNodes int, rng *rand.Rand) *bodyGenerator {
	if maxDepth == 0 {
		maxDepth = 3
	}
	if maxNodes == 0 {
		maxNodes = 6
	}
	return &bodyGenerator{dict: dict, maxDepth: maxDepth, maxNodes: maxNodes, rng: rng}
}

func (g *bodyGenerator) object(depth int) map[string]interface{} {
	// at max depth, just create simple key-value pair
	if depth >= g.maxDepth {
		return map[string]interface{}{g.dict.Word(g.rng): g.dict.Word(g.rng)}
	}

	nodeCount := g.rng.Intn(g.maxNodes) + 1
	obj := make(map[string]interface{}, nodeCount)
	for i := 0; i < nodeCount; i++ {
		key := g.dict.Word(g.rng)

		// 30% chance of nesting deeper if not at max depth
		switch {
		case depth < g.maxDepth-1 && g.rng.Float32() < 0.3:
			obj[key] = g.object(depth + 1)
		case g.rng.Float32() < 0.2:
			obj[key] = g.rng.Intn(10000)
		default:
			obj[key] = g.dict.Word(g.rng)
		}
	}
	return obj
}

// JSON returns a marshaled random object.
func (g *bodyGenerator) JSON() []byte {
	out, _ := json.Marshal(g.object(0))
	return out
}

func gzipBytes(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}
