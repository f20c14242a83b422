package corpus

import (
	"encoding/json"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/dgallion1/patgest/internal/patent"
)

// Load reads a parsed corpus JSON file.
func Load(path string) (patent.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return patent.Corpus{}, fmt.Errorf("read corpus: %w", err)
	}
	var c patent.Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return patent.Corpus{}, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	return c, nil
}

// Save writes v as indented JSON, creating parent directories.
func Save(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Sample picks n documents with a seeded generator so runs are reproducible.
// n <= 0 or n >= len(docs) returns docs unchanged.
func Sample(docs []patent.Document, n int, seed uint64) []patent.Document {
	if n <= 0 || n >= len(docs) {
		return docs
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]patent.Document, 0, n)
	for _, i := range rng.Perm(len(docs))[:n] {
		out = append(out, docs[i])
	}
	return out
}

// WriteBlocks stores every block as dir/patent_<i>.xml and returns how many
// files were written.
func WriteBlocks(dir string, blocks iter.Seq[Block]) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	n := 0
	for b := range blocks {
		path := filepath.Join(dir, fmt.Sprintf("patent_%d.xml", n))
		if err := os.WriteFile(path, []byte(b), 0o644); err != nil {
			return n, fmt.Errorf("write %s: %w", path, err)
		}
		n++
	}
	return n, nil
}
