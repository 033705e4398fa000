package mirrorgen

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"strings"
)

// used when no system word list is installed
var builtinWords = strings.Fields(`
	account agent alpha api archive auth batch beacon billing body cache
	capture cart catalog client cookie config content customer data delta
	device domain endpoint event export feed file filter gateway header health
	host image inbox invoice item job key label ledger limit login member
	message metric mirror node offset order origin owner page param path
	payment plan port profile proxy query quota record region report request
	response result review route sample scheme search server service session
	socket status stream tenant ticket token topic user value version widget
`)

// Dictionary is a read-only word list. Every word is lowercase ASCII, so it can
// be used unescaped in paths, header values and cookie names.
type Dictionary struct {
	words []string
}

// LoadDictionary reads one word per line from path, keeping the usable ones.
// A missing file falls back to a built-in list.
func LoadDictionary(path string) (*Dictionary, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Dictionary{words: builtinWords}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer file.Close()

	dict, err := readDictionary(file)
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", path, err)
	}
	return dict, nil
}

func readDictionary(r io.Reader) (*Dictionary, error) {
	seen := make(map[string]struct{})
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if !usableWord(word) {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, errors.New("no usable words")
	}
	return &Dictionary{words: words}, nil
}

func usableWord(word string) bool {
	if len(word) < 3 || len(word) > 15 {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

// Word picks one word using rng.
func (d *Dictionary) Word(rng *rand.Rand) string {
	return d.words[rng.Intn(len(d.words))]
}

// Words picks n words using rng; repeats are possible.
func (d *Dictionary) Words(n int, rng *rand.Rand) []string {
	out := make([]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, d.Word(rng))
	}
	return out
}

func (d *Dictionary) Size() int {
	return len(d.words)
}
