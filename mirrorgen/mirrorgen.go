// Package mirrorgen produces synthetic mirror records, with the values a
// correct pipeline should derive from each of them.
package mirrorgen

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
)

// GenerateOptions configures record generation
type GenerateOptions struct {
	Count          int           // number of records to generate
	Shapes         []model.Shape // shapes to pick from (if empty, request/response and exchange)
	Seed           int64         // random seed for reproducibility (0 = use time)
	DictionaryPath string        // path to word dictionary (default: /usr/share/dict/words)
	InvalidEvery   int           // every nth record is malformed (0 = never)
	WithDuration   bool          // report a response duration on mirror records
	CompressEvery  int           // every nth response body is gzip encoded (0 = never)
	Start          time.Time     // time of the first request (default: now)
	MaxJSONDepth   int           // max nesting level of bodies (default: 3)
	MaxJSONNodes   int           // max nodes per level (default: 6)
}

// DefaultGenerateOptions provides sensible defaults
var DefaultGenerateOptions = GenerateOptions{
	Count:          10,
	Shapes:         []model.Shape{model.ShapeRequestResponse, model.ShapeExchange},
	DictionaryPath: "/usr/share/dict/words",
	MaxJSONDepth:   3,
	MaxJSONNodes:   6,
}

// Expectation is what the pipeline should produce for a valid record.
type Expectation struct {
	Method     string
	Path       string
	Host       string
	Status     int // zero for direct captures
	SourceIP   string
	SourcePort int
	ServerIP   string
	ServerPort int
	Scheme     string
	Start      time.Time
	Duration   *time.Duration
	SetCookies []string // response Set-Cookie values in order
	Body       string   // response body after decompression
}

// Generated is one synthetic record. Data is a single JSON line (without the
// newline) for mirror shapes and raw request bytes for direct captures.
type Generated struct {
	Index  int
	Shape  model.Shape
	Data   []byte
	Valid  bool
	Expect Expectation
}

// GenerateResult summarises a generated file
type GenerateResult struct {
	FilePath     string
	TotalRecords int
	Invalid      int
}

func (o *GenerateOptions) applyDefaults() {
	if o.DictionaryPath == "" {
		o.DictionaryPath = DefaultGenerateOptions.DictionaryPath
	}
	if len(o.Shapes) == 0 {
		o.Shapes = DefaultGenerateOptions.Shapes
	}
	if o.MaxJSONDepth == 0 {
		o.MaxJSONDepth = DefaultGenerateOptions.MaxJSONDepth
	}
	if o.MaxJSONNodes == 0 {
		o.MaxJSONNodes = DefaultGenerateOptions.MaxJSONNodes
	}
}

// Generate creates opts.Count records in memory.
func Generate(opts GenerateOptions) ([]Generated, error) {
	opts.applyDefaults()

	// create local rng (avoid mutating global rand)
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	dict, err := LoadDictionary(opts.DictionaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary: %w", err)
	}

	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}
	start = start.Truncate(time.Second)

	gen := newRecordGenerator(dict, newBodyGenerator(dict, opts.MaxJSONDepth, opts.MaxJSONNodes, rng), rng)

	records := make([]Generated, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		shape := opts.Shapes[rng.Intn(len(opts.Shapes))]
		at := start.Add(time.Duration(i)*time.Second + time.Duration(rng.Intn(1_000_000))*time.Microsecond)

		compress := opts.CompressEvery > 0 && (i+1)%opts.CompressEvery == 0
		rec, err := gen.generate(i, shape, at, opts.WithDuration, compress)
		if err != nil {
			return nil, err
		}

		if opts.InvalidEvery > 0 && (i+1)%opts.InvalidEvery == 0 && shape != model.ShapeDirectCapture {
			rec = gen.corrupt(rec)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Write writes mirror records as newline-delimited JSON. Direct captures are
// skipped since each one needs its own connection.
func Write(w io.Writer, records []Generated) (int, error) {
	bw := bufio.NewWriter(w)
	written := 0
	for _, rec := range records {
		if rec.Shape == model.ShapeDirectCapture {
			continue
		}
		if _, err := bw.Write(rec.Data); err != nil {
			return written, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, err
		}
		written++
	}
	return written, bw.Flush()
}

// GenerateToFile writes generated mirror records to path, or to a temp file when path is empty.
func GenerateToFile(opts GenerateOptions, path string) (*GenerateResult, error) {
	records, err := Generate(opts)
	if err != nil {
		return nil, err
	}

	var file *os.File
	if path == "" {
		file, err = os.CreateTemp("", "mirrorgen-*.jsonl")
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := Write(file, records)
	if err != nil {
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	invalid := 0
	for _, rec := range records {
		if !rec.Valid && rec.Shape != model.ShapeDirectCapture {
			invalid++
		}
	}

	return &GenerateResult{
		FilePath:     file.Name(),
		TotalRecords: written,
		Invalid:      invalid,
	}, nil
}
