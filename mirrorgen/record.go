package mirrorgen

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
)

var (
	methods  = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}
	statuses = []int{200, 201, 204, 301, 302, 400, 401, 403, 404, 500, 502, 503}
	domains  = []string{"api.example.com", "service.test.org", "app.company.io"}
)

// recordGenerator creates single mirror records
type recordGenerator struct {
	dict   *Dictionary
	bodies *bodyGenerator
	rng    *rand.Rand
}

func newRecordGenerator(dict *Dictionary, bodies *bodyGenerator, rng *rand.Rand) *recordGenerator {
	return &recordGenerator{dict: dict, bodies: bodies, rng: rng}
}

func (g *recordGenerator) generate(index int, shape model.Shape, at time.Time, withDuration, compress bool) (Generated, error) {
	method := methods[g.rng.Intn(len(methods))]
	host := domains[g.rng.Intn(len(domains))]
	path := g.path()

	raw := g.rawRequest(method, host, path)

	rec := Generated{
		Index: index,
		Shape: shape,
		Valid: true,
		Expect: Expectation{
			Method: method,
			Path:   path,
			Host:   host,
			Start:  at,
		},
	}

	if shape == model.ShapeDirectCapture {
		rec.Data = raw
		return rec, nil
	}

	sourceIP := g.ip()
	sourcePort := g.rng.Intn(64511) + 1024
	rec.Expect.SourceIP = sourceIP
	rec.Expect.SourcePort = sourcePort

	mirror := model.MirrorEntry{
		RemoteAddr: sourceIP,
		RemotePort: model.Port(sourcePort),
		Request: model.MirrorRequest{
			RawBase64: base64.StdEncoding.EncodeToString(raw),
			Time:      float64(at.Unix()) + float64(at.Nanosecond()/1000)/1e6,
		},
		Response: g.response(&rec.Expect, compress),
	}

	if withDuration {
		d := time.Duration(g.rng.Intn(2_000_000)) * time.Microsecond
		seconds := model.Seconds(d)
		mirror.Response.Duration = &seconds
		rec.Expect.Duration = &d
	}

	if shape == model.ShapeExchange {
		serverIP := g.ip()
		serverPort := model.Port(443)
		scheme := "https"
		if g.rng.Intn(2) == 0 {
			serverPort, scheme = 80, "http"
		}
		mirror.ServerAddr = &serverIP
		mirror.ServerPort = &serverPort
		mirror.Scheme = &scheme
		rec.Expect.ServerIP = serverIP
		rec.Expect.ServerPort = int(serverPort)
		rec.Expect.Scheme = scheme
	}

	line, err := json.Marshal(mirror)
	if err != nil {
		return Generated{}, fmt.Errorf("failed to marshal record %d: %w", index, err)
	}
	rec.Data = line
	return rec, nil
}

// corrupt replaces a record with one the decoder must reject.
func (g *recordGenerator) corrupt(rec Generated) Generated {
	rec.Valid = false
	switch g.rng.Intn(3) {
	case 0:
		// truncated json
		rec.Data = rec.Data[:len(rec.Data)/2]
	case 1:
		rec.Data = []byte(`{"remote_addr":"10.0.0.1","remote_port":1,"request":{"raw_base64":"***","time":1}}`)
	default:
		bad := base64.StdEncoding.EncodeToString([]byte("this is not http\r\n\r\n"))
		rec.Data = []byte(`{"remote_addr":"10.0.0.1","remote_port":1,"request":{"raw_base64":"` + bad + `","time":1}}`)
	}
	return rec
}

func (g *recordGenerator) path() string {
	segments := g.dict.Words(g.rng.Intn(3)+1, g.rng)
	return "/" + strings.Join(segments, "/")
}

func (g *recordGenerator) ip() string {
	return fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(254)+1)
}

func (g *recordGenerator) rawRequest(method, host, path string) []byte {
	var b strings.Builder

	query := url.Values{}
	for i := g.rng.Intn(3); i > 0; i-- {
		query.Add(g.dict.Word(g.rng), g.dict.Word(g.rng))
	}
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, target)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	fmt.Fprintf(&b, "User-Agent: mirrorgen/%s\r\n", g.dict.Word(g.rng))
	b.WriteString("Accept: */*\r\n")

	var body []byte
	if method == "POST" || method == "PUT" || method == "PATCH" {
		body = g.bodies.JSON()
		b.WriteString("Content-Type: application/json\r\n")
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.Write(body)
	return []byte(b.String())
}

func (g *recordGenerator) response(expect *Expectation, compress bool) *model.MirrorResponse {
	status := statuses[g.rng.Intn(len(statuses))]
	body := g.bodies.JSON()

	headers := model.HeaderMap{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "Date", Value: expect.Start.UTC().Format(time.RFC1123)},
	}
	for i := g.rng.Intn(3); i > 0; i-- {
		cookie := g.dict.Word(g.rng) + "=" + strconv.Itoa(g.rng.Intn(1000))
		headers = append(headers, model.Header{Name: "Set-Cookie", Value: cookie})
		expect.SetCookies = append(expect.SetCookies, cookie)
	}

	expect.Status = status
	expect.Body = string(body)

	if compress {
		body = gzipBytes(body)
		headers = append(headers, model.Header{Name: "Content-Encoding", Value: "gzip"})
	}

	return &model.MirrorResponse{
		Headers:    headers,
		BodyBase64: base64.StdEncoding.EncodeToString(body),
		Status:     status,
	}
}
