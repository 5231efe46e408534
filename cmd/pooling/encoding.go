package main

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/pooling/pkg/compression"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// minCompressSize is the smallest response body worth compressing.
const minCompressSize = 1024

// contentCodecs compresses JSON responses for clients that accept zstd or
// gzip. Codecs are borrowed per response from one CodecPool per encoding.
type contentCodecs struct {
	pools map[string]*compression.CodecPool
}

// serverEncodings lists the encodings in server preference order.
var serverEncodings = []struct {
	name string
	alg  compression.Algorithm
}{
	{"zstd", compression.Zstd},
	{"gzip", compression.Gzip},
}

func newContentCodecs() (*contentCodecs, error) {
	cc := &contentCodecs{pools: make(map[string]*compression.CodecPool, len(serverEncodings))}
	for _, enc := range serverEncodings {
		cp, err := compression.NewCodecPool(
			&compression.Config{Algorithm: enc.alg, Level: compression.Fastest, MaxRetainedBuffer: 256 << 10},
			pool.NewConfig(
				pool.WithInitCapacity(1),
				pool.WithMaxCapacity(8),
				pool.WithOverflowStrategy(pool.OverflowRequest),
			))
		if err != nil {
			cc.close()
			return nil, err
		}
		cc.pools[enc.name] = cp
	}
	return cc, nil
}

// negotiate picks the encoding for an Accept-Encoding header. It returns
// false when the client accepts none of the server encodings.
func (cc *contentCodecs) negotiate(header string) (string, *compression.CodecPool, bool) {
	if header == "" {
		return "", nil, false
	}
	accepted := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		accepted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, enc := range serverEncodings {
		if accepted[enc.name] || accepted["*"] {
			return enc.name, cc.pools[enc.name], true
		}
	}
	return "", nil, false
}

func (cc *contentCodecs) close() {
	for _, cp := range cc.pools {
		cp.Close()
	}
}
