package json

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pooling/pkg/borrow"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

type testRecord struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Value float64  `json:"value"`
	Tags  []string `json:"tags"`
}

func generateTestRecords(n int) []any {
	records := make([]any, n)
	for i := range n {
		records[i] = testRecord{
			ID:    i,
			Name:  "<record>",
			Value: float64(i) * 1.5,
			Tags:  []string{"tag1", "tag2"},
		}
	}
	return records
}

func newEncoderPool(t *testing.T, maxRetained int) *EncoderPool {
	t.Helper()
	ep, err := NewEncoderPool(pool.NewConfig(
		pool.WithInitCapacity(0),
		pool.WithMaxCapacity(2),
		pool.WithBorrowStrategy(borrow.LIFO),
		pool.WithOverflowStrategy(pool.OverflowRequest),
	), maxRetained)
	require.NoError(t, err)
	t.Cleanup(ep.Close)
	return ep
}

func TestMarshalMatchesStdlib(t *testing.T) {
	rec := testRecord{ID: 1, Name: "a", Value: 2.5, Tags: []string{"x"}}

	got, err := Marshal(rec)
	require.NoError(t, err)
	want, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	var back testRecord
	require.NoError(t, Unmarshal(got, &back))
	assert.Equal(t, rec, back)

	indented, err := MarshalIndent(rec, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n  \"id\": 1")
}

func TestMarshalToWriterDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, map[string]string{"name": "<b>"}))
	assert.Equal(t, "{\"name\":\"<b>\"}\n", buf.String())
}

func TestMarshalArray(t *testing.T) {
	ep := newEncoderPool(t, 0)

	out, err := ep.MarshalArray(generateTestRecords(3))
	require.NoError(t, err)

	var back []testRecord
	require.NoError(t, json.Unmarshal(out, &back))
	require.Len(t, back, 3)
	assert.Equal(t, 2, back[2].ID)

	empty, err := ep.MarshalArray(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestMarshalLines(t *testing.T) {
	out, err := MarshalLines(generateTestRecords(4))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 4)
	for i, line := range lines {
		var rec testRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, i, rec.ID)
	}
}

func TestEncodeErrorLeavesBufferClean(t *testing.T) {
	ep := newEncoderPool(t, 0)

	_, err := ep.MarshalArray([]any{1, make(chan int)})
	require.Error(t, err)

	e, err := ep.Get()
	require.NoError(t, err)
	assert.Zero(t, e.Len())
	require.NoError(t, ep.Put(e))
}

func TestEncoderPoolReusesEncoders(t *testing.T) {
	ep := newEncoderPool(t, 0)

	for range 10 {
		_, err := ep.MarshalLines(generateTestRecords(2))
		require.NoError(t, err)
	}

	stats := ep.Stats()
	assert.Equal(t, uint64(1), stats.Created)
	assert.Equal(t, uint64(9), stats.Reused)
	assert.Equal(t, 1, stats.Passive)
}

func TestEncoderPoolDiscardsOversized(t *testing.T) {
	ep := newEncoderPool(t, 8192)

	_, err := ep.MarshalLines(generateTestRecords(1000))
	require.NoError(t, err)

	stats := ep.Stats()
	assert.Equal(t, uint64(1), stats.Destroyed)
	assert.Zero(t, stats.All)
}

func TestEncoderPoolRejectsReuse(t *testing.T) {
	_, err := NewEncoderPool(pool.DefaultConfig(), 0)
	require.ErrorIs(t, err, pool.ErrInvalidArgument)
}

func TestStreamingEncoder(t *testing.T) {
	for _, tc := range []struct {
		name    string
		isArray bool
		want    string
	}{
		{"array", true, `[{"id":1},{"id":2}]`},
		{"lines", false, "{\"id\":1}\n{\"id\":2}\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			se, err := NewStreamingEncoder(&buf, tc.isArray)
			require.NoError(t, err)

			require.NoError(t, se.Encode(map[string]int{"id": 1}))
			require.NoError(t, se.Encode(map[string]int{"id": 2}))
			require.NoError(t, se.Close())
			require.NoError(t, se.Close())

			assert.Equal(t, tc.want, buf.String())
			assert.Error(t, se.Encode(1))
		})
	}
}

func BenchmarkStdMarshal(b *testing.B) {
	records := generateTestRecords(100)
	for b.Loop() {
		if _, err := json.Marshal(records); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPooledMarshalArray(b *testing.B) {
	records := generateTestRecords(100)
	for b.Loop() {
		if _, err := MarshalArray(records); err != nil {
			b.Fatal(err)
		}
	}
}
