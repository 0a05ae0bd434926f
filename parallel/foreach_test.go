package parallel

import "errors"
import "sync/atomic"
import "testing"

import "github.com/stretchr/testify/assert"

func TestForEachVisitsAll(t *testing.T) {
	var seen [100]atomic.Int32
	ForEach(len(seen), 7, func(i int) {
		seen[i].Add(1)
	})
	for i := range seen {
		assert.Equal(t, int32(1), seen[i].Load(), "index %d", i)
	}
}

func TestForEachEmpty(t *testing.T) {
	ForEach(0, 3, func(int) {
		t.Fatal("body called for empty loop")
	})
}

func TestChunksCoverRows(t *testing.T) {
	var rows [103]atomic.Int32
	err := Chunks(len(rows), 10, func(lo, hi int) error {
		assert.LessOrEqual(t, hi-lo, 10)
		for i := lo; i < hi; i++ {
			rows[i].Add(1)
		}
		return nil
	})
	assert.NoError(t, err)
	for i := range rows {
		assert.Equal(t, int32(1), rows[i].Load(), "row %d", i)
	}
}

func TestChunksError(t *testing.T) {
	boom := errors.New("boom")
	err := Chunks(50, 5, func(lo, hi int) error {
		if lo == 20 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, Workers(), 1)
}
