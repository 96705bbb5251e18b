package tracelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink collects records; it checks that only one goroutine writes at a time.
type memorySink struct {
	mu      sync.Mutex
	writing bool
	records []Record
	closed  int
	failAt  int
	err     error
	delay   time.Duration
}

func (s *memorySink) Write(rec Record) error {
	s.mu.Lock()
	if s.writing {
		s.mu.Unlock()
		panic("concurrent sink write")
	}
	s.writing = true
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing = false
	if s.err != nil && len(s.records) == s.failAt {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *memorySink) snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

func TestQueue_PreservesSubmissionOrder(t *testing.T) {
	sink := &memorySink{}
	q := NewQueue(sink)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Submit(mustRecord(t, KindAction, i)))
	}
	require.NoError(t, q.FinishAndJoin(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, 100)
	for i, rec := range got {
		assert.Equal(t, uint64(i+1), rec.Seq)
		assert.JSONEq(t, fmt.Sprint(i), string(rec.Payload))
	}
	assert.Equal(t, 1, sink.closed)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	sink := &memorySink{}
	q := NewQueue(sink)

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Submit(mustRecord(t, KindDependency, []int{p, i})))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, q.FinishAndJoin(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, producers*perProducer)
	// Per-producer program order survives the merge.
	next := make([]int, producers)
	for i, rec := range got {
		assert.Equal(t, uint64(i+1), rec.Seq)
		var pi []int
		require.NoError(t, rec.Decode(&pi))
		assert.Equal(t, next[pi[0]], pi[1])
		next[pi[0]]++
	}
}

func TestQueue_SubmitDoesNotWaitForWrites(t *testing.T) {
	sink := &memorySink{delay: 20 * time.Millisecond}
	q := NewQueue(sink)
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Submit(mustRecord(t, KindState, i)))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	require.NoError(t, q.FinishAndJoin(context.Background()))
	assert.Len(t, sink.snapshot(), 10)
}

func TestQueue_SubmitAfterFinish(t *testing.T) {
	q := NewQueue(&memorySink{})
	require.NoError(t, q.FinishAndJoin(context.Background()))
	assert.ErrorIs(t, q.Submit(mustRecord(t, KindState, 1)), ErrQueueClosed)
	// Joining twice is fine.
	assert.NoError(t, q.FinishAndJoin(context.Background()))
}

func TestQueue_WriteErrorIsSticky(t *testing.T) {
	boom := &IOError{Op: "write", Err: errors.New("disk full")}
	sink := &memorySink{failAt: 1, err: boom}
	q := NewQueue(sink)
	require.NoError(t, q.Submit(mustRecord(t, KindState, 0)))
	require.NoError(t, q.Submit(mustRecord(t, KindAction, "a")))
	require.NoError(t, q.Submit(mustRecord(t, KindState, 1)))

	assert.Eventually(t, func() bool { return q.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, q.Submit(mustRecord(t, KindAction, "b")), boom)

	err := q.FinishAndJoin(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, sink.snapshot(), 1)
	assert.Equal(t, 1, sink.closed)
}

func TestQueue_FinishRespectsContext(t *testing.T) {
	sink := &memorySink{delay: 50 * time.Millisecond}
	q := NewQueue(sink)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(mustRecord(t, KindState, i)))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.FinishAndJoin(ctx), context.DeadlineExceeded)

	require.NoError(t, q.FinishAndJoin(context.Background()))
	assert.Len(t, sink.snapshot(), 5)
}

func TestQueue_WritesThroughWriterSink(t *testing.T) {
	var buf bytes.Buffer
	q := NewQueue(NewWriterSink(&buf))
	require.NoError(t, q.Submit(mustRecord(t, KindState, map[string]int{"count": 0})))
	require.NoError(t, q.FinishAndJoin(context.Background()))
	assert.Equal(t, `{"seq":1,"kind":"state","payload":{"count":0}}`+"\n", buf.String())
}
