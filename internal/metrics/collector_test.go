package metrics

import (
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpIndexSearch, 10*time.Millisecond)
	c.RecordTiming(OpIndexSearch, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.IndexSearch)
	assert.Equal(t, int64(2), snap.IndexSearch.Count)
	assert.Equal(t, int64(40), snap.IndexSearch.TotalTimeMs)
	assert.Equal(t, int64(10), snap.IndexSearch.MinTimeMs)
	assert.Equal(t, int64(30), snap.IndexSearch.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.IndexSearch.AvgTimeMs, 0.001)
	assert.Nil(t, snap.IndexSearch.TotalInputTokens)
	assert.Nil(t, snap.Embedding, "untouched operations are omitted")
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, 100*time.Millisecond, 120, 40)
	c.RecordLLMUsage(OpLLMGenerate, 300*time.Millisecond, 80, 60)

	snap := c.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	require.NotNil(t, snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(200), *snap.LLMGenerate.TotalInputTokens)
	assert.Equal(t, int64(100), *snap.LLMGenerate.TotalOutputTokens)
	assert.Equal(t, int64(80), *snap.LLMGenerate.MinInputTokens)
	assert.Equal(t, int64(60), *snap.LLMGenerate.MaxOutputTokens)
}

func TestCollector_RecordAnswer(t *testing.T) {
	c := NewCollector()
	c.RecordAnswer("documents")
	c.RecordAnswer("documents")
	c.RecordAnswer("AI knowledge")

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Answers["documents"])
	assert.Equal(t, int64(1), snap.Answers["AI knowledge"])
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpQuery, time.Second)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 1, 1)
	c.RecordAnswer("unknown")
	c.Time(OpQuery, time.Now())
	assert.NotNil(t, c.Snapshot().Answers)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpEmbedding, time.Millisecond)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().Embedding.Count)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpQuery, 50*time.Millisecond)
	c.RecordAnswer("documents")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docqa_operation_duration_seconds_count{op="query"} 1`)
	assert.Contains(t, string(body), `docqa_answers_total{source="documents"} 1`)
}
