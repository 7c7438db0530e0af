package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-lens-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrames(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		fmt.Fprintf(w, "data: %s\n\n", frame)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func chunkFrame(text string) string {
	b, _ := json.Marshal(map[string]interface{}{"type": "chunk", "data": text})
	return string(b)
}

func sourcesFrame(sources ...string) string {
	b, _ := json.Marshal(map[string]interface{}{"type": "sources", "data": sources})
	return string(b)
}

func TestFetcher_AccumulatesChunksAndForwardsSources(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chatbot/stream-vector", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		writeFrames(w,
			chunkFrame("Doc: "),
			sourcesFrame("filing.pdf", "memo.docx"),
			`{"type":"chunk",`, // broken frame is ignored
			`{"type":"unknown","data":"ignored"}`,
			chunkFrame("see "),
			chunkFrame("filing"),
		)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL+"/chatbot", logger.NewNopLogger())

	var chunks []string
	var sources [][]string
	result := f.Fetch(context.Background(), "/stream-vector",
		map[string]string{"query": "q", "language": "English"},
		func(text string) { chunks = append(chunks, text) },
		func(s []string) { sources = append(sources, s) },
	)

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]string{"query": "q", "language": "English"}, gotBody)
	assert.Equal(t, "Doc: see filing", result)
	assert.Equal(t, []string{"Doc: ", "Doc: see ", "Doc: see filing"}, chunks)
	assert.Equal(t, [][]string{{"filing.pdf", "memo.docx"}}, sources)

	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i], chunks[i-1]), "chunk %d shrank", i)
	}
	assert.Equal(t, chunks[len(chunks)-1], result)
}

func TestFetcher_NilSourcesCallbackIgnoresSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, sourcesFrame("a"), chunkFrame("DB: 10M"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, logger.NewNopLogger())
	result := f.Fetch(context.Background(), "/stream-db", map[string]string{}, func(string) {}, nil)

	assert.Equal(t, "DB: 10M", result)
}

func TestFetcher_NonSuccessStatusIsAbsorbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, logger.NewNopLogger())

	called := false
	result := f.Fetch(context.Background(), "/stream-web", map[string]string{}, func(string) { called = true }, nil)
	assert.Equal(t, "", result)
	assert.False(t, called)

	_, err := f.Stream(context.Background(), "/stream-web", map[string]string{}, nil, nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Equal(t, "/stream-web", netErr.Endpoint)
}

func TestFetcher_UnreachableHostIsAbsorbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewFetcher(url, logger.NewNopLogger())
	assert.Equal(t, "", f.Fetch(context.Background(), "/stream-db", map[string]string{}, nil, nil))

	_, err := f.Stream(context.Background(), "/stream-db", map[string]string{}, nil, nil)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFetcher_MarshalErrorIsAbsorbed(t *testing.T) {
	f := NewFetcher("http://127.0.0.1:1", logger.NewNopLogger())
	result := f.Fetch(context.Background(), "/stream-db", map[string]interface{}{"bad": make(chan int)}, nil, nil)
	assert.Equal(t, "", result)
}

func TestFetcher_DeadlineKeepsPartialText(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, chunkFrame("partial"))
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewFetcher(srv.URL, logger.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var last string
	result, err := f.Stream(ctx, "/stream-web", map[string]string{}, func(text string) { last = text }, nil)

	require.Error(t, err)
	assert.Equal(t, "partial", result)
	assert.Equal(t, last, result)
}

func TestFetcher_OversizedFrameDoesNotEndStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w,
			chunkFrame("a"),
			`{"type":"bogus","data":"`+strings.Repeat("z", 2*1024*1024)+`"}`,
			sourcesFrame("report.pdf"),
			chunkFrame("b"),
		)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, logger.NewNopLogger())

	var sources []string
	text, err := f.Stream(context.Background(), "/stream-web", map[string]string{"query": "q"},
		func(string) {},
		func(s []string) { sources = append(sources, s...) },
	)

	require.NoError(t, err)
	assert.Equal(t, "ab", text)
	assert.Equal(t, []string{"report.pdf"}, sources)
}
