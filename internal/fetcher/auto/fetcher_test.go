package auto

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/headless/detector"
)

type stubFetcher struct {
	body   []byte
	err    error
	calls  int
	closed bool
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	return s.body, s.err
}

func (s *stubFetcher) Close() error {
	s.closed = true
	return nil
}

func TestFetchKeepsStaticBody(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: []byte(`<a href="/docs/2024/r.pdf">Release</a>`)}
	started := 0
	f := New(static, func() (PageFetcher, error) {
		started++
		return &stubFetcher{}, nil
	}, detector.NewHeuristic(0), zap.NewNop())

	body, err := f.Fetch(context.Background(), "https://ir.example.com/")
	require.NoError(t, err)
	assert.Contains(t, string(body), "r.pdf")
	assert.Zero(t, started)
	require.NoError(t, f.Close())
}

func TestFetchPromotesScriptRenderedPage(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: []byte(`<div id="__next"></div>`)}
	rendered := &stubFetcher{body: []byte(`<a href="/docs/2024/r.pdf">Release</a>`)}
	started := 0
	f := New(static, func() (PageFetcher, error) {
		started++
		return rendered, nil
	}, detector.NewHeuristic(0), zap.NewNop())

	for i := 0; i < 2; i++ {
		body, err := f.Fetch(context.Background(), "https://ir.example.com/")
		require.NoError(t, err)
		assert.Contains(t, string(body), "r.pdf")
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 2, rendered.calls)

	require.NoError(t, f.Close())
	assert.True(t, rendered.closed)
}

func TestFetchPromotesOnStaticError(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{err: errors.New("status 403")}
	rendered := &stubFetcher{body: []byte("<html></html>")}
	f := New(static, func() (PageFetcher, error) { return rendered, nil }, detector.NewHeuristic(0), nil)

	_, err := f.Fetch(context.Background(), "https://ir.example.com/")
	require.NoError(t, err)
	assert.Equal(t, 1, rendered.calls)
}

func TestFetchReportsBrowserStartFailure(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: nil}
	f := New(static, func() (PageFetcher, error) {
		return nil, fmt.Errorf("%w: exec: chrome not found", headless.ErrFetcher)
	}, detector.NewHeuristic(0), nil)

	_, err := f.Fetch(context.Background(), "https://ir.example.com/")
	require.ErrorIs(t, err, headless.ErrFetcher)
}
