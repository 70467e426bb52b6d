package port

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticInvoker struct {
	text string
	err  error
}

func (s staticInvoker) Invoke(context.Context, []*schema.Message) (string, error) {
	return s.text, s.err
}

type nativeStream struct{ staticInvoker }

func (n nativeStream) InvokeStream(_ context.Context, _ []*schema.Message, onChunk func(string)) (string, error) {
	onChunk(n.text)
	return n.text, nil
}

func TestAsStreamInvoker_ReplaysInRuneSlices(t *testing.T) {
	text := strings.Repeat("章", 250)
	s := AsStreamInvoker(staticInvoker{text: text}, 100)

	var chunks []string
	got, err := s.InvokeStream(context.Background(), nil, func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, text, got)
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, len([]rune(chunks[0])))
	assert.Equal(t, 50, len([]rune(chunks[2])))
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestAsStreamInvoker_KeepsNativeStreaming(t *testing.T) {
	native := nativeStream{staticInvoker{text: "abc"}}
	s := AsStreamInvoker(native, 1)
	_, ok := s.(nativeStream)
	assert.True(t, ok)
}

func TestAsStreamInvoker_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := AsStreamInvoker(staticInvoker{err: boom}, 10)

	called := false
	_, err := s.InvokeStream(context.Background(), nil, func(string) { called = true })
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestSplitRunes(t *testing.T) {
	assert.Nil(t, SplitRunes("", 3))
	assert.Equal(t, []string{"第一章", "第二"}, SplitRunes("第一章第二", 3))
}
