package narrative

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   []anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = append(m.params, params)
	return m.response, m.err
}

func newMockMessage(texts ...string) *anthropic.Message {
	msg := &anthropic.Message{}
	for _, text := range texts {
		msg.Content = append(msg.Content, anthropic.ContentBlockUnion{Type: "text", Text: text})
	}
	return msg
}

func swapClient(t *testing.T, m *mockMessager) {
	t.Helper()
	prev := newAnthropicClient
	newAnthropicClient = func(string) AnthropicMessager { return m }
	t.Cleanup(func() { newAnthropicClient = prev })
}

func TestAnthropicGeneratorGenerate(t *testing.T) {
	m := &mockMessager{response: newMockMessage("[SUMMARY]\n", "Ava is progressing.")}
	swapClient(t, m)
	t.Setenv("OTREPORT_NO_LLM", "")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	gen, err := NewAnthropicGeneratorFromEnv("", 0.3)
	require.NoError(t, err)
	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_20250514), gen.ModelName())

	out, err := gen.Generate(context.Background(), "prompt", 1500)
	require.NoError(t, err)
	assert.Equal(t, "[SUMMARY]\nAva is progressing.", out)
	require.Len(t, m.params, 1)
	assert.Equal(t, int64(1500), m.params[0].MaxTokens)
	require.Len(t, m.params[0].System, 1)
	assert.Equal(t, systemPrompt, m.params[0].System[0].Text)
}

func TestAnthropicGeneratorError(t *testing.T) {
	m := &mockMessager{err: errors.New("status code: 500 internal")}
	swapClient(t, m)
	t.Setenv("OTREPORT_NO_LLM", "")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	gen, err := NewAnthropicGeneratorFromEnv("claude-test", 0)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "prompt", 10)
	require.Error(t, err)
	assert.Equal(t, failureServer, classifyTransportError(err))
}

func TestNewAnthropicGeneratorFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicGeneratorFromEnv("", 0)
	require.Error(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "ignored")
	t.Setenv("OTREPORT_NO_LLM", "yes")
	_, err = NewAnthropicGeneratorFromEnv("", 0)
	assert.ErrorIs(t, err, ErrGenerationDisabled)
}

func TestClassifyTransportError(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want failureClass
	}{
		{err: context.DeadlineExceeded, want: failureTimeout},
		{err: context.Canceled, want: failureCanceled},
		{err: errors.New("status code: 429 too many requests"), want: failureRateLimit},
		{err: errors.New("status code: 400 bad request"), want: failureClient},
		{err: errors.New("failed after 5 retries while waiting 4 seconds"), want: failureServer},
	} {
		assert.Equal(t, tc.want, classifyTransportError(tc.err), tc.err.Error())
	}
}
