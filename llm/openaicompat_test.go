package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suviet/agent/types"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *OpenAICompatProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompatProvider(OpenAICompatConfig{
		ProviderName: "test",
		APIKey:       "sk-test",
		BaseURL:      srv.URL,
		DefaultModel: "default-model",
	}, nil)
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestCompleteSendsRequestAndReturnsReply(t *testing.T) {
	t.Parallel()

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "default-model", body.Model, "empty request model falls back to the default")
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)

		json.NewEncoder(w).Encode(chatReply("Hồ Quý Ly sinh năm 1336."))
	})

	reply, err := provider.Complete(context.Background(), &ChatRequest{
		Messages: []types.Message{
			types.NewSystemMessage("Bạn là trợ lý lịch sử."),
			types.NewUserMessage("Hồ Quý Ly sinh năm bao nhiêu?"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hồ Quý Ly sinh năm 1336.", reply)
}

func TestCompleteServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := provider.Complete(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("câu hỏi")},
	})
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrUpstreamError, typed.Code)
	assert.True(t, typed.Retryable)
}

func TestCompleteAPIError(t *testing.T) {
	t.Parallel()

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid model", "type": "invalid_request_error"},
		})
	})

	_, err := provider.Complete(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("câu hỏi")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestCompleteStructuredParsesFencedJSON(t *testing.T) {
	t.Parallel()

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply("```json\n{\"query_type\": \"history\"}\n```"))
	})

	var out struct {
		QueryType string `json:"query_type"`
	}
	err := provider.CompleteStructured(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("câu hỏi")},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "history", out.QueryType)
}

func TestCompleteStructuredRejectsNonJSONReply(t *testing.T) {
	t.Parallel()

	provider := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply("xin lỗi, tôi không thể trả lời dạng JSON"))
	})

	var out map[string]any
	err := provider.CompleteStructured(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("câu hỏi")},
	}, &out)
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}
