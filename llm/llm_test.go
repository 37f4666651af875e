package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object",
			in:   `{"query_type": "history"}`,
			want: `{"query_type": "history"}`,
		},
		{
			name: "prose around object",
			in:   "Sure! Here is the result: {\"query_type\": \"chitchat\"} Hope that helps.",
			want: `{"query_type": "chitchat"}`,
		},
		{
			name: "code fence",
			in:   "```json\n{\"eval\": \"good\"}\n```",
			want: `{"eval": "good"}`,
		},
		{
			name: "nested object",
			in:   `prefix {"a": {"b": 1}, "c": 2} suffix`,
			want: `{"a": {"b": 1}, "c": 2}`,
		},
		{
			name: "no object returns input",
			in:   "just text",
			want: "just text",
		},
		{
			name: "unbalanced returns input",
			in:   `{"a": 1`,
			want: `{"a": 1`,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestUnmarshalReply(t *testing.T) {
	t.Parallel()

	var out struct {
		ReflectResult string `json:"reflect_result"`
		Eval          string `json:"eval"`
	}
	reply := "Đây là đánh giá:\n```json\n{\"reflect_result\": \"thiếu niên đại\", \"eval\": \"bad\"}\n```"
	require.NoError(t, UnmarshalReply(reply, &out))
	assert.Equal(t, "thiếu niên đại", out.ReflectResult)
	assert.Equal(t, "bad", out.Eval)
}

func TestUnmarshalReplyInvalid(t *testing.T) {
	t.Parallel()

	var out map[string]any
	assert.Error(t, UnmarshalReply("hoàn toàn không phải JSON", &out))
}
