package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suviet/agent/checkpoint"
	"github.com/suviet/agent/testutil/mocks"
	"github.com/suviet/agent/types"
	"pgregory.net/rapid"
)

func newTestAgent(provider *mocks.MockProvider, retriever *mocks.MockRetriever, web *mocks.MockSearcher) *Agent {
	return New(provider, retriever, web, checkpoint.NewMemoryStore(), DefaultConfig(), nil, nil)
}

func historyState(input string) *ConversationState {
	return &ConversationState{Messages: []types.Message{types.NewUserMessage(input)}}
}

func someEvidence() []types.EvidenceItem {
	return []types.EvidenceItem{
		{Content: "Hồ Quý Ly sinh năm 1336.", Source: types.SourceVector},
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	t.Parallel()

	state := &ConversationState{QueryType: types.QueryHistory}
	for i := 0; i < 10; i++ {
		node, err := Route(state)
		require.NoError(t, err)
		assert.Equal(t, NodeSearchHistory, node)
	}

	state.QueryType = types.QueryChitchat
	node, err := Route(state)
	require.NoError(t, err)
	assert.Equal(t, NodeHandleChitchat, node)
}

func TestRouteRejectsUnknownQueryType(t *testing.T) {
	t.Parallel()

	_, err := Route(&ConversationState{QueryType: "smalltalk"})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownRoute, types.GetErrorCode(err))
}

func TestChitchatTurnSkipsRetrieval(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "chitchat"}`).
		Queue("Chào bạn! Mình khỏe, cảm ơn bạn.")
	retriever := mocks.NewMockRetriever(someEvidence()...)
	web := mocks.NewMockSearcher()
	a := newTestAgent(provider, retriever, web)

	state := historyState("Chào bạn, hôm nay bạn sao?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, "Chào bạn! Mình khỏe, cảm ơn bạn.", state.FinalAnswer)
	assert.Equal(t, 0, retriever.Calls(), "chitchat must not touch retrieval")
	assert.Equal(t, 0, web.Calls(), "chitchat must not touch web search")
	assert.Equal(t, 0, state.Iterations(), "chitchat answers are not reflected on")
}

func TestHistoryTurnGoodVerdictStopsAfterOneCycle(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue("Hồ Quý Ly sinh năm 1336. (RAG)").
		Queue(`{"reflect_result": "chính xác", "eval": "good"}`)
	retriever := mocks.NewMockRetriever(someEvidence()...)
	web := mocks.NewMockSearcher()
	a := newTestAgent(provider, retriever, web)

	state := historyState("Hồ Quý Ly sinh năm bao nhiêu?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, "Hồ Quý Ly sinh năm 1336. (RAG)", state.FinalAnswer)
	assert.Equal(t, 1, state.Iterations())
	assert.Equal(t, 1, retriever.Calls())
	assert.Equal(t, 1, web.Calls())
}

func TestHistoryTurnBadVerdictsExhaustBudget(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().Queue(`{"query_type": "history"}`)
	for i := 0; i < 3; i++ {
		provider.Queue(fmt.Sprintf("đáp án lần %d", i+1))
		provider.Queue(`{"reflect_result": "thiếu chi tiết", "eval": "bad"}`)
	}
	retriever := mocks.NewMockRetriever(someEvidence()...)
	web := mocks.NewMockSearcher()
	a := newTestAgent(provider, retriever, web)

	state := historyState("Danh sách các vua triều Nguyễn và niên đại")
	require.NoError(t, a.executeTurn(context.Background(), state))

	// Budget exhausted: the last synthesized answer ships despite the verdict.
	assert.Equal(t, "đáp án lần 3", state.FinalAnswer)
	assert.Equal(t, 3, state.Iterations())
	assert.Equal(t, 3, retriever.Calls(), "each retry re-runs retrieval")
}

func TestHistoryTurnRetriesReuseOriginalQuery(t *testing.T) {
	t.Parallel()

	const question = "Trận Bạch Đằng diễn ra năm nào?"
	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue("đáp án 1").
		Queue(`{"reflect_result": "sai", "eval": "bad"}`).
		Queue("đáp án 2").
		Queue(`{"reflect_result": "đúng", "eval": "good"}`)
	retriever := mocks.NewMockRetriever(someEvidence()...)
	web := mocks.NewMockSearcher()
	a := newTestAgent(provider, retriever, web)

	state := historyState(question)
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, 2, retriever.Calls())
	assert.Equal(t, question, state.UserInput, "retries never mutate the query")
}

func TestHistoryTurnNoEvidenceEmitsSentinel(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue(`{"reflect_result": "không có gì để thêm", "eval": "good"}`)
	retriever := mocks.NewMockRetriever() // empty
	web := mocks.NewMockSearcher()       // empty
	a := newTestAgent(provider, retriever, web)

	state := historyState("Sự kiện X năm 1850?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, SentinelInsufficientInfo, state.FinalAnswer)
	// classify + reflect only: the sentinel is emitted without a model call.
	assert.Equal(t, 2, provider.Calls())
}

func TestClassifierFailureFallsBackToHistory(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		QueueError(errors.New("upstream 503")).
		Queue("Hồ Quý Ly sinh năm 1336. (RAG)").
		Queue(`{"reflect_result": "ok", "eval": "good"}`)
	retriever := mocks.NewMockRetriever(someEvidence()...)
	web := mocks.NewMockSearcher()
	a := newTestAgent(provider, retriever, web)

	state := historyState("Hồ Quý Ly sinh năm bao nhiêu?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, types.QueryHistory, state.QueryType)
	assert.Equal(t, 1, retriever.Calls(), "fallback still takes the history path")
	assert.Equal(t, "Hồ Quý Ly sinh năm 1336. (RAG)", state.FinalAnswer)
}

func TestClassifierGarbageLabelFallsBackToHistory(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "banter"}`).
		Queue("câu trả lời").
		Queue(`{"reflect_result": "ok", "eval": "good"}`)
	retriever := mocks.NewMockRetriever(someEvidence()...)
	a := newTestAgent(provider, retriever, mocks.NewMockSearcher())

	state := historyState("Câu hỏi bất kỳ")
	require.NoError(t, a.executeTurn(context.Background(), state))
	assert.Equal(t, types.QueryHistory, state.QueryType)
}

func TestSynthesisFailureSubstitutesApologyAndStops(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		QueueError(errors.New("model unavailable"))
	retriever := mocks.NewMockRetriever(someEvidence()...)
	a := newTestAgent(provider, retriever, mocks.NewMockSearcher())

	state := historyState("Hồ Quý Ly sinh năm bao nhiêu?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, ApologyAnswer, state.FinalAnswer)
	assert.Equal(t, 0, state.Iterations(), "an apology is not reflected on")
	assert.Equal(t, 2, provider.Calls())
}

func TestEvaluatorFailureAcceptsAnswer(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue("đáp án").
		QueueError(errors.New("evaluator down"))
	retriever := mocks.NewMockRetriever(someEvidence()...)
	a := newTestAgent(provider, retriever, mocks.NewMockSearcher())

	state := historyState("Câu hỏi lịch sử")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, "đáp án", state.FinalAnswer)
	assert.Equal(t, types.VerdictGood, state.EvalVerdict)
	assert.Equal(t, 1, state.Iterations())
	assert.Equal(t, 1, retriever.Calls(), "a broken evaluator must not trigger retries")
}

func TestRetrievalFanOutToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	webItems := []types.EvidenceItem{{Content: "kết quả web", Source: types.SourceWeb}}
	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue("đáp án từ web (WEB)").
		Queue(`{"reflect_result": "ok", "eval": "good"}`)
	retriever := mocks.NewMockRetriever().WithError(errors.New("pgvector down"))
	web := mocks.NewMockSearcher(webItems...)
	a := newTestAgent(provider, retriever, web)

	state := historyState("Câu hỏi lịch sử")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Empty(t, state.RetrievedDocuments)
	assert.Equal(t, webItems, state.WebSearchResults)
	assert.Equal(t, "đáp án từ web (WEB)", state.FinalAnswer, "one live source is enough to answer")
}

func TestHistoryTurnAppliesConfiguredSourceFilter(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().
		Queue(`{"query_type": "history"}`).
		Queue("đáp án").
		Queue(`{"reflect_result": "ok", "eval": "good"}`)
	retriever := mocks.NewMockRetriever(someEvidence()...)

	cfg := DefaultConfig()
	cfg.SourceFilter = []string{"dai_viet_su_ky.md", "viet_nam_su_luoc.md"}
	a := New(provider, retriever, mocks.NewMockSearcher(), checkpoint.NewMemoryStore(), cfg, nil, nil)

	state := historyState("Hồ Quý Ly sinh năm bao nhiêu?")
	require.NoError(t, a.executeTurn(context.Background(), state))

	assert.Equal(t, cfg.SourceFilter, retriever.LastSources(),
		"retrieval must be scoped to the configured source files")
}

func TestSynthesisEvidenceBudgetCoversBothSources(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("lịch sử việt nam ", 50)
	provider := mocks.NewMockProvider().Queue("đáp án")
	a := newTestAgent(provider, mocks.NewMockRetriever(), mocks.NewMockSearcher())
	a.cfg.EvidenceTokenBudget = 8
	a.encoder = nil // rune approximation: 4 runes per token

	state := historyState("câu hỏi")
	state.UserInput = "câu hỏi"
	state.RetrievedDocuments = []types.EvidenceItem{{Content: long, Source: types.SourceVector}}
	state.WebSearchResults = []types.EvidenceItem{{Content: long, Source: types.SourceWeb}}

	delta := a.synthesize(context.Background(), state)
	require.Equal(t, "đáp án", delta.FinalAnswer)

	// The combined evidence text in the prompt stays within one budget,
	// not one budget per source.
	require.NotEmpty(t, provider.Requests)
	system := provider.Requests[0].Messages[0].Content
	template := fmt.Sprintf(historyAnswerSystemPrompt, "", "")
	evidenceRunes := len([]rune(system)) - len([]rune(template))
	assert.LessOrEqual(t, evidenceRunes, a.cfg.EvidenceTokenBudget*4)

	// A lone source keeps the whole budget.
	provider2 := mocks.NewMockProvider().Queue("đáp án")
	b := newTestAgent(provider2, mocks.NewMockRetriever(), mocks.NewMockSearcher())
	b.cfg.EvidenceTokenBudget = 8
	b.encoder = nil

	solo := historyState("câu hỏi")
	solo.UserInput = "câu hỏi"
	solo.RetrievedDocuments = []types.EvidenceItem{{Content: long, Source: types.SourceVector}}
	b.synthesize(context.Background(), solo)

	soloSystem := provider2.Requests[0].Messages[0].Content
	soloTemplate := fmt.Sprintf(historyAnswerSystemPrompt, "", "(trống)")
	soloEvidence := len([]rune(soloSystem)) - len([]rune(soloTemplate))
	assert.Greater(t, soloEvidence, (b.cfg.EvidenceTokenBudget/2)*4,
		"a single source is not constrained to the half budget")
	assert.LessOrEqual(t, soloEvidence, b.cfg.EvidenceTokenBudget*4)
}

func TestCancelledContextAbortsTurn(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAgent(mocks.NewMockProvider(), mocks.NewMockRetriever(), mocks.NewMockSearcher())
	err := a.executeTurn(ctx, historyState("câu hỏi"))
	require.ErrorIs(t, err, context.Canceled)
}

// Whatever verdict sequence the evaluator produces, a history turn
// terminates within the iteration budget and ships a non-empty answer.
func TestTurnAlwaysTerminatesWithinBudget(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		verdicts := rapid.SliceOfN(rapid.SampledFrom([]string{"good", "bad"}), 1, 10).Draw(t, "verdicts")

		provider := mocks.NewMockProvider().Queue(`{"query_type": "history"}`)
		for _, v := range verdicts {
			provider.Queue("một đáp án")
			provider.Queue(`{"reflect_result": "x", "eval": "` + v + `"}`)
		}
		retriever := mocks.NewMockRetriever(someEvidence()...)
		a := newTestAgent(provider, retriever, mocks.NewMockSearcher())

		state := historyState("câu hỏi")
		if err := a.executeTurn(context.Background(), state); err != nil {
			t.Fatalf("turn failed: %v", err)
		}

		if state.Iterations() > a.cfg.MaxIterations {
			t.Fatalf("iterations %d exceed budget %d", state.Iterations(), a.cfg.MaxIterations)
		}
		if state.FinalAnswer == "" {
			t.Fatal("turn ended without an answer")
		}
	})
}
