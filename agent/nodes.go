package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/suviet/agent/llm"
	"github.com/suviet/agent/types"
	"go.uber.org/zap"
)

// Node implementations. Every external call is caught at the node
// boundary and converted to a degraded-but-valid delta; only the
// orchestrator's own control logic may fail a turn.

// classify labels the latest user turn. On any failure it falls back to
// "history" — the classifier prompt's own tie-break rule — so a broken
// classifier degrades to an extra lookup, never an unanswered turn.
func (a *Agent) classify(ctx context.Context, state *ConversationState) ClassifyDelta {
	userInput := latestUserInput(state.Messages)
	delta := ClassifyDelta{QueryType: types.QueryHistory, UserInput: userInput}

	var label struct {
		QueryType string `json:"query_type"`
	}
	req := a.chatRequest(append(
		[]types.Message{types.NewSystemMessage(classifierSystemPrompt)},
		state.Messages...,
	))
	if err := a.provider.CompleteStructured(ctx, req, &label); err != nil {
		a.logger.Warn("classification failed, falling back to history route", zap.Error(err))
		a.metrics.NodeFailures.WithLabelValues(string(NodeClassify)).Inc()
		return delta
	}

	qt := types.QueryType(strings.ToLower(strings.TrimSpace(label.QueryType)))
	if !qt.Valid() {
		a.logger.Warn("classifier returned unrecognized label, falling back to history route",
			zap.String("label", label.QueryType))
		a.metrics.NodeFailures.WithLabelValues(string(NodeClassify)).Inc()
		return delta
	}
	delta.QueryType = qt
	return delta
}

// searchHistory fans out to the hybrid retriever and the web search tool
// concurrently. Each source's failure is caught independently and
// degrades to an empty result for that source only.
func (a *Agent) searchHistory(ctx context.Context, state *ConversationState) SearchDelta {
	var (
		wg    sync.WaitGroup
		delta SearchDelta
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		docs, err := a.retriever.Retrieve(ctx, state.UserInput, a.cfg.SourceFilter)
		if err != nil {
			a.logger.Warn("hybrid retrieval failed", zap.Error(err))
			a.metrics.RetrievalSourceErrors.WithLabelValues("hybrid").Inc()
			return
		}
		delta.RetrievedDocuments = docs
	}()
	go func() {
		defer wg.Done()
		results, err := a.web.Search(ctx, state.UserInput)
		if err != nil {
			a.logger.Warn("web search failed", zap.Error(err))
			a.metrics.RetrievalSourceErrors.WithLabelValues("web").Inc()
			return
		}
		delta.WebSearchResults = results
	}()
	wg.Wait()

	return delta
}

// handleChitchat answers a casual turn directly. A failure substitutes
// the fixed apology.
func (a *Agent) handleChitchat(ctx context.Context, state *ConversationState) AnswerDelta {
	req := a.chatRequest(append(
		[]types.Message{types.NewSystemMessage(chitchatSystemPrompt)},
		state.Messages...,
	))
	answer, err := a.provider.Complete(ctx, req)
	if err != nil || strings.TrimSpace(answer) == "" {
		a.logger.Warn("chitchat reply failed", zap.Error(err))
		a.metrics.NodeFailures.WithLabelValues(string(NodeHandleChitchat)).Inc()
		return AnswerDelta{FinalAnswer: ApologyAnswer, Failed: true}
	}
	return AnswerDelta{FinalAnswer: answer}
}

// synthesize composes the final answer strictly from the gathered
// evidence plus conversation history. With no evidence at all it emits
// the fixed insufficient-information sentinel without calling the model:
// there is nothing to ground an answer on, and the grounding contract
// forbids free-form guessing.
func (a *Agent) synthesize(ctx context.Context, state *ConversationState) AnswerDelta {
	if !state.HasEvidence() {
		a.logger.Info("no evidence available, emitting sentinel",
			zap.String("query", state.UserInput))
		return AnswerDelta{FinalAnswer: SentinelInsufficientInfo}
	}

	// The token budget covers the combined evidence text: when both
	// sources contributed, each block gets half; a lone source keeps the
	// whole budget.
	ragBudget, webBudget := a.cfg.EvidenceTokenBudget, a.cfg.EvidenceTokenBudget
	if len(state.RetrievedDocuments) > 0 && len(state.WebSearchResults) > 0 {
		ragBudget = a.cfg.EvidenceTokenBudget / 2
		webBudget = a.cfg.EvidenceTokenBudget - ragBudget
	}
	system := fmt.Sprintf(historyAnswerSystemPrompt,
		a.formatEvidence(state.RetrievedDocuments, ragBudget),
		a.formatEvidence(state.WebSearchResults, webBudget),
	)
	messages := append(
		[]types.Message{types.NewSystemMessage(system)},
		state.Messages...,
	)

	answer, err := a.provider.Complete(ctx, a.chatRequest(messages))
	if err != nil || strings.TrimSpace(answer) == "" {
		a.logger.Warn("answer synthesis failed, substituting apology", zap.Error(err))
		a.metrics.NodeFailures.WithLabelValues(string(NodeSynthesize)).Inc()
		return AnswerDelta{FinalAnswer: ApologyAnswer, Failed: true}
	}
	return AnswerDelta{FinalAnswer: answer}
}

// reflect grades the synthesized answer. An evaluator failure counts as
// a good verdict: retrying would spend another full retrieval+synthesis
// cycle only to re-grade with the same broken evaluator.
func (a *Agent) reflect(ctx context.Context, state *ConversationState) ReflectDelta {
	var result struct {
		ReflectResult string `json:"reflect_result"`
		Eval          string `json:"eval"`
	}
	req := a.chatRequest([]types.Message{
		types.NewSystemMessage(reflectionSystemPrompt),
		types.NewUserMessage(fmt.Sprintf("Câu hỏi: %s\nTrả lời: %s", state.UserInput, state.FinalAnswer)),
	})
	if err := a.provider.CompleteStructured(ctx, req, &result); err != nil {
		a.logger.Warn("reflection failed, accepting answer", zap.Error(err))
		a.metrics.NodeFailures.WithLabelValues(string(NodeReflect)).Inc()
		return ReflectDelta{Evaluation: Evaluation{
			Verdict:  types.VerdictGood,
			Critique: "evaluator unavailable",
		}}
	}

	verdict := types.VerdictGood
	if strings.Contains(strings.ToLower(result.Eval), "bad") {
		verdict = types.VerdictBad
	}
	return ReflectDelta{Evaluation: Evaluation{
		Verdict:  verdict,
		Critique: result.ReflectResult,
	}}
}

func (a *Agent) chatRequest(messages []types.Message) *llm.ChatRequest {
	return &llm.ChatRequest{
		Messages:    messages,
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		TopP:        a.cfg.TopP,
		Timeout:     a.cfg.NodeTimeout,
	}
}

// formatEvidence renders evidence items for the synthesis prompt, one
// block per item with its source tag, truncated to budget tokens.
func (a *Agent) formatEvidence(items []types.EvidenceItem, budget int) string {
	if len(items) == 0 {
		return "(trống)"
	}

	var sb strings.Builder
	for i, item := range items {
		tag := "RAG"
		if item.Source == types.SourceWeb {
			tag = "WEB"
		}
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, tag, item.Content)
	}
	return a.truncateToBudget(sb.String(), budget)
}

// truncateToBudget caps text at budget tokens, counting with cl100k when
// the tokenizer loaded and approximating with runes otherwise.
func (a *Agent) truncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return text
	}

	if a.encoder != nil {
		tokens := a.encoder.Encode(text, nil, nil)
		if len(tokens) <= budget {
			return text
		}
		return a.encoder.Decode(tokens[:budget])
	}

	// Rough fallback: a token is ~4 runes of mixed Vietnamese text.
	runes := []rune(text)
	if len(runes) <= budget*4 {
		return text
	}
	return string(runes[:budget*4])
}

// latestUserInput returns the content of the most recent user message.
func latestUserInput(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
