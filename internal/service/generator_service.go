package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/model"
)

const maxHistoryTurns = 10

type Completer interface {
	Complete(ctx context.Context, msgs []ai.Message, params *ai.SamplingParams) (string, error)
	StreamComplete(ctx context.Context, msgs []ai.Message, params *ai.SamplingParams) (<-chan ai.StreamChunk, error)
}

type GenerateOptions struct {
	// Language selects the prompt template, "vi" (default) or "en".
	Language string
	History  []model.ConversationTurn
	Params   *ai.SamplingParams
}

// GeneratorService assembles the RAG prompt and runs the LLM. It never
// persists history; callers pass the turns they want considered.
type GeneratorService struct {
	chat Completer
}

func NewGeneratorService(chat Completer) *GeneratorService {
	return &GeneratorService{chat: chat}
}

func (g *GeneratorService) Generate(ctx context.Context, domain *Domain, question string, contexts []string, opts GenerateOptions) (string, error) {
	msgs := buildMessages(domain, question, contexts, opts)
	return g.chat.Complete(ctx, msgs, defaultParams(opts.Params))
}

// Stream yields answer deltas. A failed stream ends with a bracketed
// error marker instead of an abrupt close, so clients see something.
func (g *GeneratorService) Stream(ctx context.Context, domain *Domain, question string, contexts []string, opts GenerateOptions) (<-chan string, error) {
	msgs := buildMessages(domain, question, contexts, opts)
	inner, err := g.chat.StreamComplete(ctx, msgs, defaultParams(opts.Params))
	if err != nil {
		return nil, err
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for chunk := range inner {
			if chunk.Err != nil {
				select {
				case out <- fmt.Sprintf("[ERROR: %v]", chunk.Err):
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- chunk.Delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func defaultParams(params *ai.SamplingParams) *ai.SamplingParams {
	if params != nil {
		return params
	}
	temp := 0.7
	return &ai.SamplingParams{Temperature: &temp}
}

func buildMessages(domain *Domain, question string, contexts []string, opts GenerateOptions) []ai.Message {
	system := systemInstruction(opts.Language)
	if domain != nil && domain.PromptContext != "" {
		system += "\n\n" + domain.PromptContext
	}
	var sb strings.Builder
	sb.WriteString(historySection(opts.History))
	sb.WriteString(contextSection(contexts, opts.Language))
	sb.WriteString(questionSection(question, opts.Language))
	return []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: sb.String()},
	}
}

func systemInstruction(language string) string {
	if language == "en" {
		return "You are an intelligent assistant for the university. " +
			"Your task is to answer questions based on the information provided below.\n\n" +
			"Rules:\n" +
			"1. Only answer based on the provided information\n" +
			"2. If there's insufficient information, clearly state that\n" +
			"3. Keep answers concise, accurate, and easy to understand"
	}
	return "Bạn là trợ lý AI thông minh của trường. " +
		"Nhiệm vụ của bạn là trả lời câu hỏi dựa trên các thông tin được cung cấp bên dưới.\n\n" +
		"Quy tắc:\n" +
		"1. Chỉ trả lời dựa trên thông tin được cung cấp\n" +
		"2. Nếu không có đủ thông tin, hãy nói rõ điều đó\n" +
		"3. Trả lời ngắn gọn, chính xác, dễ hiểu\n" +
		"4. Sử dụng tiếng Việt có dấu chuẩn"
}

func contextSection(contexts []string, language string) string {
	header := "THÔNG TIN THAM KHẢO:\n"
	if language == "en" {
		header = "REFERENCE INFORMATION:\n"
	}
	blocks := make([]string, 0, len(contexts))
	for i, ctx := range contexts {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", i+1, ctx))
	}
	return header + strings.Join(blocks, "\n\n")
}

func questionSection(question, language string) string {
	if language == "en" {
		return fmt.Sprintf("\n\nQUESTION: %s\n\nANSWER:", question)
	}
	return fmt.Sprintf("\n\nCÂU HỎI: %s\n\nTRẢ LỜI:", question)
}

// historySection renders at most the last ten turns, plus an instruction
// to resolve references like "it" or "the previous one" against them.
func historySection(history []model.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	lines := []string{"=== Conversation History ==="}
	for _, turn := range history {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, capitalize(role)+": "+content)
	}
	lines = append(lines, "=== End of Conversation ===")
	lines = append(lines,
		"Use the conversation history to understand context and references "+
			"(like \"it\", \"that\", \"the previous one\") when interpreting the current question.")
	return strings.Join(lines, "\n") + "\n\n"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
