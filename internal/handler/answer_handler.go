package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/unichat-ai/unichat/internal/ai"
	"github.com/unichat-ai/unichat/internal/model"
	"github.com/unichat-ai/unichat/internal/pkg/errcode"
	"github.com/unichat-ai/unichat/internal/pkg/response"
	"github.com/unichat-ai/unichat/internal/service"
)

// AnswerDefaults are the server-side retrieval and budget settings used
// when a request leaves them unset.
type AnswerDefaults struct {
	TopK           int
	ScoreThreshold float32
	TokenBudget    int
}

type AnswerHandler struct {
	answers  *service.AnswerService
	router   *service.RouterService
	defaults AnswerDefaults
}

func NewAnswerHandler(answers *service.AnswerService, router *service.RouterService, defaults AnswerDefaults) *AnswerHandler {
	return &AnswerHandler{answers: answers, router: router, defaults: defaults}
}

type answerRequest struct {
	Question       string             `json:"question"`
	Domain         string             `json:"domain"`
	Language       string             `json:"language"`
	TopK           int                `json:"top_k"`
	ScoreThreshold float32            `json:"score_threshold"`
	TokenBudget    int                `json:"token_budget"`
	ModelID        string             `json:"model_id"`
	Temperature    *float64           `json:"temperature"`
	MaxTokens      *int               `json:"max_tokens"`
	History        []conversationTurn `json:"history"`
}

type conversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type citationItem struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Score         float32 `json:"score"`
	Text          string  `json:"text"`
}

func (r *answerRequest) options(defaults AnswerDefaults) service.AnswerOptions {
	if r.TopK == 0 {
		r.TopK = defaults.TopK
	}
	if r.ScoreThreshold == 0 {
		r.ScoreThreshold = defaults.ScoreThreshold
	}
	if r.TokenBudget == 0 {
		r.TokenBudget = defaults.TokenBudget
	}
	history := make([]model.ConversationTurn, 0, len(r.History))
	for _, turn := range r.History {
		history = append(history, model.ConversationTurn{Role: turn.Role, Content: turn.Content})
	}
	var params *ai.SamplingParams
	if r.Temperature != nil || r.MaxTokens != nil || r.ModelID != "" {
		params = &ai.SamplingParams{Model: r.ModelID, Temperature: r.Temperature, MaxTokens: r.MaxTokens}
	}
	return service.AnswerOptions{
		Domain:         r.Domain,
		TopK:           r.TopK,
		ScoreThreshold: r.ScoreThreshold,
		TokenBudget:    r.TokenBudget,
		Language:       r.Language,
		History:        history,
		Params:         params,
	}
}

func toCitations(hits []model.RetrievalHit) []citationItem {
	items := make([]citationItem, 0, len(hits))
	for _, hit := range hits {
		item := citationItem{ChunkID: hit.ChunkID, Score: hit.Score}
		if hit.Chunk != nil {
			item.DocumentID = hit.Chunk.DocumentID
			item.Text = hit.Chunk.Text
		}
		if hit.Document != nil {
			item.DocumentTitle = hit.Document.Title
		}
		items = append(items, item)
	}
	return items
}

func (h *AnswerHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	result, err := h.answers.Answer(c.Request.Context(), req.Question, req.options(h.defaults))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"answer":    result.Answer,
		"domain":    result.Domain,
		"namespace": result.Namespace,
		"citations": toCitations(result.Citations),
	})
}

// AnswerStream pushes the answer as server-sent events: a meta event with
// the routed domain and citations, delta events with answer text, then done.
func (h *AnswerHandler) AnswerStream(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Question == "" {
		response.Error(c, errcode.ErrInvalid, "question is required")
		return
	}
	stream, meta, err := h.answers.AnswerStream(c.Request.Context(), req.Question, req.options(h.defaults))
	if err != nil {
		handleError(c, err)
		return
	}
	response.SSEHeaders(c)
	c.SSEvent("meta", gin.H{
		"domain":    meta.Domain,
		"namespace": meta.Namespace,
		"citations": toCitations(meta.Citations),
	})
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		delta, ok := <-stream
		if !ok {
			c.SSEvent("done", gin.H{})
			return false
		}
		c.SSEvent("delta", gin.H{"text": delta})
		return true
	})
}

func (h *AnswerHandler) Domains(c *gin.Context) {
	domains := h.router.Domains()
	items := make([]gin.H, 0, len(domains))
	for _, domain := range domains {
		items = append(items, gin.H{
			"name":         domain.Name,
			"display_name": domain.DisplayName,
			"namespace":    domain.Namespace,
			"keywords":     domain.Keywords,
		})
	}
	response.Success(c, gin.H{"domains": items})
}
