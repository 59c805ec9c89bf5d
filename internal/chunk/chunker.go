package chunk

import (
	"context"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Strategy string

const (
	StrategyFixed    Strategy = "fixed"
	StrategySemantic Strategy = "semantic"
	StrategySentence Strategy = "sentence"
	StrategyMarkdown Strategy = "markdown"
)

const (
	DefaultSize    = 512
	DefaultOverlap = 50
)

// Config holds per-call chunking parameters. Always passed explicitly;
// never stored as mutable state on a shared service.
type Config struct {
	Size     int      `json:"size"`
	Overlap  int      `json:"overlap"`
	Strategy Strategy `json:"strategy"`
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Strategy == "" {
		c.Strategy = StrategyFixed
	}
	return c
}

var sentenceRegex = regexp.MustCompile(`(?s)(.*?[.!?])\s+`)
var paragraphRegex = regexp.MustCompile(`\n\n+`)

// Split cuts text into ordered, non-empty chunks. The slice order equals
// document order and becomes each chunk's sequence index.
func Split(ctx context.Context, text string, cfg Config) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.withDefaults()
	logger := logutil.GetLogger(ctx)
	if cfg.Overlap >= cfg.Size {
		capped := cfg.Size / 4
		logger.Warn("chunk overlap >= size, capping",
			zap.Int("size", cfg.Size),
			zap.Int("overlap", cfg.Overlap),
			zap.Int("capped", capped),
		)
		cfg.Overlap = capped
	}
	var chunks []string
	switch cfg.Strategy {
	case StrategyFixed:
		chunks = splitFixed(text, cfg.Size, cfg.Overlap)
	case StrategySemantic:
		chunks = splitSemantic(text, cfg.Size, cfg.Overlap)
	case StrategySentence:
		chunks = splitSentences(text, cfg.Size)
	case StrategyMarkdown:
		chunks = splitMarkdown(text, cfg.Size, cfg.Overlap)
	default:
		logger.Warn("unknown chunk strategy, using fixed", zap.String("strategy", string(cfg.Strategy)))
		chunks = splitFixed(text, cfg.Size, cfg.Overlap)
	}
	logger.Debug("text chunked",
		zap.String("strategy", string(cfg.Strategy)),
		zap.Int("size", cfg.Size),
		zap.Int("overlap", cfg.Overlap),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

func splitFixed(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func splitSemantic(text string, size, overlap int) []string {
	paragraphs := paragraphRegex.Split(text, -1)
	var chunks []string
	var current string
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current != "" && len(current)+len(para) > size {
			chunks = append(chunks, current)
			// carry the tail of the finished chunk as context glue;
			// slice runes so multibyte text is never cut mid-sequence
			tail := []rune(current)
			if overlap > 0 && len(tail) > overlap {
				current = string(tail[len(tail)-overlap:]) + " " + para
			} else {
				current = para
			}
			continue
		}
		if current != "" {
			current += "\n\n" + para
		} else {
			current = para
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func splitSentences(text string, size int) []string {
	sentences := splitIntoSentences(text)
	var chunks []string
	var current string
	for _, sent := range sentences {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		if current != "" && len(current)+len(sent) > size {
			chunks = append(chunks, current)
			current = sent
			continue
		}
		if current != "" {
			current += " " + sent
		} else {
			current = sent
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func splitIntoSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := sentenceRegex.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		sentences = append(sentences, rest[loc[2]:loc[3]])
		rest = rest[loc[1]:]
	}
	if strings.TrimSpace(rest) != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
