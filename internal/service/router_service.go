package service

import (
	"context"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// RouterService picks a domain for each question by keyword scoring.
// Registry order matters: more specific domains come first and win ties.
type RouterService struct {
	domains  []*Domain
	fallback *Domain
}

func NewRouterService() *RouterService {
	return &RouterService{
		domains: []*Domain{
			admissionDomain(),
			tuitionDomain(),
			regulationDomain(),
		},
		fallback: generalDomain(),
	}
}

// score counts keywords present in the question, with a half-point bonus
// per extra occurrence of the same keyword.
func scoreDomain(domain *Domain, questionLower string) float64 {
	var score float64
	for _, keyword := range domain.Keywords {
		kw := strings.ToLower(keyword)
		count := strings.Count(questionLower, kw)
		if count == 0 {
			continue
		}
		score += 1 + float64(count-1)*0.5
	}
	return score
}

func (r *RouterService) Route(ctx context.Context, question string) *Domain {
	questionLower := strings.ToLower(question)
	var best *Domain
	var bestScore float64
	for _, domain := range r.domains {
		score := scoreDomain(domain, questionLower)
		if score > bestScore {
			best = domain
			bestScore = score
		}
	}
	if best == nil {
		best = r.fallback
	}
	logutil.GetLogger(ctx).Debug("routed question",
		zap.String("domain", best.Name),
		zap.Float64("score", bestScore),
	)
	return best
}

// RouteMulti returns every matching domain ordered by score, capped at
// maxDomains. No match falls back to the general domain alone.
func (r *RouterService) RouteMulti(ctx context.Context, question string, maxDomains int) []*Domain {
	if maxDomains <= 0 {
		maxDomains = 2
	}
	questionLower := strings.ToLower(question)
	type scored struct {
		domain *Domain
		score  float64
		order  int
	}
	var matches []scored
	for i, domain := range r.domains {
		if score := scoreDomain(domain, questionLower); score > 0 {
			matches = append(matches, scored{domain: domain, score: score, order: i})
		}
	}
	if len(matches) == 0 {
		return []*Domain{r.fallback}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})
	if len(matches) > maxDomains {
		matches = matches[:maxDomains]
	}
	domains := make([]*Domain, 0, len(matches))
	for _, m := range matches {
		domains = append(domains, m.domain)
	}
	return domains
}

// Domains lists every routable domain, the fallback last.
func (r *RouterService) Domains() []*Domain {
	out := make([]*Domain, 0, len(r.domains)+1)
	out = append(out, r.domains...)
	return append(out, r.fallback)
}

// DomainByName resolves a caller-forced domain; unknown names return nil.
func (r *RouterService) DomainByName(name string) *Domain {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, domain := range r.Domains() {
		if domain.Name == name {
			return domain
		}
	}
	return nil
}
