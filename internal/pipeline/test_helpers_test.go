package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/scrape"
	"github.com/Yibooo/mission-control/internal/search"
)

// stubProvider replays a script of model replies. A nil error with reply ""
// simulates an empty completion; exhausting the script fails the call.
type stubProvider struct {
	mu      sync.Mutex
	script  []stubReply
	prompts []string
}

type stubReply struct {
	text string
	err  error
}

func replies(texts ...string) *stubProvider {
	p := &stubProvider{}
	for _, text := range texts {
		p.script = append(p.script, stubReply{text: text})
	}
	return p
}

func (p *stubProvider) push(text string, err error) *stubProvider {
	p.script = append(p.script, stubReply{text: text, err: err})
	return p
}

func (p *stubProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, req.Prompt)
	if len(p.script) == 0 {
		return "", errors.New("stub provider script exhausted")
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next.text, next.err
}

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

// stubScraper dispatches on the requested URL.
type stubScraper struct {
	mu       sync.Mutex
	handler  func(req scrape.Request) (*scrape.Result, error)
	requests []scrape.Request
}

func (s *stubScraper) Scrape(ctx context.Context, req scrape.Request) (*scrape.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.handler(req)
}

type stubSearcher struct {
	results map[string][]search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int, excludeDomains []string) ([]search.Result, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if results, ok := s.results[query]; ok {
		return results, nil
	}
	return nil, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.PipelineEvent
}

func (p *capturingPublisher) Publish(event events.PipelineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.events))
	for _, event := range p.events {
		kinds = append(kinds, event.Type)
	}
	return kinds
}
