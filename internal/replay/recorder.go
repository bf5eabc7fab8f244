package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JesseHenson/ortho-intel-sub001/internal/websearch"
)

type Mode string

const (
	ModeRecord Mode = "record"
	ModeReplay Mode = "replay"
)

type searchFunc interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Searcher records or replays web searches. In replay mode next may be nil.
type Searcher struct {
	next  searchFunc
	store *Store
	mode  Mode
}

func NewSearcher(next searchFunc, store *Store, mode Mode) *Searcher {
	return &Searcher{next: next, store: store, mode: mode}
}

func (s *Searcher) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	if s.mode == ModeReplay {
		it, err := s.store.Get(ctx, KindSearch, query)
		if err != nil {
			return nil, err
		}
		if it.Error != "" {
			return nil, errors.New(it.Error)
		}
		var results []websearch.Result
		if err := json.Unmarshal([]byte(it.Response), &results); err != nil {
			return nil, fmt.Errorf("decode recorded search: %w", err)
		}
		return results, nil
	}

	results, callErr := s.next.Search(ctx, query)
	it := Interaction{Kind: KindSearch, Request: query}
	if callErr != nil {
		it.Error = callErr.Error()
	} else {
		raw, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("encode search results: %w", err)
		}
		it.Response = string(raw)
	}
	if err := s.store.Put(ctx, it); err != nil {
		return nil, err
	}
	return results, callErr
}

// Synthesizer records or replays model completions. In replay mode next may be nil.
type Synthesizer struct {
	next  completer
	store *Store
	mode  Mode
	model string
}

func NewSynthesizer(next completer, store *Store, mode Mode) *Synthesizer {
	model := "replay"
	if next != nil {
		model = next.ModelName()
	}
	return &Synthesizer{next: next, store: store, mode: mode, model: model}
}

func (s *Synthesizer) ModelName() string { return s.model }

func (s *Synthesizer) Complete(ctx context.Context, prompt string) (string, error) {
	if s.mode == ModeReplay {
		it, err := s.store.Get(ctx, KindCompletion, prompt)
		if err != nil {
			return "", err
		}
		if it.Error != "" {
			return "", errors.New(it.Error)
		}
		return it.Response, nil
	}

	text, callErr := s.next.Complete(ctx, prompt)
	it := Interaction{Kind: KindCompletion, Request: prompt, Response: text}
	if callErr != nil {
		it.Error = callErr.Error()
	}
	if err := s.store.Put(ctx, it); err != nil {
		return "", err
	}
	return text, callErr
}
