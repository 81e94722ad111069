package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"inkwell/internal/content/models"
	"inkwell/internal/event"
)

// Result is one search hit.
type Result struct {
	ID    uuid.UUID `json:"id"`
	Slug  string    `json:"slug"`
	Title string    `json:"title"`
}

type document struct {
	result Result
	terms  map[string]struct{}
}

// Index is an in-memory inverted index over published content. It subscribes
// at priority 30: after the cache settles, before outbound notifications.
// Only published items are searchable; updates to drafts and deletions drop
// the item from the index.
type Index struct {
	logger *slog.Logger

	mu    sync.RWMutex
	docs  map[uuid.UUID]*document
	terms map[string]map[uuid.UUID]struct{}
}

func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		logger: logger,
		docs:   make(map[uuid.UUID]*document),
		terms:  make(map[string]map[uuid.UUID]struct{}),
	}
}

func (i *Index) Name() string { return "search-index" }

func (i *Index) Priority() int { return 30 }

func (i *Index) ShouldObserve(payloadType string) bool {
	return payloadType == "*models.Content"
}

func (i *Index) OnCreated(ctx context.Context, e *event.Event) error {
	// Drafts are not searchable.
	return nil
}

func (i *Index) OnUpdated(ctx context.Context, e *event.Event) error {
	c, err := contentPayload(e)
	if err != nil {
		return err
	}
	if c.Status == models.StatusPublished {
		i.index(c)
	} else {
		i.remove(c.ID)
	}
	return nil
}

func (i *Index) OnPublished(ctx context.Context, e *event.Event) error {
	c, err := contentPayload(e)
	if err != nil {
		return err
	}
	i.index(c)
	i.logger.DebugContext(ctx, "indexed content", "content_id", c.ID, "slug", c.Slug)
	return nil
}

func (i *Index) OnDeleted(ctx context.Context, e *event.Event) error {
	c, err := contentPayload(e)
	if err != nil {
		return err
	}
	i.remove(c.ID)
	return nil
}

// Search returns the published items matching every term in the query,
// ordered by slug.
func (i *Index) Search(query string) []Result {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	var matched map[uuid.UUID]struct{}
	for _, term := range terms {
		ids, ok := i.terms[term]
		if !ok {
			return nil
		}
		if matched == nil {
			matched = make(map[uuid.UUID]struct{}, len(ids))
			for id := range ids {
				matched[id] = struct{}{}
			}
			continue
		}
		for id := range matched {
			if _, ok := ids[id]; !ok {
				delete(matched, id)
			}
		}
	}

	out := make([]Result, 0, len(matched))
	for id := range matched {
		out = append(out, i.docs[id].result)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Slug < out[b].Slug })
	return out
}

// ServeSearch answers GET /search?q=... with the matching results.
func (i *Index) ServeSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results := i.Search(q)
	if results == nil {
		results = []Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

// Size reports how many items are currently indexed.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

func (i *Index) index(c *models.Content) {
	terms := make(map[string]struct{})
	for _, source := range []string{c.Title, c.Body, strings.Join(c.Tags, " ")} {
		for _, term := range tokenize(source) {
			terms[term] = struct{}{}
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.removeLocked(c.ID)
	doc := &document{
		result: Result{ID: c.ID, Slug: c.Slug, Title: c.Title},
		terms:  terms,
	}
	i.docs[c.ID] = doc
	for term := range terms {
		ids, ok := i.terms[term]
		if !ok {
			ids = make(map[uuid.UUID]struct{})
			i.terms[term] = ids
		}
		ids[c.ID] = struct{}{}
	}
}

func (i *Index) remove(id uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeLocked(id)
}

func (i *Index) removeLocked(id uuid.UUID) {
	doc, ok := i.docs[id]
	if !ok {
		return
	}
	for term := range doc.terms {
		ids := i.terms[term]
		delete(ids, id)
		if len(ids) == 0 {
			delete(i.terms, term)
		}
	}
	delete(i.docs, id)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func contentPayload(e *event.Event) (*models.Content, error) {
	c, ok := e.Payload().(*models.Content)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %s", e.PayloadType())
	}
	return c, nil
}
