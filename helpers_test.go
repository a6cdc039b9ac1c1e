package searchsync

import (
	"context"
	"errors"
	"sync"
)

// testEntity is a minimal indexable entity.
type testEntity struct {
	ns, name, pk string
	content      string
	indexable    bool
}

func (e *testEntity) Identifier() Identifier {
	return Identifier{Namespace: e.ns, Name: e.name, PK: e.pk}
}

func newPost(pk, content string) *testEntity {
	return &testEntity{ns: "blog", name: "post", pk: pk, content: content, indexable: true}
}

var postType = EntityType{Namespace: "blog", Name: "post"}
var authorType = EntityType{Namespace: "blog", Name: "author"}

// testIndex indexes testEntity values. Prepare fails for entities whose
// content is "boom", which tests use to exercise per-entity isolation.
type testIndex struct {
	BaseIndex
	entityType EntityType
	group      string
	version    string
	related    []RelatedSource
}

func newPostIndex() *testIndex {
	return &testIndex{entityType: postType}
}

func (idx *testIndex) EntityType() EntityType { return idx.entityType }

func (idx *testIndex) IndexGroup() string { return idx.group }

func (idx *testIndex) IndexVersion() string { return idx.version }

func (idx *testIndex) RelatedSources() []RelatedSource { return idx.related }

func (idx *testIndex) ShouldIndex(e Entity) bool {
	te, ok := e.(*testEntity)
	return !ok || te.indexable
}

func (idx *testIndex) FieldDefinitions() []FieldDefinition {
	return []FieldDefinition{
		{
			Name: "content", Type: TextType, Document: true,
			Prepare: func(ctx context.Context, e Entity) (interface{}, error) {
				te := e.(*testEntity)
				if te.content == "boom" {
					return nil, errors.New("prepare exploded")
				}
				return te.content, nil
			},
		},
		{
			Name: "published", Type: BooleanType,
			Prepare: func(ctx context.Context, e Entity) (interface{}, error) {
				return e.(*testEntity).indexable, nil
			},
		},
	}
}

// fakeSearchClient is an in-memory SearchClient with programmable
// failures.
type fakeSearchClient struct {
	mu sync.Mutex

	createdIndexes []string
	pushedMappings map[string]Schema
	deployed       map[string]Schema // returned by GetMapping
	docs           map[string]map[string]Document

	putMappingErr error
	bulkErr       error
	bulkItemErrs  map[string]string // doc id -> error string
	deleteErr     error
	searchErr     error

	searchCalls   int
	searchResults []*SearchResponse // consumed in order; empty falls back to {}
	deletedDocs   []string
	refreshed     []string
	dbqQueries    []string
}

func newFakeSearchClient() *fakeSearchClient {
	return &fakeSearchClient{
		pushedMappings: make(map[string]Schema),
		deployed:       make(map[string]Schema),
		docs:           make(map[string]map[string]Document),
	}
}

func (c *fakeSearchClient) CreateIndex(ctx context.Context, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createdIndexes = append(c.createdIndexes, index)
	return nil
}

func (c *fakeSearchClient) DeleteIndex(ctx context.Context, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, index)
	delete(c.deployed, index)
	return nil
}

func (c *fakeSearchClient) PutMapping(ctx context.Context, index string, schema Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putMappingErr != nil {
		return c.putMappingErr
	}
	c.pushedMappings[index] = schema
	c.deployed[index] = schema
	return nil
}

func (c *fakeSearchClient) GetMapping(ctx context.Context, index string) (Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	schema, ok := c.deployed[index]
	if !ok {
		return nil, WithContext(ErrNotFound, map[string]interface{}{"index": index})
	}
	return schema, nil
}

func (c *fakeSearchClient) BulkIndex(ctx context.Context, index string, docs []Document) (*BulkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bulkErr != nil {
		return nil, c.bulkErr
	}
	result := &BulkResult{}
	for _, doc := range docs {
		item := BulkItem{ID: doc.ID()}
		if msg, failed := c.bulkItemErrs[doc.ID()]; failed {
			item.Error = msg
		} else {
			if c.docs[index] == nil {
				c.docs[index] = make(map[string]Document)
			}
			c.docs[index][doc.ID()] = doc
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (c *fakeSearchClient) Delete(ctx context.Context, index, docID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletedDocs = append(c.deletedDocs, docID)
	if c.docs[index] != nil {
		delete(c.docs[index], docID)
	}
	return nil
}

func (c *fakeSearchClient) DeleteByQuery(ctx context.Context, index, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbqQueries = append(c.dbqQueries, query)
	return nil
}

func (c *fakeSearchClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchCalls++
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	if len(c.searchResults) > 0 {
		resp := c.searchResults[0]
		c.searchResults = c.searchResults[1:]
		return resp, nil
	}
	return &SearchResponse{}, nil
}

func (c *fakeSearchClient) MoreLikeThis(ctx context.Context, index, docID, field string, from, size int) (*SearchResponse, error) {
	return &SearchResponse{}, nil
}

func (c *fakeSearchClient) Refresh(ctx context.Context, index string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = append(c.refreshed, index)
	return nil
}

func (c *fakeSearchClient) document(index, id string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[index][id]
	return doc, ok
}

// fakeQueue is an in-memory Queue with a programmable Put failure.
type fakeQueue struct {
	mu     sync.Mutex
	putErr error
	bodies [][]byte
	acked  []string
}

func (q *fakeQueue) Put(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.putErr != nil {
		return q.putErr
	}
	q.bodies = append(q.bodies, body)
	return nil
}

func (q *fakeQueue) Open(ctx context.Context) (QueueSession, error) {
	return &fakeSession{queue: q}, nil
}

func (q *fakeQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bodies)
}

type fakeSession struct {
	queue *fakeQueue
	next  int
}

func (s *fakeSession) Next(ctx context.Context) (*Message, error) {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	if s.next >= len(s.queue.bodies) {
		return nil, WithContext(ErrTimeout, nil)
	}
	msg := &Message{ID: "msg-" + string(rune('0'+s.next)), Body: s.queue.bodies[s.next]}
	s.next++
	return msg, nil
}

func (s *fakeSession) Ack(ctx context.Context, msg *Message) error {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	s.queue.acked = append(s.queue.acked, msg.ID)
	return nil
}

func (s *fakeSession) Close() error { return nil }

// flakyStore fails Get with a transient error a configurable number of
// times before delegating to the wrapped store.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
	getCalls int
}

func (s *flakyStore) Get(ctx context.Context, id Identifier) (Entity, error) {
	s.mu.Lock()
	s.getCalls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"identifier": id.String(),
		})
	}
	return s.MemoryStore.Get(ctx, id)
}
