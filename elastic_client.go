package searchsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olivere/elastic/v7"
)

// ElasticClient implements SearchClient over an Elasticsearch 7
// cluster. It translates the engine-neutral schema attributes to and
// from the modern mapping shape, so the rest of the package never sees
// Elasticsearch request bodies.
type ElasticClient struct {
	client *elastic.Client
	logger Logger
}

// NewElasticClient creates a client for the given cluster URL.
// Sniffing is disabled: single-node and containerized deployments
// advertise unreachable internal addresses.
func NewElasticClient(url string) (*ElasticClient, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
	)
	if err != nil {
		return nil, WithContext(ErrBackendUnavailable, map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
	}
	return &ElasticClient{client: client, logger: &NoOpLogger{}}, nil
}

// NewElasticClientFrom wraps an already configured elastic.Client.
func NewElasticClientFrom(client *elastic.Client) *ElasticClient {
	return &ElasticClient{client: client, logger: &NoOpLogger{}}
}

// WithLogger sets the logger.
func (c *ElasticClient) WithLogger(logger Logger) *ElasticClient {
	c.logger = logger
	return c
}

// CreateIndex creates the index if it does not exist yet.
func (c *ElasticClient) CreateIndex(ctx context.Context, index string) error {
	exists, err := c.client.IndexExists(index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = c.client.CreateIndex(index).Do(ctx)
	if err != nil && elastic.IsConflict(err) {
		// Lost a create race; the index exists now, which is all we
		// wanted.
		return nil
	}
	return err
}

// DeleteIndex removes the whole index. Deleting an absent index is not
// an error.
func (c *ElasticClient) DeleteIndex(ctx context.Context, index string) error {
	_, err := c.client.DeleteIndex(index).Do(ctx)
	if elastic.IsNotFound(err) {
		return nil
	}
	return err
}

// PutMapping pushes the schema as field mappings.
func (c *ElasticClient) PutMapping(ctx context.Context, index string, schema Schema) error {
	properties := make(map[string]interface{}, len(schema))
	for name, mapping := range schema {
		properties[name] = toElasticMapping(mapping)
	}
	_, err := c.client.PutMapping().
		Index(index).
		BodyJson(map[string]interface{}{"properties": properties}).
		Do(ctx)
	return err
}

// GetMapping fetches the deployed mapping and translates it back to
// schema attributes for conflict comparison.
func (c *ElasticClient) GetMapping(ctx context.Context, index string) (Schema, error) {
	raw, err := c.client.GetMapping().Index(index).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, WithContext(ErrNotFound, map[string]interface{}{
				"index": index,
			})
		}
		return nil, err
	}

	indexMapping, ok := raw[index].(map[string]interface{})
	if !ok {
		return Schema{}, nil
	}
	mappings, ok := indexMapping["mappings"].(map[string]interface{})
	if !ok {
		return Schema{}, nil
	}
	properties, ok := mappings["properties"].(map[string]interface{})
	if !ok {
		return Schema{}, nil
	}

	schema := Schema{}
	for name, value := range properties {
		prop, ok := value.(map[string]interface{})
		if !ok {
			continue
		}
		schema[name] = fromElasticMapping(prop)
	}
	return schema, nil
}

// toElasticMapping translates schema attributes to a modern field
// mapping. "string" splits into text and keyword depending on whether
// the field is analyzed.
func toElasticMapping(m FieldMapping) map[string]interface{} {
	out := make(map[string]interface{})

	switch {
	case m.Type == "string" && m.Index == IndexNotAnalyzed:
		out["type"] = "keyword"
	case m.Type == "string":
		out["type"] = "text"
		if m.Analyzer != "" {
			out["analyzer"] = m.Analyzer
		}
		if m.IndexAnalyzer != "" {
			out["analyzer"] = m.IndexAnalyzer
		}
		if m.SearchAnalyzer != "" {
			out["search_analyzer"] = m.SearchAnalyzer
		}
	default:
		out["type"] = m.Type
	}

	if m.Store == "yes" {
		out["store"] = true
	}
	return out
}

// fromElasticMapping is the inverse translation, normalizing deployed
// mappings into the attribute shape conflict detection compares.
func fromElasticMapping(prop map[string]interface{}) FieldMapping {
	m := FieldMapping{}

	switch prop["type"] {
	case "keyword":
		m.Type = "string"
		m.Index = IndexNotAnalyzed
	case "text":
		m.Type = "string"
		if search, ok := prop["search_analyzer"].(string); ok {
			m.SearchAnalyzer = search
		}
		if analyzer, ok := prop["analyzer"].(string); ok {
			// When a separate search analyzer is set, the wire
			// "analyzer" is the index-time one. Route it back to the
			// attribute the schema builder sets, so an unchanged
			// autocomplete field compares as conflict-free.
			if m.SearchAnalyzer != "" {
				m.IndexAnalyzer = analyzer
			} else {
				m.Analyzer = analyzer
			}
		}
	default:
		if t, ok := prop["type"].(string); ok {
			m.Type = t
		}
	}

	if stored, ok := prop["store"].(bool); ok && stored {
		m.Store = "yes"
	}
	return m
}

// BulkIndex writes documents in one bulk request, reporting per-item
// outcomes.
func (c *ElasticClient) BulkIndex(ctx context.Context, index string, docs []Document) (*BulkResult, error) {
	bulk := c.client.Bulk()
	for _, doc := range docs {
		bulk.Add(elastic.NewBulkIndexRequest().
			Index(index).
			Id(doc.ID()).
			Doc(doc))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	for _, item := range resp.Indexed() {
		bulkItem := BulkItem{ID: item.Id}
		if item.Error != nil {
			bulkItem.Error = fmt.Sprintf("%s: %s", item.Error.Type, item.Error.Reason)
		}
		result.Items = append(result.Items, bulkItem)
	}
	return result, nil
}

// Delete removes one document. Deleting an absent document is not an
// error.
func (c *ElasticClient) Delete(ctx context.Context, index, docID string) error {
	_, err := c.client.Delete().Index(index).Id(docID).Do(ctx)
	if elastic.IsNotFound(err) {
		return nil
	}
	return err
}

// DeleteByQuery removes every document matching a query string.
func (c *ElasticClient) DeleteByQuery(ctx context.Context, index, query string) error {
	_, err := c.client.DeleteByQuery(index).
		Query(elastic.NewQueryStringQuery(query)).
		Do(ctx)
	if elastic.IsNotFound(err) {
		return nil
	}
	return err
}

// Search runs a query-string search.
func (c *ElasticClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	search := c.client.Search(req.Indexes...).
		Query(elastic.NewQueryStringQuery(req.Query)).
		From(req.From)
	if req.Size > 0 {
		search = search.Size(req.Size)
	}

	result, err := search.Do(ctx)
	if err != nil {
		return nil, err
	}
	return toSearchResponse(result), nil
}

// MoreLikeThis finds documents whose field content resembles the given
// document's.
func (c *ElasticClient) MoreLikeThis(ctx context.Context, index, docID, field string, from, size int) (*SearchResponse, error) {
	query := elastic.NewMoreLikeThisQuery().
		Field(field).
		LikeItems(elastic.NewMoreLikeThisQueryItem().Index(index).Id(docID))

	search := c.client.Search(index).Query(query).From(from)
	if size > 0 {
		search = search.Size(size)
	}

	result, err := search.Do(ctx)
	if err != nil {
		return nil, err
	}
	return toSearchResponse(result), nil
}

// Refresh makes recent writes visible to search.
func (c *ElasticClient) Refresh(ctx context.Context, index string) error {
	_, err := c.client.Refresh(index).Do(ctx)
	return err
}

func toSearchResponse(result *elastic.SearchResult) *SearchResponse {
	resp := &SearchResponse{Hits: result.TotalHits()}
	if result.Hits == nil {
		return resp
	}
	for _, hit := range result.Hits.Hits {
		h := Hit{ID: hit.Id}
		if hit.Score != nil {
			h.Score = *hit.Score
		}
		if len(hit.Source) > 0 {
			var fields map[string]interface{}
			if err := json.Unmarshal(hit.Source, &fields); err == nil {
				h.Fields = fields
			}
		}
		resp.Results = append(resp.Results, h)
	}
	return resp
}
