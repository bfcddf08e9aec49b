package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// AuditSink indexes delivery results into Elasticsearch so operators can
// inspect webhook history. It is the default ResultFunc target; indexing
// failures are logged and dropped, matching the fire-and-forget contract.
type AuditSink struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewAuditSink(es *elasticsearch.Client, index string, log logger.Logger) *AuditSink {
	return &AuditSink{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "webhook-audit"}),
	}
}

// Record indexes one delivery result.
func (a *AuditSink) Record(result models.DeliveryResult) {
	body, err := json.Marshal(result)
	if err != nil {
		a.logger.Error("audit marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := a.es.Index(
		a.index,
		bytes.NewReader(body),
		a.es.Index.WithContext(ctx),
	)
	if err != nil {
		a.logger.Error("audit index failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		a.logger.Error("audit index rejected", map[string]interface{}{"status": res.Status()})
	}
}

// Search returns recent delivery results, optionally filtered by merchant
// and event, newest first.
func (a *AuditSink) Search(ctx context.Context, merchantID, event string, size int) ([]models.DeliveryResult, error) {
	if size <= 0 || size > 100 {
		size = 50
	}

	must := []map[string]interface{}{}
	if merchantID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"merchantId.keyword": merchantID},
		})
	}
	if event != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"event.keyword": event},
		})
	}

	query := map[string]interface{}{
		"size": size,
		"sort": []map[string]interface{}{
			{"attemptedAt": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithIndex(a.index),
		a.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("audit search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.DeliveryResult `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]models.DeliveryResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}
