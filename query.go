/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package peoplestore

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/peoplestore/models"
	"github.com/suparena/peoplestore/storagemodels"
)

// QueryBuilder composes a filtered, sorted, limited and projected read.
// Methods mutate and return the builder so calls can be chained.
type QueryBuilder struct {
	p *People
	q storagemodels.Query
}

// Find starts a query selecting people matching all of conditions.
func (p *People) Find(conditions ...storagemodels.Condition) *QueryBuilder {
	return &QueryBuilder{
		p: p,
		q: storagemodels.Query{Filter: append(storagemodels.Filter(nil), conditions...)},
	}
}

// Where adds an equality condition. On an array field it matches any element.
func (b *QueryBuilder) Where(field string, value any) *QueryBuilder {
	b.q.Filter = append(b.q.Filter, storagemodels.Eq(field, value))
	return b
}

// WhereContains adds an array membership condition.
func (b *QueryBuilder) WhereContains(field string, value any) *QueryBuilder {
	b.q.Filter = append(b.q.Filter, storagemodels.Contains(field, value))
	return b
}

// SortBy adds a sort key. Keys added earlier take precedence.
func (b *QueryBuilder) SortBy(field string, ascending bool) *QueryBuilder {
	b.q.Sort = append(b.q.Sort, storagemodels.SortField{Field: field, Descending: !ascending})
	return b
}

// Limit caps the number of results; n <= 0 removes the cap.
func (b *QueryBuilder) Limit(n int64) *QueryBuilder {
	b.q.Limit = n
	return b
}

// Exclude omits fields from the results. Excluded fields come back as zero values.
func (b *QueryBuilder) Exclude(fields ...string) *QueryBuilder {
	b.q.Exclude = append(b.q.Exclude, fields...)
	return b
}

// Build returns a copy of the query.
func (b *QueryBuilder) Build() *storagemodels.Query {
	q := storagemodels.Query{
		Filter:  append(storagemodels.Filter(nil), b.q.Filter...),
		Sort:    append([]storagemodels.SortField(nil), b.q.Sort...),
		Limit:   b.q.Limit,
		Exclude: append([]string(nil), b.q.Exclude...),
	}
	return &q
}

// Execute runs the query.
func (b *QueryBuilder) Execute(ctx context.Context) ([]*models.Person, error) {
	res, err := b.p.store.Find(ctx, b.Build())
	if err != nil {
		return nil, b.p.done("query-chain", err)
	}
	return res, b.p.done("query-chain", nil, zap.Int("count", len(res)))
}

// Stream runs the query and delivers results through a channel.
func (b *QueryBuilder) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[models.Person] {
	b.p.l.Debug("Streaming query", zap.Int("conditions", len(b.q.Filter)), zap.Int64("limit", b.q.Limit))
	return b.p.store.Stream(ctx, b.Build(), opts...)
}
