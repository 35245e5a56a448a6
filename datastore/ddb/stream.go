/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/suparena/peoplestore/datastore/match"
	"github.com/suparena/peoplestore/storagemodels"
)

// Stream reads the items selected by q page by page and sends them through the returned channel.
// Failed pages are retried with backoff when the error is retryable.
//
// Without a sort order items are sent as pages arrive. With one, all pages are read
// before the first item is sent.
func (d *DynamodbDataStore[T]) Stream(ctx context.Context, q *storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.ApplyStreamOptions(opts...)

	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)

	if q == nil {
		q = &storagemodels.Query{}
	}

	go d.streamWorker(ctx, q, options, resultCh)

	return resultCh
}

// streamWorker handles the actual streaming logic
func (d *DynamodbDataStore[T]) streamWorker(
	ctx context.Context,
	q *storagemodels.Query,
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	var itemIndex int64
	var pageNumber int
	startTime := time.Now()
	var errs []error

	reportProgress := func() {
		if options.ProgressHandler == nil {
			return
		}
		progress := storagemodels.StreamProgress{
			ItemsProcessed: itemIndex,
			PagesProcessed: pageNumber,
			Errors:         errs,
			StartTime:      startTime,
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
		}
		options.ProgressHandler(progress)
	}

	sendError := func(err error) {
		select {
		case <-ctx.Done():
		case resultCh <- storagemodels.StreamResult[T]{
			Error: err,
			Meta: storagemodels.StreamMeta{
				Index:      itemIndex,
				PageNumber: pageNumber,
				Timestamp:  time.Now(),
			},
		}:
		}
	}

	// send emits records until the limit is reached; it reports whether to continue.
	send := func(records []record, page int) bool {
		for _, r := range records {
			if q.HasLimit() && itemIndex >= q.Limit {
				return false
			}

			result := d.processItem(r, q.Exclude, itemIndex, page)
			itemIndex++

			select {
			case <-ctx.Done():
				return false
			case resultCh <- result:
			}

			if result.Error != nil {
				errs = append(errs, result.Error)
			}
		}
		return true
	}

	plan, err := d.planRead(q.Filter)
	if err != nil {
		sendError(err)
		return
	}

	sorted := len(q.Sort) > 0
	var pending []record
	var lastEvaluatedKey map[string]types.AttributeValue
	var failedRounds int

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		items, lastKey, err := d.readPageWithRetry(ctx, plan, lastEvaluatedKey, options)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if options.ErrorHandler == nil || !options.ErrorHandler(err) {
				sendError(fmt.Errorf("read failed: %w", err))
				return
			}

			// the handler chose to continue: record the error and read the same page again
			errs = append(errs, err)
			failedRounds++
			if failedRounds > options.MaxRetries {
				sendError(fmt.Errorf("read failed %d times: %w", failedRounds, err))
				return
			}
			continue
		}

		failedRounds = 0
		pageNumber++

		records, err := collect(nil, items, q.Filter)
		if err != nil {
			sendError(err)
			return
		}

		if sorted {
			pending = append(pending, records...)
		} else if !send(records, pageNumber) {
			reportProgress()
			return
		}

		reportProgress()

		if len(lastKey) == 0 {
			break
		}
		lastEvaluatedKey = lastKey
	}

	if sorted {
		match.Sort(pending, recordDoc, q.Sort)
		send(pending, pageNumber)
		reportProgress()
	}
}

// readPageWithRetry reads one page with configurable retry logic
func (d *DynamodbDataStore[T]) readPageWithRetry(
	ctx context.Context,
	plan *readPlan,
	startKey map[string]types.AttributeValue,
	options storagemodels.StreamOptions,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	var lastErr error

	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		items, lastKey, err := d.readPage(ctx, plan, startKey, aws.Int32(options.PageSize))
		if err == nil {
			return items, lastKey, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return nil, nil, err
		}

		// Don't sleep after last attempt
		if attempt < options.MaxRetries {
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			d.l.Warn("Retrying page read.", zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, nil, fmt.Errorf("read failed after %d retries: %w", options.MaxRetries, lastErr)
}

// processItem converts a record to a typed result
func (d *DynamodbDataStore[T]) processItem(r record, exclude []string, index int64, pageNumber int) storagemodels.StreamResult[T] {
	result := storagemodels.StreamResult[T]{
		Raw: match.Project(r.doc, exclude),
		Meta: storagemodels.StreamMeta{
			Index:      index,
			PageNumber: pageNumber,
			Timestamp:  time.Now(),
		},
	}

	entity, err := unmarshalItem[T](project(r.item, exclude))
	if err != nil {
		result.Error = err
		return result
	}
	result.Item = *entity
	return result
}

// retryableCodes are API error codes worth retrying.
var retryableCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ThrottlingException":                    true,
	"ServiceUnavailable":                     true,
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var pte *types.ProvisionedThroughputExceededException
	var rle *types.RequestLimitExceeded
	var ise *types.InternalServerError
	switch {
	case errors.As(err, &pte), errors.As(err, &rle), errors.As(err, &ise):
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.ErrorCode()]
	}

	// Check for AWS SDK retryable errors
	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return false
}
