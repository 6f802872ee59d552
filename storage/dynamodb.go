package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/medarchive/content-pipeline/interfaces"
)

// Attribute names of the table's composite key.
const (
	attrURL  = "URL"
	attrName = "Name"
)

// DynamoCatalogStore implements the catalog store on a DynamoDB table keyed
// by (URL hash, Name range). Enriched fields are stored as top-level string
// attributes so the missing-field scan can filter on attribute absence.
type DynamoCatalogStore struct {
	client *dynamodb.DynamoDB
	table  string
	log    *slog.Logger
}

// NewDynamoCatalogStore creates a catalog store for the given table.
func NewDynamoCatalogStore(sess *session.Session, table string, log *slog.Logger) *DynamoCatalogStore {
	return &DynamoCatalogStore{
		client: dynamodb.New(sess),
		table:  table,
		log:    log,
	}
}

// Upsert creates the record for the entry's composite key if absent and
// merges any carried fields if present. Existing enriched fields are never
// wiped by a re-listing run.
func (s *DynamoCatalogStore) Upsert(ctx context.Context, entry interfaces.CatalogEntry) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttributes(entry.Key()),
	}

	if len(entry.Fields) > 0 {
		expr := "SET "
		names := map[string]*string{}
		values := map[string]*dynamodb.AttributeValue{}
		i := 0
		for field, value := range entry.Fields {
			if i > 0 {
				expr += ", "
			}
			n := fmt.Sprintf("#f%d", i)
			v := fmt.Sprintf(":v%d", i)
			expr += n + " = " + v
			names[n] = aws.String(field)
			values[v] = &dynamodb.AttributeValue{S: aws.String(value)}
			i++
		}
		input.UpdateExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	if _, err := s.client.UpdateItemWithContext(ctx, input); err != nil {
		return fmt.Errorf("%w: upserting item: %v", interfaces.ErrStore, err)
	}
	return nil
}

// Get fetches one record by its composite key.
func (s *DynamoCatalogStore) Get(ctx context.Context, key interfaces.EntryKey) (interfaces.CatalogEntry, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return interfaces.CatalogEntry{}, fmt.Errorf("%w: getting item: %v", interfaces.ErrStore, err)
	}
	if out.Item == nil {
		return interfaces.CatalogEntry{}, interfaces.ErrEntryNotFound
	}
	return entryFromItem(out.Item), nil
}

// SetField updates exactly one field of the record, leaving everything else
// untouched.
func (s *DynamoCatalogStore) SetField(ctx context.Context, key interfaces.EntryKey, field, value string) error {
	_, err := s.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              keyAttributes(key),
		UpdateExpression: aws.String("SET #field = :value"),
		ExpressionAttributeNames: map[string]*string{
			"#field": aws.String(field),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":value": {S: aws.String(value)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: setting field %q: %v", interfaces.ErrStore, field, err)
	}
	return nil
}

// ScanMissingField returns a page of records that do not yet carry the named
// field. DynamoDB applies Limit before the filter, so a page may hold fewer
// entries than requested, possibly zero, while still carrying a continuation
// token; callers keep scanning until the token is empty or their batch is
// full.
func (s *DynamoCatalogStore) ScanMissingField(ctx context.Context, field, startToken string, limit int) (interfaces.ScanPage, error) {
	start := time.Now()

	input := &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("attribute_not_exists(#field)"),
		ExpressionAttributeNames: map[string]*string{
			"#field": aws.String(field),
		},
		Limit: aws.Int64(int64(limit)),
	}

	if startToken != "" {
		startKey, err := decodeContinuationToken(startToken)
		if err != nil {
			return interfaces.ScanPage{}, fmt.Errorf("%w: %v", interfaces.ErrStore, err)
		}
		input.ExclusiveStartKey = startKey
	}

	out, err := s.client.ScanWithContext(ctx, input)
	if err != nil {
		return interfaces.ScanPage{}, fmt.Errorf("%w: scanning table: %v", interfaces.ErrStore, err)
	}

	page := interfaces.ScanPage{}
	for _, item := range out.Items {
		page.Entries = append(page.Entries, entryFromItem(item))
	}
	if len(out.LastEvaluatedKey) > 0 {
		token, err := encodeContinuationToken(out.LastEvaluatedKey)
		if err != nil {
			return interfaces.ScanPage{}, fmt.Errorf("%w: %v", interfaces.ErrStore, err)
		}
		page.NextToken = token
	}

	s.log.Debug("Scanned for missing field",
		slog.String("field", field),
		slog.Int("matched", len(page.Entries)),
		slog.Bool("more", page.NextToken != ""),
		slog.Duration("duration", time.Since(start)))

	return page, nil
}

func keyAttributes(key interfaces.EntryKey) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		attrURL:  {S: aws.String(key.URL)},
		attrName: {S: aws.String(key.Name)},
	}
}

func entryFromItem(item map[string]*dynamodb.AttributeValue) interfaces.CatalogEntry {
	entry := interfaces.CatalogEntry{}
	for name, av := range item {
		if av.S == nil {
			continue
		}
		switch name {
		case attrURL:
			entry.URL = *av.S
		case attrName:
			entry.Name = *av.S
		default:
			if entry.Fields == nil {
				entry.Fields = map[string]string{}
			}
			entry.Fields[name] = *av.S
		}
	}
	return entry
}

// Continuation tokens are the JSON encoding of DynamoDB's LastEvaluatedKey,
// base64url-wrapped so they stay opaque and header-safe. They are only valid
// within the invocation that obtained them.
func encodeContinuationToken(key map[string]*dynamodb.AttributeValue) (string, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encoding continuation token: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeContinuationToken(token string) (map[string]*dynamodb.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decoding continuation token: %v", err)
	}
	var key map[string]*dynamodb.AttributeValue
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("decoding continuation token: %v", err)
	}
	return key, nil
}
