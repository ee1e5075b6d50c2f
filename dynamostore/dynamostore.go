// Package dynamostore provides a store.Backend over DynamoDB.
//
// Every entity type lives in its own table keyed by the string attribute "id".
// Reads scan the table with a filter expression and order on the client;
// commits run as a single TransactWriteItems call.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
	"github.com/jacentio/arbor/store"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Store is a DynamoDB backend. Safe for concurrent use.
type Store struct {
	client   API
	config   Config
	registry *store.Registry
	logger   *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// New creates a Store for the types in registry.
func New(client API, registry *store.Registry, config Config, logger *zap.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:   client,
		config:   config,
		registry: registry,
		logger:   logger,
	}
}

// TableName returns the DynamoDB table backing entityType.
func (s *Store) TableName(entityType string) (string, error) {
	info, err := s.registry.Type(entityType)
	if err != nil {
		return "", err
	}
	return s.config.TablePrefix + info.Table, nil
}

// Count returns the number of items matching q.
func (s *Store) Count(ctx context.Context, q store.Query) (int, error) {
	input, err := s.scanInput(q)
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	count := 0
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", aws.ToString(input.TableName), err)
		}
		count += int(page.Count)
	}
	return count, nil
}

// Find returns the items matching q. Ordering and slicing happen after the
// scan, so every matching item is read.
func (s *Store) Find(ctx context.Context, q store.Query) ([]store.Entity, error) {
	info, err := s.registry.Type(q.EntityType)
	if err != nil {
		return nil, err
	}
	input, err := s.scanInput(q)
	if err != nil {
		return nil, err
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(items, func(i, j int) bool {
			for _, o := range q.OrderBy {
				n := compareAttr(items[i][o.Column], items[j][o.Column])
				if n == 0 {
					continue
				}
				if o.Desc {
					return n > 0
				}
				return n < 0
			}
			return false
		})
	}
	if q.Offset >= len(items) {
		items = nil
	} else {
		items = items[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(items) {
		items = items[:q.Limit]
	}

	out := make([]store.Entity, 0, len(items))
	for _, item := range items {
		e := info.New()
		if err := attributevalue.UnmarshalMap(item, e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", q.EntityType, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Related returns the live items reachable from owner along rel.
func (s *Store) Related(ctx context.Context, rel store.Relation, owner store.Entity) ([]store.Entity, error) {
	if rel.Side == store.Principal {
		return s.Find(ctx, store.NewQuery(rel.Target).Filter(store.OwnerCond(rel, owner)))
	}

	item, err := attributevalue.MarshalMap(owner)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ref.Of(owner.EntityType(), owner.Base().ID), err)
	}
	fk, ok := item[rel.ForeignKey].(*types.AttributeValueMemberS)
	if !ok || fk.Value == "" {
		return []store.Entity{}, nil
	}
	q := store.NewQuery(rel.Target).Filter(store.Eq(store.IDColumn, fk.Value)).Live().Slice(0, 1)
	return s.Find(ctx, q)
}

// Commit writes cs in one transaction. Adds are conditioned on the id being
// absent and updates and removals on it being present; a failed condition
// maps to store.ErrAlreadyExists or store.ErrNotFound.
func (s *Store) Commit(ctx context.Context, cs *store.ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}
	if cs.Len() > s.config.MaxTransactItems {
		return fmt.Errorf("%w: %d items, limit %d", store.ErrChangeSetTooLarge, cs.Len(), s.config.MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, cs.Len())
	refs := make([]string, 0, cs.Len())

	for _, e := range cs.Added {
		put, err := s.put(e, "attribute_not_exists(#id)")
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Put: put})
		refs = append(refs, ref.Of(e.EntityType(), e.Base().ID))
	}
	for _, e := range cs.Updated {
		put, err := s.put(e, "attribute_exists(#id)")
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Put: put})
		refs = append(refs, ref.Of(e.EntityType(), e.Base().ID))
	}
	for _, e := range cs.Removed {
		table, err := s.TableName(e.EntityType())
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                aws.String(table),
				Key:                      key(e.Base().ID),
				ConditionExpression:      aws.String("attribute_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": store.IDColumn},
			},
		})
		refs = append(refs, ref.Of(e.EntityType(), e.Base().ID))
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := mapTransactionError(err, len(cs.Added), refs); err != nil {
		return err
	}

	s.logger.Debug("changeset committed",
		zap.Int("added", len(cs.Added)),
		zap.Int("updated", len(cs.Updated)),
		zap.Int("removed", len(cs.Removed)),
	)
	return nil
}

func (s *Store) put(e store.Entity, condition string) (*types.Put, error) {
	table, err := s.TableName(e.EntityType())
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ref.Of(e.EntityType(), e.Base().ID), err)
	}
	return &types.Put{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: map[string]string{"#id": store.IDColumn},
	}, nil
}

func (s *Store) scanInput(q store.Query) (*dynamodb.ScanInput, error) {
	table, err := s.TableName(q.EntityType)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(true),
	}
	f := newFilter()
	expr, err := f.expr(q.Where)
	if err != nil {
		return nil, err
	}
	if expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = f.names
		if len(f.values) > 0 {
			input.ExpressionAttributeValues = f.values
		}
	}
	return input, nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.IDColumn: &types.AttributeValueMemberS{Value: id},
	}
}

// mapTransactionError maps a cancelled transaction to the sentinel of the
// first failed condition. Items before addCount are adds.
func mapTransactionError(err error, addCount int, refs []string) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i < addCount {
					return fmt.Errorf("%w: %s", store.ErrAlreadyExists, refs[i])
				}
				return fmt.Errorf("%w: %s", store.ErrNotFound, refs[i])
			}
		}
	}

	return err
}
