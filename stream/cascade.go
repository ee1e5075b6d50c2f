// Package stream provides DynamoDB Streams handlers for cascade operations.
//
// Rows soft-deleted outside a Repository (by a script, a console edit or
// another service) don't cascade on their own. Subscribing HandleCascadeDelete
// to each table's stream propagates the deletion to the row's cascade
// dependents with the same timestamp.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/arbor/internal/ref"
	"github.com/jacentio/arbor/store"
)

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	backend     store.Backend
	registry    *store.Registry
	cascader    *store.Cascader
	tablePrefix string
	logger      *zap.Logger
}

// NewHandler creates a new stream handler. tablePrefix is stripped from the
// table names of incoming records before looking them up in registry.
func NewHandler(backend store.Backend, registry *store.Registry, tablePrefix string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		backend:     backend,
		registry:    registry,
		cascader:    store.NewCascader(registry, store.NewLoader(backend), logger),
		tablePrefix: tablePrefix,
		logger:      logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to propagate soft
// deletes to dependents. It is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("event_id", record.EventID),
				zap.Error(err),
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only MODIFY events where deleted_at went from unset to set
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil
	}
	if isSet(record.Change.OldImage, store.DeletedAtColumn) || !isSet(record.Change.NewImage, store.DeletedAtColumn) {
		return nil
	}

	table, err := tableName(record.EventSourceArn)
	if err != nil {
		return err
	}
	info, err := h.registry.TypeByTable(strings.TrimPrefix(table, h.tablePrefix))
	if err != nil {
		return err
	}
	if !h.registry.HasChildren(info.Name) {
		return nil
	}

	image, err := ConvertImage(record.Change.NewImage)
	if err != nil {
		return fmt.Errorf("convert image: %w", err)
	}
	e := info.New()
	if err := attributevalue.UnmarshalMap(image, e); err != nil {
		return fmt.Errorf("unmarshal %s: %w", info.Name, err)
	}
	entity := ref.Of(info.Name, e.Base().ID)

	cs := &store.ChangeSet{}
	marked, err := h.cascader.Propagate(ctx, e, cs)
	if err != nil {
		return fmt.Errorf("propagate %s: %w", entity, err)
	}
	if err := h.backend.Commit(ctx, cs); err != nil {
		// A retry would stage the same subtree again.
		if errors.Is(err, store.ErrChangeSetTooLarge) {
			h.logger.Error("cascade delete skipped, permanent failure",
				zap.String("entity", entity),
				zap.Int("marked", marked),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("commit %s: %w", entity, err)
	}

	h.logger.Info("cascade delete completed",
		zap.String("entity", entity),
		zap.Int("marked", marked),
	)
	return nil
}

// tableName extracts the table from a stream ARN
// (arn:aws:dynamodb:region:account:table/NAME/stream/LABEL).
func tableName(arn string) (string, error) {
	parts := strings.Split(arn, "/")
	if len(parts) < 2 || !strings.HasSuffix(parts[0], ":table") || parts[1] == "" {
		return "", fmt.Errorf("unrecognized stream arn %q", arn)
	}
	return parts[1], nil
}

// isSet reports whether key is present in image and not NULL.
func isSet(image map[string]events.DynamoDBAttributeValue, key string) bool {
	v, ok := image[key]
	return ok && !v.IsNull()
}

// ConvertImage converts a stream image to SDK attribute values so it can be
// unmarshaled with attributevalue.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		av, err := convertAttr(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func convertAttr(v events.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, item := range list {
			av, err := convertAttr(item)
			if err != nil {
				return nil, err
			}
			out = append(out, av)
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case events.DataTypeMap:
		m, err := ConvertImage(v.Map())
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("unsupported data type %v", v.DataType())
}
