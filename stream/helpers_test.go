package stream

import (
	"bytes"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- tableName Tests ---

func TestTableName(t *testing.T) {
	tests := []struct {
		arn     string
		want    string
		wantErr bool
	}{
		{"arn:aws:dynamodb:us-east-1:123456789012:table/authors/stream/2024-03-01T00:00:00.000", "authors", false},
		{"arn:aws:dynamodb:eu-west-1:123456789012:table/prod-books/stream/label", "prod-books", false},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/authors", "authors", false},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/", "", true},
		{"arn:aws:dynamodb:us-east-1:123456789012:index/authors/stream/x", "", true},
		{"not-an-arn", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := tableName(tt.arn)
		if tt.wantErr {
			if err == nil {
				t.Errorf("tableName(%q): expected error, got %q", tt.arn, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("tableName(%q): unexpected error: %v", tt.arn, err)
			continue
		}
		if got != tt.want {
			t.Errorf("tableName(%q) = %q, want %q", tt.arn, got, tt.want)
		}
	}
}

// --- isSet Tests ---

func TestIsSet(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"deleted_at": events.NewStringAttribute("2024-03-01T12:00:00Z"),
		"updated_at": events.NewNullAttribute(),
		"empty":      events.NewStringAttribute(""),
	}

	if !isSet(image, "deleted_at") {
		t.Error("expected deleted_at to be set")
	}
	if isSet(image, "updated_at") {
		t.Error("expected NULL updated_at to be unset")
	}
	if isSet(image, "missing") {
		t.Error("expected missing attribute to be unset")
	}
	if !isSet(image, "empty") {
		t.Error("expected empty string to count as set")
	}
	if isSet(nil, "deleted_at") {
		t.Error("expected nil image to have nothing set")
	}
}

// --- convertAttr Tests ---

func TestConvertAttr_Scalars(t *testing.T) {
	if v, ok := mustConvert(t, events.NewStringAttribute("日本語")).(*types.AttributeValueMemberS); !ok || v.Value != "日本語" {
		t.Error("expected string '日本語'")
	}
	if v, ok := mustConvert(t, events.NewNumberAttribute("-12.5")).(*types.AttributeValueMemberN); !ok || v.Value != "-12.5" {
		t.Error("expected number '-12.5'")
	}
	if v, ok := mustConvert(t, events.NewBinaryAttribute([]byte{0x01, 0x02})).(*types.AttributeValueMemberB); !ok || !bytes.Equal(v.Value, []byte{0x01, 0x02}) {
		t.Error("expected binary 0x0102")
	}
	if v, ok := mustConvert(t, events.NewBooleanAttribute(true)).(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("expected boolean true")
	}
	if v, ok := mustConvert(t, events.NewNullAttribute()).(*types.AttributeValueMemberNULL); !ok || !v.Value {
		t.Error("expected NULL")
	}
}

func TestConvertAttr_Sets(t *testing.T) {
	if v, ok := mustConvert(t, events.NewStringSetAttribute([]string{"a", "b"})).(*types.AttributeValueMemberSS); !ok || len(v.Value) != 2 {
		t.Error("expected string set of 2")
	}
	if v, ok := mustConvert(t, events.NewNumberSetAttribute([]string{"1", "2", "3"})).(*types.AttributeValueMemberNS); !ok || len(v.Value) != 3 {
		t.Error("expected number set of 3")
	}
	if v, ok := mustConvert(t, events.NewBinarySetAttribute([][]byte{{0x01}})).(*types.AttributeValueMemberBS); !ok || len(v.Value) != 1 {
		t.Error("expected binary set of 1")
	}
}

func TestConvertAttr_Nested(t *testing.T) {
	attr := events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"tags": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("x"),
			events.NewNumberAttribute("1"),
		}),
		"meta": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
			"ok": events.NewBooleanAttribute(false),
		}),
	})

	m, ok := mustConvert(t, attr).(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected map")
	}
	list, ok := m.Value["tags"].(*types.AttributeValueMemberL)
	if !ok || len(list.Value) != 2 {
		t.Fatal("expected list of 2")
	}
	if v, ok := list.Value[1].(*types.AttributeValueMemberN); !ok || v.Value != "1" {
		t.Error("expected second list item to be number '1'")
	}
	meta, ok := m.Value["meta"].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected nested map")
	}
	if v, ok := meta.Value["ok"].(*types.AttributeValueMemberBOOL); !ok || v.Value {
		t.Error("expected nested boolean false")
	}
}

func TestConvertAttr_EmptyCollections(t *testing.T) {
	if v, ok := mustConvert(t, events.NewListAttribute(nil)).(*types.AttributeValueMemberL); !ok || len(v.Value) != 0 {
		t.Error("expected empty list")
	}
	if v, ok := mustConvert(t, events.NewMapAttribute(nil)).(*types.AttributeValueMemberM); !ok || len(v.Value) != 0 {
		t.Error("expected empty map")
	}
}

func mustConvert(t *testing.T, v events.DynamoDBAttributeValue) types.AttributeValue {
	t.Helper()
	av, err := convertAttr(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return av
}
