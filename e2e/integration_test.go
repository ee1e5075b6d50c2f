//go:build e2e

// Package e2e contains end-to-end tests against real PostgreSQL and DynamoDB.
//
// Run with: go test -tags=e2e -v ./e2e/...
//
// ARBOR_E2E_POSTGRES_DSN enables the PostgreSQL backend and ARBOR_E2E_AWS_PROFILE
// the DynamoDB backend. Backends without configuration are skipped.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jacentio/arbor/dynamic"
	"github.com/jacentio/arbor/dynamostore"
	"github.com/jacentio/arbor/internal/fixture"
	"github.com/jacentio/arbor/sqlstore"
	"github.com/jacentio/arbor/store"
	"github.com/jacentio/arbor/stream"
)

const tablePrefix = "arbor-e2e"

type backend struct {
	name    string
	backend store.Backend
}

var (
	testID   string
	registry *store.Registry
	backends []backend

	ddbClient *dynamodb.Client
	ddbStore  *dynamostore.Store
	ddbPrefix string
	pgDB      *sqlx.DB
	pgSchema  string
	logger    *zap.Logger
)

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	registry = fixture.Registry()
	logger = zap.NewExample()
	ctx := context.Background()

	fmt.Printf("Test ID: %s\n", testID)

	if dsn := os.Getenv("ARBOR_E2E_POSTGRES_DSN"); dsn != "" {
		if err := setupPostgres(ctx, dsn); err != nil {
			fmt.Printf("Failed to set up PostgreSQL: %v\n", err)
			os.Exit(1)
		}
	}
	if profile := os.Getenv("ARBOR_E2E_AWS_PROFILE"); profile != "" {
		if err := setupDynamo(ctx, profile); err != nil {
			fmt.Printf("Failed to set up DynamoDB: %v\n", err)
			os.Exit(1)
		}
	}

	code := m.Run()

	if pgDB != nil {
		if _, err := pgDB.ExecContext(ctx, "DROP SCHEMA "+pgSchema+" CASCADE"); err != nil {
			fmt.Printf("Warning: failed to drop schema %s: %v\n", pgSchema, err)
		}
		_ = pgDB.Close()
	}
	if ddbClient != nil {
		deleteTables(ctx)
	}

	os.Exit(code)
}

func setupPostgres(ctx context.Context, dsn string) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	// search_path is per connection
	db.SetMaxOpenConns(1)

	pgSchema = "arbor_e2e_" + testID
	for _, stmt := range []string{
		"CREATE SCHEMA " + pgSchema,
		"SET search_path TO " + pgSchema,
		fixture.Schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}

	pgDB = db
	backends = append(backends, backend{
		name:    "postgres",
		backend: sqlstore.New(db, registry, sqlstore.Config{Flavor: "postgresql"}, logger),
	})
	fmt.Printf("PostgreSQL schema: %s\n", pgSchema)
	return nil
}

func setupDynamo(ctx context.Context, profile string) error {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithSharedConfigProfile(profile))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	ddbClient = dynamodb.NewFromConfig(cfg)
	ddbPrefix = fmt.Sprintf("%s-%s-", tablePrefix, testID)

	if err := createTables(ctx); err != nil {
		return err
	}

	ddbStore = dynamostore.New(ddbClient, registry, dynamostore.Config{TablePrefix: ddbPrefix}, logger)
	backends = append(backends, backend{name: "dynamodb", backend: ddbStore})
	return nil
}

func createTables(ctx context.Context) error {
	fmt.Println("Creating test tables...")

	var names []string
	for _, info := range registry.Types() {
		name := ddbPrefix + info.Table
		_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(store.IDColumn), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(store.IDColumn), AttributeType: types.ScalarAttributeTypeS},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		if err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		names = append(names, name)
	}

	for _, name := range names {
		waiter := dynamodb.NewTableExistsWaiter(ddbClient)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
	}

	fmt.Println("All tables created and active")
	return nil
}

func deleteTables(ctx context.Context) {
	fmt.Println("Deleting test tables...")
	for _, info := range registry.Types() {
		name := ddbPrefix + info.Table
		if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", name, err)
		}
	}
}

// eachBackend runs f once per configured backend.
func eachBackend(t *testing.T, f func(t *testing.T, b store.Backend)) {
	t.Helper()
	if len(backends) == 0 {
		t.Skip("no backend configured")
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) { f(t, b.backend) })
	}
}

func repo[T store.Entity](t *testing.T, b store.Backend) *store.Repository[T] {
	t.Helper()
	r, err := store.NewRepository[T](b, registry, store.WithLogger(logger))
	require.NoError(t, err)
	return r
}

// seedLibrary adds an author with two books, a cover and review on the first
// book, and a profile. Ids are unique per call.
func seedLibrary(t *testing.T, b store.Backend) (*fixture.Author, []*fixture.Book) {
	t.Helper()
	ctx := context.Background()

	author, err := repo[*fixture.Author](t, b).Add(ctx, &fixture.Author{Name: "Le Guin"})
	require.NoError(t, err)

	books, err := repo[*fixture.Book](t, b).AddRange(ctx, []*fixture.Book{
		{AuthorID: author.ID, Title: "The Dispossessed", Year: 1974},
		{AuthorID: author.ID, Title: "The Lathe of Heaven", Year: 1971},
	})
	require.NoError(t, err)

	_, err = repo[*fixture.Cover](t, b).Add(ctx, &fixture.Cover{BookID: books[0].ID, URL: "cover.png"})
	require.NoError(t, err)
	_, err = repo[*fixture.Review](t, b).Add(ctx, &fixture.Review{BookID: books[0].ID, Rating: 5})
	require.NoError(t, err)
	_, err = repo[*fixture.Profile](t, b).Add(ctx, &fixture.Profile{AuthorID: author.ID, Bio: "Anarres"})
	require.NoError(t, err)

	return author, books
}

// --- CRUD Tests ---

func TestAddAndGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		authors := repo[*fixture.Author](t, b)

		added, err := authors.Add(ctx, &fixture.Author{Name: "Butler"})
		require.NoError(t, err)
		require.NotEmpty(t, added.ID)

		got, found, err := authors.GetOne(ctx, store.Eq(store.IDColumn, added.ID), store.GetOptions{})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Butler", got.Name)
		assert.WithinDuration(t, added.CreatedAt, got.CreatedAt, time.Millisecond)
	})
}

func TestAdd_Duplicate(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		authors := repo[*fixture.Author](t, b)

		a, err := authors.Add(ctx, &fixture.Author{Name: "Butler"})
		require.NoError(t, err)

		_, err = authors.Add(ctx, &fixture.Author{Model: store.Model{ID: a.ID}})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestUpdate(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		authors := repo[*fixture.Author](t, b)

		a, err := authors.Add(ctx, &fixture.Author{Name: "Butler"})
		require.NoError(t, err)
		a.Name = "Octavia E. Butler"
		_, err = authors.Update(ctx, a)
		require.NoError(t, err)

		got, _, err := authors.GetOne(ctx, store.Eq(store.IDColumn, a.ID), store.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Octavia E. Butler", got.Name)
		assert.NotNil(t, got.UpdatedAt)

		_, err = authors.Update(ctx, &fixture.Author{Model: store.Model{ID: uuid.NewString()}})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// --- Soft Delete Tests ---

func TestDelete_CascadesToDependents(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		author, books := seedLibrary(t, b)

		_, err := repo[*fixture.Author](t, b).Delete(ctx, author, false)
		require.NoError(t, err)

		bookRepo := repo[*fixture.Book](t, b)
		for _, book := range books {
			got, found, err := bookRepo.GetOne(ctx, store.Eq(store.IDColumn, book.ID), store.GetOptions{WithDeleted: true})
			require.NoError(t, err)
			require.True(t, found)
			require.NotNil(t, got.DeletedAt)
			assert.WithinDuration(t, *author.DeletedAt, *got.DeletedAt, time.Millisecond)

			_, found, err = bookRepo.GetOne(ctx, store.Eq(store.IDColumn, book.ID), store.GetOptions{})
			require.NoError(t, err)
			assert.False(t, found, "deleted rows are hidden by default")
		}

		exists, err := repo[*fixture.Review](t, b).Exists(ctx, store.ExistsOptions{Where: store.Eq("book_id", books[0].ID)})
		require.NoError(t, err)
		assert.True(t, exists, "reviews don't cascade")
	})
}

func TestDelete_OneToOneDependentRejected(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		author, _ := seedLibrary(t, b)
		profiles := repo[*fixture.Profile](t, b)

		profile, found, err := profiles.GetOne(ctx, store.Eq("author_id", author.ID), store.GetOptions{})
		require.NoError(t, err)
		require.True(t, found)

		_, err = profiles.Delete(ctx, profile, false)
		require.ErrorIs(t, err, store.ErrOneToOneRelation)

		_, err = profiles.Delete(ctx, profile, true)
		require.NoError(t, err)

		_, found, err = profiles.GetOne(ctx, store.Eq("author_id", author.ID), store.GetOptions{WithDeleted: true})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

// --- Read Tests ---

func TestGetPage_WithInclude(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		author, _ := seedLibrary(t, b)

		page, err := repo[*fixture.Book](t, b).GetPage(ctx, store.ListOptions{
			Where:   store.Eq("author_id", author.ID),
			Include: []string{"cover"},
			OrderBy: []store.Order{store.Asc("year")},
			Size:    1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Count)
		assert.Equal(t, 2, page.Pages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, 1971, page.Items[0].Year)
		assert.Nil(t, page.Items[0].Cover)

		page, err = repo[*fixture.Book](t, b).GetPage(ctx, store.ListOptions{
			Where:   store.Eq("author_id", author.ID),
			Include: []string{"cover"},
			OrderBy: []store.Order{store.Asc("year")},
			Index:   1,
			Size:    1,
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		require.NotNil(t, page.Items[0].Cover)
		assert.Equal(t, "cover.png", page.Items[0].Cover.URL)
	})
}

func TestGetPageDynamic(t *testing.T) {
	eachBackend(t, func(t *testing.T, b store.Backend) {
		ctx := context.Background()
		author, _ := seedLibrary(t, b)

		d := dynamic.Query{
			Sort: []dynamic.Sort{{Field: "year", Dir: "desc"}},
			Filter: &dynamic.Filter{Filters: []dynamic.Filter{
				{Field: "author_id", Operator: "eq", Value: author.ID},
				{Field: "title", Operator: "startswith", Value: "The"},
			}},
		}
		page, err := repo[*fixture.Book](t, b).GetPageDynamic(ctx, d, store.ListOptions{})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, 1974, page.Items[0].Year)
	})
}

// --- Stream Tests ---

func TestStream_PropagatesExternalDelete(t *testing.T) {
	if ddbStore == nil {
		t.Skip("DynamoDB not configured")
	}
	ctx := context.Background()
	author, books := seedLibrary(t, ddbStore)

	// deleted by a writer that bypasses the repository
	deletedAt := time.Now().UTC()
	author.DeletedAt = &deletedAt
	require.NoError(t, ddbStore.Commit(ctx, &store.ChangeSet{Updated: []store.Entity{author}}))

	record := events.DynamoDBEventRecord{
		EventID:        "e2e-" + testID,
		EventName:      string(events.DynamoDBOperationTypeModify),
		EventSourceArn: "arn:aws:dynamodb:us-east-1:123456789012:table/" + ddbPrefix + "authors/stream/e2e",
		Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"id":         events.NewStringAttribute(author.ID),
				"deleted_at": events.NewNullAttribute(),
			},
			NewImage: map[string]events.DynamoDBAttributeValue{
				"id":         events.NewStringAttribute(author.ID),
				"name":       events.NewStringAttribute(author.Name),
				"created_at": events.NewStringAttribute(author.CreatedAt.Format(time.RFC3339Nano)),
				"deleted_at": events.NewStringAttribute(deletedAt.Format(time.RFC3339Nano)),
			},
		},
	}

	h := stream.NewHandler(ddbStore, registry, ddbPrefix, logger)
	require.NoError(t, h.HandleCascadeDelete(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}}))

	bookRepo := repo[*fixture.Book](t, ddbStore)
	for _, book := range books {
		got, found, err := bookRepo.GetOne(ctx, store.Eq(store.IDColumn, book.ID), store.GetOptions{WithDeleted: true})
		require.NoError(t, err)
		require.True(t, found)
		require.NotNil(t, got.DeletedAt)
		assert.True(t, deletedAt.Equal(*got.DeletedAt))
	}
}
