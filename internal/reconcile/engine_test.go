package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/source"
	"datasync/internal/target"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/models"
)

const defaultPassword = "changeme"

type recordingPublisher struct {
	events []models.RunCompletedEvent
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, e models.RunCompletedEvent) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// spyStore wraps a MemoryStore and lets tests inject lookup and write faults.
type spyStore struct {
	*target.MemoryStore
	lookups   int
	findHook  func(field string, value any) (*target.Entity, error)
	insertErr error
	panicOn   string
}

func (s *spyStore) FindByKey(ctx context.Context, field string, value any) (*target.Entity, error) {
	s.lookups++
	if s.findHook != nil {
		return s.findHook(field, value)
	}
	return s.MemoryStore.FindByKey(ctx, field, value)
}

func (s *spyStore) Insert(ctx context.Context, fields map[string]any) (any, error) {
	if s.panicOn != "" && fields["name"] == s.panicOn {
		panic("nil map write")
	}
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.MemoryStore.Insert(ctx, fields)
}

type fixture struct {
	engine    *Engine
	repo      *integration.MemoryRepository
	reader    *source.StaticReader
	store     *spyStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T, cfg integration.Configuration, owner string, seed ...map[string]any) *fixture {
	t.Helper()

	f := &fixture{
		repo:      integration.NewMemoryRepository(cfg),
		reader:    &source.StaticReader{},
		store:     &spyStore{MemoryStore: target.NewMemoryStore(seed...)},
		publisher: &recordingPublisher{},
	}

	engine, err := NewEngine(
		f.repo,
		target.Registry{cfg.TargetCollection: f.store},
		target.StaticOwner(owner),
		f.reader,
		f.publisher,
		logger.NopLogger(),
		Options{DefaultPassword: defaultPassword, BcryptCost: bcrypt.MinCost},
	)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) history(t *testing.T, id string) []integration.ExecutionLog {
	t.Helper()
	cfg, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	return cfg.History
}

func usersConfig() integration.Configuration {
	return integration.Configuration{
		ID:               "cfg-users",
		Name:             "HR users",
		Active:           true,
		SourceView:       "vw_employees",
		SourceKeyField:   "email",
		TargetKeyField:   "email",
		TargetCollection: integration.CollectionUsers,
		Mappings: []integration.FieldMapping{
			{SourceField: "email", TargetField: "email"},
			{
				SourceField: "full_name",
				TargetField: "name",
				Transformations: []integration.Transformation{
					{Type: integration.TransformTrim},
					{Type: integration.TransformDefaultValue, Options: &integration.TransformationOptions{DefaultValue: ""}},
				},
			},
		},
	}
}

func projectsConfig() integration.Configuration {
	return integration.Configuration{
		ID:               "cfg-projects",
		Name:             "ERP projects",
		Active:           true,
		SourceView:       "vw_projects",
		SourceKeyField:   "code",
		TargetKeyField:   "projectId",
		TargetCollection: integration.CollectionProjects,
		Mappings: []integration.FieldMapping{
			{SourceField: "code", TargetField: "projectId"},
			{SourceField: "client", TargetField: "client"},
			{SourceField: "title", TargetField: "projectName"},
			{SourceField: "status", TargetField: "active", Transformations: []integration.Transformation{{
				Type: integration.TransformMapValue,
				Options: &integration.TransformationOptions{Mappings: []integration.ValueMapping{
					{From: "open", To: true},
					{From: "closed", To: false},
				}},
			}}},
		},
	}
}

func TestExecute_NewUserExample(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "  Ana  "}}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 0, f.store.lookups, "empty collection skips lookups")

	docs := f.store.All()
	require.Len(t, docs, 1)
	user := docs[0].Fields
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, "Ana", user["name"])
	assert.Equal(t, true, user["mustChangePassword"])
	hash, ok := user["password"].(string)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(defaultPassword)))

	history := f.history(t, "cfg-users")
	require.Len(t, history, 1)
	assert.Equal(t, integration.StatusSuccess, history[0].Status)
	assert.Equal(t, 1, history[0].Inserted)
}

func TestExecute_Idempotent(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{
		{"email": "a@b.com", "full_name": "Ana"},
		{"email": "c@d.com", "full_name": "Caio"},
		{"email": "e@f.com", "full_name": "Eva"},
	}
	ctx := context.Background()

	first, err := f.engine.Execute(ctx, "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	second, err := f.engine.Execute(ctx, "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, integration.StatusSuccess, second.Status)
	assert.Len(t, f.store.All(), 3)
}

func TestExecute_BoundedHistory(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}}

	for i := 0; i < 7; i++ {
		_, err := f.engine.Execute(context.Background(), "cfg-users", "")
		require.NoError(t, err)
	}

	history := f.history(t, "cfg-users")
	require.Len(t, history, integration.HistoryLimit)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].StartedAt.After(history[i-1].StartedAt), "newest first")
	}
	assert.Equal(t, 1, history[len(history)-1].Updated, "oldest kept entry is run 3, an update")
	assert.Len(t, f.publisher.events, 7)
}

func TestExecute_KeepFieldSurvivesUpdates(t *testing.T) {
	cfg := usersConfig()
	cfg.Mappings[1].UpdateBehavior = integration.UpdateBehaviorKeep
	f := newFixture(t, cfg, "", map[string]any{"email": "a@b.com", "name": "Ana Original", "password": "old-hash"})

	for _, name := range []string{"Ana Changed", "Ana Changed Again"} {
		f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": name}}
		res, err := f.engine.Execute(context.Background(), cfg.ID, "")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
	}

	user := f.store.All()[0].Fields
	assert.Equal(t, "Ana Original", user["name"])
	assert.Equal(t, "old-hash", user["password"], "password untouched on update")
	assert.NotContains(t, user, "mustChangePassword")
}

func TestExecute_EmptyCollectionNeverMatches(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.store.findHook = func(string, any) (*target.Entity, error) {
		return &target.Entity{ID: "ghost", Fields: map[string]any{"email": "ghost@x.com"}}, nil
	}
	f.reader.Rows = []map[string]any{
		{"email": "a@b.com", "full_name": "Ana"},
		{"email": "c@d.com", "full_name": "Caio"},
	}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, f.store.lookups)
}

func TestExecute_FalsePositiveMatchInserts(t *testing.T) {
	f := newFixture(t, usersConfig(), "", map[string]any{"email": "existing@x.com", "name": "Someone"})
	f.store.findHook = func(string, any) (*target.Entity, error) {
		return &target.Entity{ID: "wrong", Fields: map[string]any{"email": "existing@x.com", "name": "Someone"}}, nil
	}
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, f.store.lookups)
	assert.Equal(t, "Someone", f.store.All()[0].Fields["name"], "unrelated entity untouched")
}

func TestExecute_ProjectStaysActive(t *testing.T) {
	f := newFixture(t, projectsConfig(), "admin-1")
	f.reader.Rows = []map[string]any{{"code": "P-1", "client": "ACME", "title": "Apollo", "status": "closed"}}

	res, err := f.engine.Execute(context.Background(), "cfg-projects", "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	project := f.store.All()[0].Fields
	assert.Equal(t, true, project["active"])
	assert.Equal(t, "admin-1", project["createdBy"])

	res, err = f.engine.Execute(context.Background(), "cfg-projects", "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)
	assert.Equal(t, true, f.store.All()[0].Fields["active"])
}

func TestExecute_ProjectOwnerFallback(t *testing.T) {
	f := newFixture(t, projectsConfig(), "")
	f.reader.Rows = []map[string]any{{"code": "P-1", "client": "ACME", "title": "Apollo", "status": "open"}}

	res, err := f.engine.Execute(context.Background(), "cfg-projects", "user-7")
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	assert.Equal(t, "user-7", f.store.All()[0].Fields["createdBy"])
}

func TestExecute_ProjectWithoutAnyOwnerFails(t *testing.T) {
	f := newFixture(t, projectsConfig(), "")
	f.reader.Rows = []map[string]any{{"code": "P-1", "client": "ACME", "title": "Apollo"}}

	res, err := f.engine.Execute(context.Background(), "cfg-projects", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusError, res.Status)
	assert.Equal(t, 1, res.Failed)

	entry := f.history(t, "cfg-projects")[0]
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorRequired, entry.Errors[0].Type)
	assert.Equal(t, []string{"code=P-1"}, entry.Errors[0].Examples)
}

func TestExecute_UnsafeFilter(t *testing.T) {
	cfg := usersConfig()
	cfg.FilterClause = "status='x'; DROP TABLE projects"
	f := newFixture(t, cfg, "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}}

	res, err := f.engine.Execute(context.Background(), cfg.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnsafeFilter)
	assert.Empty(t, f.reader.Queries, "no query issued")
	assert.Equal(t, 0, res.Total)

	history := f.history(t, cfg.ID)
	require.Len(t, history, 1)
	entry := history[0]
	assert.Equal(t, integration.StatusError, entry.Status)
	assert.Zero(t, entry.Inserted)
	assert.Zero(t, entry.Updated)
	assert.Zero(t, entry.TotalRecords)
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorValidation, entry.Errors[0].Type)
	assert.Empty(t, f.store.All())
}

func TestExecute_ErrorAggregation(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	for i := 0; i < 10; i++ {
		f.reader.Rows = append(f.reader.Rows, map[string]any{"email": fmt.Sprintf("u%d@x.com", i)})
	}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Failed)
	assert.Equal(t, integration.StatusError, res.Status)

	entry := f.history(t, "cfg-users")[0]
	require.Len(t, entry.Errors, 1)
	bucket := entry.Errors[0]
	assert.Equal(t, integration.ErrorRequired, bucket.Type)
	assert.Equal(t, "missing required fields: name", bucket.Message)
	assert.Equal(t, 10, bucket.Count)
	assert.Len(t, bucket.Examples, 3)
	assert.Equal(t, "missing required fields: name (10 records)", entry.Message)
}

func TestExecute_PartialRun(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{
		{"email": "a@b.com", "full_name": "Ana"},
		{"email": "  ", "full_name": "Nobody"},
	}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusPartial, res.Status)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Failed)

	bucket := f.history(t, "cfg-users")[0].Errors[0]
	assert.Equal(t, integration.ErrorValidation, bucket.Type)
	assert.Equal(t, []string{"row 2"}, bucket.Examples)
}

func TestExecute_SourceFailure(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	_, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrSourceUnavailable)

	entry := f.history(t, "cfg-users")[0]
	assert.Equal(t, integration.StatusError, entry.Status)
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorSystem, entry.Errors[0].Type)
	assert.Contains(t, entry.Errors[0].Message, "SELECT * FROM vw_employees")
}

func TestExecute_DuplicateAndPanicAreBucketed(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.store.insertErr = mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
	f.reader.Rows = []map[string]any{
		{"email": "a@b.com", "full_name": "Ana"},
		{"email": "c@d.com", "full_name": "Caio"},
	}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	entry := f.history(t, "cfg-users")[0]
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorDuplicate, entry.Errors[0].Type)
	assert.Equal(t, 2, entry.Errors[0].Count)

	f.store.insertErr = nil
	f.store.panicOn = "Caio"
	res, err = f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusPartial, res.Status)
	entry = f.history(t, "cfg-users")[0]
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorProcessing, entry.Errors[0].Type)
}

func TestExecute_CancelledMidRun(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	res, err := f.engine.Execute(ctx, "cfg-users", "")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, integration.StatusError, res.Status)

	entry := f.history(t, "cfg-users")[0]
	require.Len(t, entry.Errors, 1)
	assert.Equal(t, integration.ErrorSystem, entry.Errors[0].Type)
}

func TestExecute_ConfigurationGuards(t *testing.T) {
	cfg := usersConfig()
	cfg.Active = false
	f := newFixture(t, cfg, "")

	_, err := f.engine.Execute(context.Background(), "missing", "")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.engine.Execute(context.Background(), cfg.ID, "")
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, f.history(t, cfg.ID))
	assert.Empty(t, f.publisher.events)
}

func TestExecute_InvalidConfigurationIsRejected(t *testing.T) {
	cfg := usersConfig()
	cfg.SourceKeyField = ""
	cfg.Mappings[1].Transformations = append(cfg.Mappings[1].Transformations,
		integration.Transformation{Type: "reverse"})
	cfg.Schedule = integration.Schedule{Mode: integration.ScheduleCron, CronExpression: "not a cron"}
	f := newFixture(t, cfg, "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}}

	_, err := f.engine.Execute(context.Background(), cfg.ID, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, f.reader.Queries, "no query issued")
	assert.Empty(t, f.store.All())

	history := f.history(t, cfg.ID)
	require.Len(t, history, 1)
	assert.Equal(t, integration.StatusError, history[0].Status)
	require.Len(t, history[0].Errors, 1)
	bucket := history[0].Errors[0]
	assert.Equal(t, integration.ErrorValidation, bucket.Type)
	assert.Contains(t, bucket.Message, "sourceKeyField is required")
	assert.Contains(t, bucket.Message, `unknown type "reverse"`)
	assert.NotContains(t, bucket.Message, "schedule")
}

func TestExecute_PublishesRunEvent(t *testing.T) {
	f := newFixture(t, usersConfig(), "")
	f.reader.Rows = []map[string]any{{"email": "a@b.com", "full_name": "Ana"}, {"email": "b@b.com"}}

	res, err := f.engine.Execute(context.Background(), "cfg-users", "")
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	ev := f.publisher.events[0]
	assert.Equal(t, models.EventTypeRunCompleted, ev.EventType)
	assert.Equal(t, res.RunID, ev.RunID)
	assert.Equal(t, "partial", ev.Status)
	assert.Equal(t, map[string]int{"required": 1}, ev.ErrorCounts)
}
