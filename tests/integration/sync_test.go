package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"datasync/internal/broker"
	"datasync/internal/constants"
	"datasync/internal/integration"
	"datasync/internal/logger"
	"datasync/internal/reconcile"
	"datasync/internal/source"
	"datasync/internal/target"
	pkgerrors "datasync/pkg/errors"
	"datasync/pkg/migrations"
)

const defaultPassword = "welcome-1"

type harness struct {
	infra  *TestInfra
	repo   integration.Repository
	engine *reconcile.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	infra := SetupTestInfra(t)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureIndexes(ctx, infra.MongoDB))

	repo := integration.NewRepository(infra.MongoDB)
	engine, err := reconcile.NewEngine(
		repo,
		target.NewMongoRegistry(infra.MongoDB),
		target.NewMongoOwnerResolver(infra.MongoDB, constants.DefaultAdminRole),
		source.NewPostgresReader(infra.SourceDB),
		broker.NopPublisher{},
		logger.NopLogger(),
		reconcile.Options{DefaultPassword: defaultPassword, BcryptCost: bcrypt.MinCost},
	)
	require.NoError(t, err)

	return &harness{infra: infra, repo: repo, engine: engine}
}

func (h *harness) saveConfig(t *testing.T, cfg integration.Configuration) {
	t.Helper()
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt
	_, err := h.infra.MongoDB.Collection(constants.IntegrationsCollection).InsertOne(context.Background(), cfg)
	require.NoError(t, err)
}

func (h *harness) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := h.infra.SourceDB.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func (h *harness) findOne(t *testing.T, collection string, filter bson.M) bson.M {
	t.Helper()
	var doc bson.M
	require.NoError(t, h.infra.MongoDB.Collection(collection).FindOne(context.Background(), filter).Decode(&doc))
	return doc
}

func usersIntegration() integration.Configuration {
	return integration.Configuration{
		ID:               "it-users",
		Name:             "ERP employees",
		Active:           true,
		SourceView:       "vw_sync_users",
		SourceKeyField:   "employee_id",
		TargetKeyField:   "externalId",
		TargetCollection: integration.CollectionUsers,
		Mappings: []integration.FieldMapping{
			{SourceField: "employee_id", TargetField: "externalId"},
			{SourceField: "full_name", TargetField: "name", Transformations: []integration.Transformation{{Type: integration.TransformTrim}}},
			{SourceField: "email", TargetField: "email", Transformations: []integration.Transformation{{Type: integration.TransformLowercase}}},
			{SourceField: "department", TargetField: "department", UpdateBehavior: integration.UpdateBehaviorKeep},
			{SourceField: "is_active", TargetField: "active"},
		},
		Schedule: integration.Schedule{Mode: integration.ScheduleNone},
	}
}

func TestSync_UsersInsertThenUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.exec(t, `INSERT INTO erp_employees (id, full_name, email, department, is_active) VALUES
		(1, '  Ana Souza ', 'ANA@EXAMPLE.COM', 'engineering', true),
		(2, 'Bruno Lima', 'bruno@example.com', 'operations', false)`)
	h.saveConfig(t, usersIntegration())

	result, err := h.engine.Execute(ctx, "it-users", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusSuccess, result.Status)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)

	ana := h.findOne(t, "users", bson.M{"externalId": int64(1)})
	assert.Equal(t, "Ana Souza", ana["name"])
	assert.Equal(t, "ana@example.com", ana["email"])
	assert.Equal(t, "engineering", ana["department"])
	assert.Equal(t, true, ana["mustChangePassword"])
	hash, ok := ana["password"].(string)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(defaultPassword)))

	h.exec(t, `UPDATE erp_employees SET full_name = 'Ana Souza Reis', department = 'finance' WHERE id = 1`)

	result, err = h.engine.Execute(ctx, "it-users", "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Updated)

	ana = h.findOne(t, "users", bson.M{"externalId": int64(1)})
	assert.Equal(t, "Ana Souza Reis", ana["name"])
	assert.Equal(t, "engineering", ana["department"], "keep fields survive updates")
	assert.Equal(t, hash, ana["password"], "updates do not reset the password")

	count, err := h.infra.MongoDB.Collection("users").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	cfg, err := h.repo.Get(ctx, "it-users")
	require.NoError(t, err)
	require.Len(t, cfg.History, 2)
	assert.Equal(t, 2, cfg.History[0].Updated)
	assert.Equal(t, 2, cfg.History[1].Inserted)
	assert.Equal(t, integration.StatusSuccess, cfg.LastStatus)
	require.NotNil(t, cfg.LastRunAt)
}

func TestSync_FilterClause(t *testing.T) {
	h := newHarness(t)

	h.exec(t, `INSERT INTO erp_employees (id, full_name, email, is_active) VALUES
		(1, 'Active One', 'one@example.com', true),
		(2, 'Inactive Two', 'two@example.com', false)`)
	cfg := usersIntegration()
	cfg.FilterClause = "WHERE is_active = true"
	h.saveConfig(t, cfg)

	result, err := h.engine.Execute(context.Background(), cfg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Inserted)
}

func TestSync_UnsafeFilterNeverReachesSource(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.exec(t, `INSERT INTO erp_employees (id, full_name, email) VALUES (1, 'Ana', 'ana@example.com')`)
	cfg := usersIntegration()
	cfg.FilterClause = "1=1; DROP TABLE erp_employees"
	h.saveConfig(t, cfg)

	_, err := h.engine.Execute(ctx, cfg.ID, "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrUnsafeFilter.Code))

	var rows int
	require.NoError(t, h.infra.SourceDB.GetContext(ctx, &rows, `SELECT COUNT(*) FROM erp_employees`))
	assert.Equal(t, 1, rows)

	stored, err := h.repo.Get(ctx, cfg.ID)
	require.NoError(t, err)
	require.Len(t, stored.History, 1)
	assert.Equal(t, integration.StatusError, stored.History[0].Status)
}

func TestSync_ProjectsOwnerAndRequiredFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	adminID := primitive.NewObjectID()
	_, err := h.infra.MongoDB.Collection("users").InsertOne(ctx, bson.M{
		"_id": adminID, "name": "Root", "email": "root@example.com",
		"role": "admin", "active": true, "createdAt": time.Now().UTC(),
	})
	require.NoError(t, err)

	h.exec(t, `INSERT INTO erp_projects (code, client_name, title, status, budget) VALUES
		('P-1', 'Acme', 'Portal', 'closed', 1500.00),
		('P-2', NULL, 'Orphan', 'open', NULL)`)
	h.saveConfig(t, integration.Configuration{
		ID:               "it-projects",
		Name:             "ERP projects",
		Active:           true,
		SourceView:       "vw_sync_projects",
		SourceKeyField:   "code",
		TargetKeyField:   "projectId",
		TargetCollection: integration.CollectionProjects,
		Mappings: []integration.FieldMapping{
			{SourceField: "code", TargetField: "projectId"},
			{SourceField: "client_name", TargetField: "client"},
			{SourceField: "title", TargetField: "projectName"},
		},
	})

	result, err := h.engine.Execute(ctx, "it-projects", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusPartial, result.Status)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Failed)

	project := h.findOne(t, "projects", bson.M{"projectId": "P-1"})
	assert.Equal(t, adminID.Hex(), project["createdBy"])
	assert.Equal(t, true, project["active"])

	cfg, err := h.repo.Get(ctx, "it-projects")
	require.NoError(t, err)
	require.Len(t, cfg.History, 1)
	require.Len(t, cfg.History[0].Errors, 1)
	assert.Equal(t, integration.ErrorRequired, cfg.History[0].Errors[0].Type)
}

func TestSync_DuplicateEmailIsBucketed(t *testing.T) {
	h := newHarness(t)

	h.exec(t, `INSERT INTO erp_employees (id, full_name, email) VALUES
		(10, 'First', 'dup@example.com'),
		(11, 'Second', 'dup@example.com')`)
	h.saveConfig(t, usersIntegration())

	result, err := h.engine.Execute(context.Background(), "it-users", "")
	require.NoError(t, err)
	assert.Equal(t, integration.StatusPartial, result.Status)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Failed)

	cfg, err := h.repo.Get(context.Background(), "it-users")
	require.NoError(t, err)
	require.Len(t, cfg.History[0].Errors, 1)
	assert.Equal(t, integration.ErrorDuplicate, cfg.History[0].Errors[0].Type)
}

func TestSync_HistoryIsCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.exec(t, `INSERT INTO erp_departments (name) VALUES ('Engineering'), ('Finance')`)
	h.saveConfig(t, integration.Configuration{
		ID:               "it-teams",
		Name:             "Departments",
		Active:           true,
		SourceView:       "vw_sync_teams",
		SourceKeyField:   "name",
		TargetKeyField:   "name",
		TargetCollection: integration.CollectionTeams,
		Mappings:         []integration.FieldMapping{{SourceField: "name", TargetField: "name"}},
	})

	var runIDs []string
	for i := 0; i < integration.HistoryLimit+2; i++ {
		result, err := h.engine.Execute(ctx, "it-teams", "")
		require.NoError(t, err)
		runIDs = append(runIDs, result.RunID)
	}

	cfg, err := h.repo.Get(ctx, "it-teams")
	require.NoError(t, err)
	require.Len(t, cfg.History, integration.HistoryLimit)
	assert.Equal(t, runIDs[len(runIDs)-1], cfg.History[0].ID)

	listed, err := h.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Len(t, listed[0].History, 1)
}

func TestSourceReader_StackedStatementsCannotWrite(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()
	reader := source.NewPostgresReader(infra.SourceDB)

	_, _ = reader.Query(ctx, `SELECT * FROM vw_sync_teams; INSERT INTO erp_departments (name) VALUES ('Injected')`)
	_, _ = reader.Query(ctx, `SELECT * FROM vw_sync_teams; GRANT ALL ON erp_departments TO PUBLIC`)

	var count int
	require.NoError(t, infra.SourceDB.GetContext(ctx, &count, `SELECT COUNT(*) FROM erp_departments`))
	assert.Zero(t, count)

	var granted bool
	require.NoError(t, infra.SourceDB.GetContext(ctx, &granted,
		`SELECT has_table_privilege('public', 'erp_departments', 'INSERT')`))
	assert.False(t, granted)

	rows, err := reader.Query(ctx, `SELECT * FROM vw_sync_teams`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
