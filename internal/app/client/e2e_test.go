package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessync/internal/app/client/remote"
	"assessync/internal/app/client/store"
	"assessync/internal/app/server/api"
	"assessync/internal/domain/entity"
	"assessync/internal/domain/resource"
	"assessync/internal/utils/logger"
)

type referenceServer struct {
	*httptest.Server
	service *resource.Service
}

func newReferenceServer(t *testing.T) *referenceServer {
	t.Helper()
	repo := resource.NewMemoryRepository()
	svc := resource.NewService(repo, entity.DefaultRegistry(), logger.Discard())
	srv := httptest.NewServer(api.New(svc, repo, "secret", logger.Discard()))
	t.Cleanup(srv.Close)
	return &referenceServer{Server: srv, service: svc}
}

func newClientFor(t *testing.T, srv *referenceServer) *App {
	t.Helper()
	httpClient := remote.NewHTTPClientWith(srv.URL, "secret", srv.Client(), logger.Discard())
	return NewWith(testConfig(), logger.Discard(), store.NewMemoryStore(), httpClient)
}

func TestEndToEnd_OfflineChangesReachServer(t *testing.T) {
	srv := newReferenceServer(t)
	app := newClientFor(t, srv)
	ctx := context.Background()

	require.NoError(t, app.SetOnline(ctx, false))

	category, err := app.Mutate(ctx, entity.TypeCategory, entity.OpCreate, "", entity.Payload{"name": "Safety"})
	require.NoError(t, err)
	require.True(t, entity.IsTempID(category.ID))

	question, err := app.Mutate(ctx, entity.TypeQuestion, entity.OpCreate, "", entity.Payload{
		"text":        "Are exits clear?",
		"category_id": category.ID,
	})
	require.NoError(t, err)

	pending, err := app.Outbox().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	require.True(t, app.Probe(ctx))
	report, err := app.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Drain.Succeeded)
	assert.Zero(t, report.Drain.Remaining)

	pending, err = app.Outbox().Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	remoteQuestions, err := srv.service.List(ctx, entity.TypeQuestion)
	require.NoError(t, err)
	require.Len(t, remoteQuestions, 1)
	assert.Equal(t, "1", remoteQuestions[0]["category_id"])

	questions, err := app.Get(ctx, entity.TypeQuestion, "")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.False(t, entity.IsTempID(questions[0].ID))
	assert.NotEqual(t, question.ID, questions[0].ID)
	assert.Equal(t, "1", questions[0].Field("category_id"))
	assert.Equal(t, entity.StatusSynced, questions[0].SyncStatus)

	again, err := app.Sync(ctx)
	require.NoError(t, err)
	added, updated, deleted := again.Reconcile.Totals()
	assert.Equal(t, []int{0, 2, 0}, []int{added, updated, deleted})
	assert.Zero(t, again.Reconcile.Types[entity.TypeCategory].Changed)
	assert.Zero(t, again.Reconcile.Types[entity.TypeQuestion].Changed)
}

func TestEndToEnd_ReplayAfterServerDedup(t *testing.T) {
	srv := newReferenceServer(t)
	ctx := context.Background()

	_, _, err := srv.service.Create(ctx, entity.TypeCategory, entity.Payload{"name": "Safety"})
	require.NoError(t, err)

	app := newClientFor(t, srv)
	require.NoError(t, app.SetOnline(ctx, false))

	_, err = app.Mutate(ctx, entity.TypeCategory, entity.OpCreate, "", entity.Payload{"name": "safety"})
	require.NoError(t, err)

	require.True(t, app.Probe(ctx))
	_, err = app.Sync(ctx)
	require.NoError(t, err)

	local, err := app.Get(ctx, entity.TypeCategory, "")
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, "1", local[0].ID)

	remoteCategories, err := srv.service.List(ctx, entity.TypeCategory)
	require.NoError(t, err)
	assert.Len(t, remoteCategories, 1)
}

func TestEndToEnd_DeleteOnline(t *testing.T) {
	srv := newReferenceServer(t)
	app := newClientFor(t, srv)
	ctx := context.Background()

	require.True(t, app.Probe(ctx))
	rec, err := app.Mutate(ctx, entity.TypeCategory, entity.OpCreate, "", entity.Payload{"name": "Fire"})
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)

	_, err = app.Mutate(ctx, entity.TypeCategory, entity.OpDelete, rec.ID, nil)
	require.NoError(t, err)

	_, err = srv.service.Get(ctx, entity.TypeCategory, "1")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}
