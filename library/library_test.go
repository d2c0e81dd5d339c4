package library

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

type fakeRepo struct {
	saved model.Library
}

func (f *fakeRepo) Save(_ context.Context, lib model.Library) (uuid.UUID, error) {
	f.saved = lib
	return uuid.New(), nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (model.Library, error) {
	return f.saved, nil
}

func (f *fakeRepo) FindByName(_ context.Context, name string) (model.Library, error) {
	return f.saved, nil
}

func TestSaveRejectsEmptyName(t *testing.T) {
	svc := New(&fakeRepo{})
	_, err := svc.Save(context.Background(), model.Library{WeightSemantic: 0.6, WeightLexical: 0.4})
	require.Error(t, err)
	kind, ok := ragerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, ragerr.InvalidInput, kind)
}

func TestSaveRejectsWeightsNotSummingToOne(t *testing.T) {
	svc := New(&fakeRepo{})
	_, err := svc.Save(context.Background(), model.Library{Name: "contracts", WeightSemantic: 0.5, WeightLexical: 0.6})
	require.Error(t, err)
	kind, ok := ragerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, ragerr.InvalidInput, kind)
}

func TestSaveAcceptsValidLibrary(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo)
	id, err := svc.Save(context.Background(), model.Library{Name: "contracts", WeightSemantic: 0.7, WeightLexical: 0.3})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, "contracts", repo.saved.Name)
}
