package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	clientdomain "github.com/facturio/facturio/internal/client/domain"
	"github.com/facturio/facturio/internal/client/repository"
	"github.com/facturio/facturio/pkg/db"
)

func newTestService(t *testing.T) (clientdomain.Service, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&clientdomain.Client{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(zap.NewNop(), dbConn, repository.New(), node), node
}

func TestCreateNormalizesNIF(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	client, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "  12345678z ",
		Email:     "Ana@Example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "12345678Z", client.NIF)
	assert.Equal(t, "ana@example.com", client.Email)
}

func TestCreateDuplicateNIFSameCompany(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	_, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana G.",
		NIF:       "12345678z",
	})
	assert.ErrorIs(t, err, clientdomain.ErrNIFExists)
}

func TestCreateSameNIFDifferentCompanies(t *testing.T) {
	svc, node := newTestService(t)

	_, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: node.Generate(),
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: node.Generate(),
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	assert.NoError(t, err)
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	created, err := svc.Upsert(context.Background(), nil, clientdomain.UpsertClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
		Address:   "Calle Vieja 1",
	})
	require.NoError(t, err)

	updated, err := svc.Upsert(context.Background(), nil, clientdomain.UpsertClientRequest{
		CompanyID: companyID,
		Name:      "Ana García López",
		NIF:       "12345678z",
		Address:   "Calle Nueva 2",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Ana García López", updated.Name)
	assert.Equal(t, "Calle Nueva 2", updated.Address)

	clients, err := svc.List(context.Background(), companyID)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestUpsertOverwritesBlankFields(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	_, err := svc.Upsert(context.Background(), nil, clientdomain.UpsertClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
		Phone:     "600111222",
		Address:   "Calle Mayor 1",
	})
	require.NoError(t, err)

	// Last submission wins whole: omitted fields clear stored values.
	_, err = svc.Upsert(context.Background(), nil, clientdomain.UpsertClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	require.NoError(t, err)

	stored, err := svc.SearchByNIF(context.Background(), companyID, "12345678Z")
	require.NoError(t, err)
	assert.Empty(t, stored.Phone)
	assert.Empty(t, stored.Address)
	assert.Equal(t, "Ana García", stored.Name)
}

func TestSearchByNIFIsCaseInsensitive(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	created, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "X1234567A",
	})
	require.NoError(t, err)

	found, err := svc.SearchByNIF(context.Background(), companyID, "x1234567a")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestGetScopedToCompany(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	created, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), node.Generate(), created.ID)
	assert.ErrorIs(t, err, clientdomain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, node := newTestService(t)
	companyID := node.Generate()

	created, err := svc.Create(context.Background(), clientdomain.CreateClientRequest{
		CompanyID: companyID,
		Name:      "Ana García",
		NIF:       "12345678Z",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), companyID, created.ID))

	_, err = svc.GetByID(context.Background(), companyID, created.ID)
	assert.ErrorIs(t, err, clientdomain.ErrNotFound)
}
