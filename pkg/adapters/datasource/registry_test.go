package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
)

func TestTypeForConnectionString(t *testing.T) {
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: "testdb", Schemes: []string{"testdb", "TestDB2"}},
	})

	dsType, err := TypeForConnectionString("testdb://user@host/db")
	require.NoError(t, err)
	assert.Equal(t, "testdb", dsType)

	dsType, err = TypeForConnectionString("testdb2://host")
	require.NoError(t, err)
	assert.Equal(t, "testdb", dsType, "schemes match case-insensitively")

	_, err = TypeForConnectionString("oracle://host/db")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)

	_, err = TypeForConnectionString("host=localhost dbname=app")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConnection)

	assert.True(t, IsRegistered("testdb"))

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "testdb" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFactory_UnknownType(t *testing.T) {
	f := NewDatasourceAdapterFactory(nil)

	_, err := f.Describe("nope", "nope://x")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)

	_, err = f.NewQueryExecutor(t.Context(), "nope", "id", "nope://x")
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedType)
}
