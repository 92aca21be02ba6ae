package services

import (
	"testing"

	"github.com/GrainArc/SheetGeo/apierr"
	"github.com/GrainArc/SheetGeo/logger"
	"github.com/GrainArc/SheetGeo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	store *FileService
	svc   *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store, err := NewFileService(t.TempDir())
	require.NoError(t, err)
	return &fixture{
		db:    db,
		store: store,
		svc:   New(db, logger.Nop(), store, NewPreviewRenderer(36), nil),
	}
}

func assertCode(t *testing.T, err error, code string) *apierr.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok, "expected apierr.Error, got %T: %v", err, err)
	assert.Equal(t, code, e.Code, err.Error())
	return e
}

func assertInvalid(t *testing.T, err error, field string) {
	t.Helper()
	e := assertCode(t, err, apierr.CodeInvalidInput)
	assert.Equal(t, field, e.Field)
}
