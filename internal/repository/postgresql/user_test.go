package postgresql_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	mock_database "github.com/the-vibe-thread/admin-orders/internal/db/mocks"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
	"github.com/the-vibe-thread/admin-orders/internal/repository/postgresql"
)

type stringRow struct {
	value string
	err   error
}

func (r stringRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

func TestUserRepo_ValidateUser(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("admin")).
			Return(stringRow{value: string(hash)})

		valid, err := repo.ValidateUser(ctx, "admin", "secret")
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("wrong password is not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("admin")).
			Return(stringRow{value: string(hash)})

		valid, err := repo.ValidateUser(ctx, "admin", "nope")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("unknown user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("ghost")).
			Return(stringRow{err: pgx.ErrNoRows})

		valid, err := repo.ValidateUser(ctx, "ghost", "secret")
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestUserRepo_GetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("tok-1")).
			Return(stringRow{value: "admin"})

		username, err := repo.GetSession(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "admin", username)
	})

	t.Run("expired or unknown token", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := postgresql.NewUserRepo(mockDB)

		mockDB.EXPECT().ExecQueryRow(gomock.Any(), gomock.Any(), gomock.Eq("stale")).
			Return(stringRow{err: pgx.ErrNoRows})

		_, err := repo.GetSession(ctx, "stale")
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}
