package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/univecal/unical-api/internal/models"
)

func TestAvatarHashNormalizesEmail(t *testing.T) {
	require.Equal(t, AvatarHash("mario@unive.it"), AvatarHash("  Mario@Unive.IT "))
	require.Len(t, AvatarHash("mario@unive.it"), 32)
}

func TestUserRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, username, password_hash, confirmed, member_since, last_seen, avatar_hash, role)`)).
		WithArgs("mario@unive.it", "mario", "hash", false,
			sqlmock.AnyArg(), sqlmock.AnyArg(), AvatarHash("mario@unive.it"), models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	user := &models.User{Email: "mario@unive.it", Username: "mario", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	require.Equal(t, int64(7), user.ID)
	require.Equal(t, models.RoleStudent, user.Role)
	require.False(t, user.MemberSince.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailIgnoresCase(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("Mario@Unive.IT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "confirmed", "member_since", "last_seen", "avatar_hash", "role", "telegram_chat_id"}).
			AddRow(int64(7), "mario@unive.it", "mario", "hash", true, now, now, "abc", "student", nil))

	user, err := repo.FindByEmail(context.Background(), "Mario@Unive.IT")
	require.NoError(t, err)
	require.Equal(t, int64(7), user.ID)
	require.True(t, user.Confirmed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByTelegramChatIDNotLinked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`WHERE telegram_chat_id = \$1`).
		WithArgs("99112233").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByTelegramChatID(context.Background(), "99112233")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetTelegramChatIDClears(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET telegram_chat_id = $2 WHERE id = $1`)).
		WithArgs(int64(7), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetTelegramChatID(context.Background(), 7, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = \$2 WHERE user_id = \$1 AND NOT revoked`).
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}
