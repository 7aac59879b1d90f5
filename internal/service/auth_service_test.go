package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/univecal/unical-api/internal/models"
	"github.com/univecal/unical-api/internal/repository"
	appErrors "github.com/univecal/unical-api/pkg/errors"
	"github.com/univecal/unical-api/pkg/mailer"
	"github.com/univecal/unical-api/pkg/token"
)

var _ authUserRepository = (*repository.UserRepository)(nil)

type mockUserRepo struct {
	users         map[int64]*models.User
	emailTaken    bool
	nextID        int64
	confirmed     []int64
	refreshTokens map[string]*models.RefreshToken
	lastSeen      bool
	chatIDs       map[int64]*string
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[int64]*models.User)
	}
	m.nextID++
	user.ID = m.nextID
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockUserRepo) Confirm(ctx context.Context, id int64) error {
	m.confirmed = append(m.confirmed, id)
	if u, ok := m.users[id]; ok {
		u.Confirmed = true
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepo) UpdateEmail(ctx context.Context, id int64, email string) error {
	if u, ok := m.users[id]; ok {
		u.Email = email
	}
	return nil
}

func (m *mockUserRepo) SetTelegramChatID(ctx context.Context, id int64, chatID *string) error {
	if m.chatIDs == nil {
		m.chatIDs = make(map[int64]*string)
	}
	m.chatIDs[id] = chatID
	if u, ok := m.users[id]; ok {
		u.TelegramChatID = chatID
	}
	return nil
}

func (m *mockUserRepo) FindByTelegramChatID(ctx context.Context, chatID string) (*models.User, error) {
	for _, u := range m.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) PingLastSeen(ctx context.Context, id int64, ts time.Time) error {
	m.lastSeen = true
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[rt.Token] = rt
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, t string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[t]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	for _, rt := range m.refreshTokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

type recordingMailer struct {
	sent []mailer.Message
}

func (m *recordingMailer) Send(messages ...mailer.Message) {
	m.sent = append(m.sent, messages...)
}

func newTestTokens() *token.Generator {
	return token.NewGenerator("token-secret", map[token.Purpose]time.Duration{
		token.PurposeConfirm:     time.Hour,
		token.PurposeReset:       time.Hour,
		token.PurposeEmailChange: time.Hour,
		token.PurposeChatLink:    time.Hour,
	})
}

func newAuthService(repo *mockUserRepo, mail *recordingMailer) *AuthService {
	return NewAuthService(repo, newTestTokens(), mail, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
		BaseURL:            "https://unical.example",
		BotUsername:        "unical_bot",
	})
}

func TestAuthServiceRegisterSendsConfirmation(t *testing.T) {
	repo := &mockUserRepo{}
	mail := &recordingMailer{}
	svc := newAuthService(repo, mail)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "mario@unive.it",
		Username: "mario",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.Confirmed)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "mario@unive.it", mail.sent[0].ToAddr)
	assert.Contains(t, mail.sent[0].Body, "/auth/confirm/")
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{emailTaken: true}
	svc := newAuthService(repo, &recordingMailer{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "mario@unive.it",
		Username: "mario",
		Password: "password123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceConfirmEmailRoundTrip(t *testing.T) {
	repo := &mockUserRepo{}
	mail := &recordingMailer{}
	svc := newAuthService(repo, mail)

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "mario@unive.it",
		Username: "mario",
		Password: "password123",
	})
	require.NoError(t, err)

	body := mail.sent[0].Body
	raw := body[strings.Index(body, "/auth/confirm/")+len("/auth/confirm/"):]
	raw = strings.Fields(raw)[0]

	require.NoError(t, svc.ConfirmEmail(context.Background(), raw))
	assert.Equal(t, []int64{user.ID}, repo.confirmed)

	err = svc.ConfirmEmail(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenInvalid.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Email: "mario@unive.it", Username: "mario", PasswordHash: string(hash), Confirmed: true, Role: models.RoleStudent},
	}}
	svc := newAuthService(repo, &recordingMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "mario@unive.it", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, res.User.Confirmed)
	assert.True(t, repo.lastSeen)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Email: "mario@unive.it", Username: "mario", PasswordHash: string(hash)},
	}}
	svc := newAuthService(repo, &recordingMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "mario@unive.it", Password: "nope-nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnconfirmedAccount(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	repo := &mockUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Email: "mario@unive.it", Username: "mario", PasswordHash: string(hash)},
	}}
	svc := newAuthService(repo, &recordingMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "mario@unive.it", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnconfirmed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.refreshTokens)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := &mockUserRepo{
		users: map[int64]*models.User{1: {ID: 1, Email: "mario@unive.it", Username: "mario", Role: models.RoleStudent}},
		refreshTokens: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: 1, Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, &recordingMailer{})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["old-token"].Revoked)
}

func TestAuthServiceRefreshTokenRevoked(t *testing.T) {
	repo := &mockUserRepo{
		users: map[int64]*models.User{1: {ID: 1, Email: "mario@unive.it", Username: "mario"}},
		refreshTokens: map[string]*models.RefreshToken{
			"dead": {ID: "rt1", UserID: 1, Token: "dead", Revoked: true, ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, &recordingMailer{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "dead"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	repo := &mockUserRepo{
		users: map[int64]*models.User{1: {ID: 1, Email: "mario@unive.it", Username: "mario", PasswordHash: string(oldHash)}},
		refreshTokens: map[string]*models.RefreshToken{
			"live": {ID: "rt1", UserID: 1, Token: "live", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo, &recordingMailer{})

	err := svc.ChangePassword(context.Background(), 1, models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.users[1].PasswordHash)
	assert.True(t, repo.refreshTokens["live"].Revoked)
}

func TestAuthServicePasswordResetUnknownEmailSilent(t *testing.T) {
	repo := &mockUserRepo{}
	mail := &recordingMailer{}
	svc := newAuthService(repo, mail)

	err := svc.RequestPasswordReset(context.Background(), models.ResetPasswordRequest{Email: "ghost@unive.it"})
	require.NoError(t, err)
	assert.Empty(t, mail.sent)
}

func TestAuthServiceTelegramLinkAndStop(t *testing.T) {
	repo := &mockUserRepo{users: map[int64]*models.User{1: {ID: 1, Email: "mario@unive.it", Username: "mario"}}}
	svc := newAuthService(repo, &recordingMailer{})

	link, err := svc.TelegramLink(1)
	require.NoError(t, err)
	require.Contains(t, link, "https://t.me/unical_bot?start=")
	raw := strings.TrimPrefix(link, "https://t.me/unical_bot?start=")

	user, err := svc.LinkTelegramChat(context.Background(), raw, "424242")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	require.NotNil(t, repo.chatIDs[1])
	assert.Equal(t, "424242", *repo.chatIDs[1])

	require.NoError(t, svc.UnlinkTelegramChat(context.Background(), "424242"))
	assert.Nil(t, repo.chatIDs[1])

	require.NoError(t, svc.UnlinkTelegramChat(context.Background(), "999999"))
}

func TestAuthServiceLinkTelegramChatBadToken(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(repo, &recordingMailer{})

	_, err := svc.LinkTelegramChat(context.Background(), "bogus", "424242")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenInvalid.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(repo, &recordingMailer{})
	user := &models.User{ID: 7, Email: "mario@unive.it", Username: "mario", Role: models.RoleAdmin}

	raw, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
