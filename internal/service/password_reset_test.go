package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shop-admin/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeResetRepo struct {
	usersByIdentifier map[string]*model.User
	usersByID         map[int64]*model.User
	rows              map[int64]*model.PasswordResetToken
	nextID            int64
	revokedAllFor     []int64
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{
		usersByIdentifier: map[string]*model.User{},
		usersByID:         map[int64]*model.User{},
		rows:              map[int64]*model.PasswordResetToken{},
	}
}

func (f *fakeResetRepo) addUser(user *model.User) {
	f.usersByIdentifier[user.Identifier] = user
	f.usersByID[user.ID] = user
}

func (f *fakeResetRepo) GetUserByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	user, ok := f.usersByIdentifier[identifier]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeResetRepo) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (f *fakeResetRepo) InsertPasswordResetToken(_ context.Context, row *model.PasswordResetToken) (int64, error) {
	f.nextID++
	stored := *row
	stored.ID = f.nextID
	stored.CreatedAt = time.Now()
	f.rows[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeResetRepo) liveRows(identifier string) []*model.PasswordResetToken {
	var out []*model.PasswordResetToken
	for _, row := range f.rows {
		if row.Identifier == identifier && row.UsedAt == nil && row.ExpiresAt.After(time.Now()) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeResetRepo) GetLivePasswordResetToken(_ context.Context, identifier string) (*model.PasswordResetToken, error) {
	rows := f.liveRows(identifier)
	if len(rows) == 0 {
		return nil, pgx.ErrNoRows
	}
	return rows[0], nil
}

func (f *fakeResetRepo) GetPasswordResetTokenByHash(_ context.Context, resetTokenHash string) (*model.PasswordResetToken, error) {
	for _, row := range f.rows {
		if row.ResetTokenHash == resetTokenHash && row.UsedAt == nil && row.ExpiresAt.After(time.Now()) {
			return row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeResetRepo) CountRecentPasswordResetRequests(_ context.Context, identifier string, since time.Time) (int, error) {
	count := 0
	for _, row := range f.rows {
		if row.Identifier == identifier && !row.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeResetRepo) InvalidateLivePasswordResetTokens(_ context.Context, identifier string) error {
	now := time.Now()
	for _, row := range f.rows {
		if row.Identifier == identifier && row.UsedAt == nil {
			row.UsedAt = &now
		}
	}
	return nil
}

func (f *fakeResetRepo) IncrementPasswordResetAttempts(_ context.Context, id int64) (int, error) {
	row, ok := f.rows[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	row.Attempts++
	return row.Attempts, nil
}

func (f *fakeResetRepo) RotateResetTokenHash(_ context.Context, id int64, resetTokenHash string) error {
	row, ok := f.rows[id]
	if !ok || row.UsedAt != nil {
		return pgx.ErrNoRows
	}
	row.ResetTokenHash = resetTokenHash
	return nil
}

func (f *fakeResetRepo) DeletePasswordResetToken(_ context.Context, id int64) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeResetRepo) CompletePasswordReset(_ context.Context, userID int64, passwordHash string, resetRowID int64) error {
	row, ok := f.rows[resetRowID]
	if !ok || row.UsedAt != nil {
		return pgx.ErrNoRows
	}
	user, ok := f.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	now := time.Now()
	row.UsedAt = &now
	f.revokedAllFor = append(f.revokedAllFor, userID)
	return nil
}

func (f *fakeResetRepo) UpdateUserPassword(_ context.Context, userID int64, passwordHash string) error {
	user, ok := f.usersByID[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (f *fakeResetRepo) RevokeAllRefreshTokens(_ context.Context, userID int64) error {
	f.revokedAllFor = append(f.revokedAllFor, userID)
	return nil
}

type fakeSender struct {
	lastCode string
	sent     int
	fail     bool
}

func (s *fakeSender) SendCode(_ context.Context, _, code string, _ time.Duration) error {
	if s.fail {
		return errors.New("gateway down")
	}
	s.sent++
	s.lastCode = code
	return nil
}

func newResetFixture(t *testing.T) (*PasswordResetService, *fakeResetRepo, *fakeSender) {
	t.Helper()
	repo := newFakeResetRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.addUser(&model.User{ID: 1, Identifier: "0901234567", PasswordHash: string(hash), RoleID: 2})
	sender := &fakeSender{}
	return NewPasswordResetService(repo, sender, zap.NewNop()), repo, sender
}

func TestRequestResetDeliversCode(t *testing.T) {
	svc, repo, sender := newResetFixture(t)

	expiresIn, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(600), expiresIn)
	assert.Equal(t, 1, sender.sent)
	assert.Len(t, sender.lastCode, 6)
	assert.Len(t, repo.rows, 1)
}

func TestRequestResetUnknownIdentifier(t *testing.T) {
	svc, _, _ := newResetFixture(t)
	_, err := svc.RequestReset(context.Background(), "0000000000", model.RequestMeta{})
	assert.ErrorIs(t, err, ErrResetNotFound)
}

// The 4th request inside the window is rejected and creates no new row.
func TestRequestResetRateLimited(t *testing.T) {
	svc, repo, _ := newResetFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
		require.NoError(t, err)
	}

	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, repo.rows, 3)
}

// A new request supersedes earlier live codes: only the newest verifies.
func TestRequestResetSupersedesPriorCodes(t *testing.T) {
	svc, repo, sender := newResetFixture(t)

	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)
	firstCode := sender.lastCode

	_, err = svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)

	assert.Len(t, repo.liveRows("0901234567"), 1)
	if firstCode != sender.lastCode {
		_, _, err = svc.VerifyOTP(context.Background(), "0901234567", firstCode)
		assert.Error(t, err)
	}
}

func TestRequestResetDeliveryFailureDeletesRow(t *testing.T) {
	svc, repo, sender := newResetFixture(t)
	sender.fail = true

	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Empty(t, repo.rows)
}

func TestVerifyOTPWrongCodeReportsRemaining(t *testing.T) {
	svc, _, sender := newResetFixture(t)
	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)

	wrong := "000000"
	if wrong == sender.lastCode {
		wrong = "000001"
	}

	_, remaining, err := svc.VerifyOTP(context.Background(), "0901234567", wrong)
	assert.ErrorIs(t, err, ErrOTPMismatch)
	assert.Equal(t, maxOTPAttempts-1, remaining)
}

// After maxAttempts wrong codes the row is destroyed; even the correct code
// fails afterwards.
func TestVerifyOTPCapDestroysRow(t *testing.T) {
	svc, repo, sender := newResetFixture(t)
	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)

	wrong := "000000"
	if wrong == sender.lastCode {
		wrong = "000001"
	}

	for i := 0; i < maxOTPAttempts-1; i++ {
		_, _, err = svc.VerifyOTP(context.Background(), "0901234567", wrong)
		assert.ErrorIs(t, err, ErrOTPMismatch)
	}
	_, _, err = svc.VerifyOTP(context.Background(), "0901234567", wrong)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Empty(t, repo.rows)

	_, _, err = svc.VerifyOTP(context.Background(), "0901234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrNoPendingReset)
}

// Full round-trip: request, verify with the delivered code, reset with a new
// password. Replaying the reset token must fail.
func TestPasswordResetRoundTrip(t *testing.T) {
	svc, repo, sender := newResetFixture(t)

	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)

	resetToken, _, err := svc.VerifyOTP(context.Background(), "0901234567", sender.lastCode)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, svc.CompleteReset(context.Background(), resetToken, "brand-new-pass"))

	user := repo.usersByID[1]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("brand-new-pass")))
	assert.Contains(t, repo.revokedAllFor, int64(1))

	err = svc.CompleteReset(context.Background(), resetToken, "another-pass")
	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestCompleteResetEnforcesPasswordPolicy(t *testing.T) {
	svc, _, sender := newResetFixture(t)

	_, err := svc.RequestReset(context.Background(), "0901234567", model.RequestMeta{})
	require.NoError(t, err)
	resetToken, _, err := svc.VerifyOTP(context.Background(), "0901234567", sender.lastCode)
	require.NoError(t, err)

	err = svc.CompleteReset(context.Background(), resetToken, "tiny")
	assert.ErrorIs(t, err, ErrPasswordPolicy)
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newResetFixture(t)

	err := svc.ChangePassword(context.Background(), 1, "wrong", "new-password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = svc.ChangePassword(context.Background(), 1, "secret1", "secret1")
	assert.ErrorIs(t, err, ErrPasswordUnchanged)

	err = svc.ChangePassword(context.Background(), 1, "secret1", "tiny")
	assert.ErrorIs(t, err, ErrPasswordPolicy)

	require.NoError(t, svc.ChangePassword(context.Background(), 1, "secret1", "new-password"))
	user := repo.usersByID[1]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new-password")))
	assert.Contains(t, repo.revokedAllFor, int64(1))
}
