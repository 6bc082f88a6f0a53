package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raushankrgupta/birthday-club/apperrors"
	"github.com/raushankrgupta/birthday-club/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("transport down")

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func validInput() RegisterInput {
	return RegisterInput{Name: "Ann Lee", Email: "Ann@Example.com ", DateOfBirth: "1990-06-15"}
}

func TestRegister_CreatesUnverifiedUserWithOTP(t *testing.T) {
	env := newTestEnv(testNow)

	res, err := env.svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.False(t, res.Honeypot)
	assert.Equal(t, "ann@example.com", res.User.Email)
	assert.False(t, res.User.Authenticated)
	assert.NotEmpty(t, res.User.ID)

	stored := env.users.get("ann@example.com")
	require.NotNil(t, stored)
	assert.False(t, stored.Authenticated)
	assert.Equal(t, "111111", stored.OTP)
	require.NotNil(t, stored.OTPExpiresAt)
	assert.Equal(t, testNow.Add(10*time.Minute), *stored.OTPExpiresAt)
	assert.Equal(t, time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), stored.DateOfBirth)

	require.Len(t, env.notifier.codes, 1)
	assert.Equal(t, "111111", env.notifier.codes[0].code)
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	env := newTestEnv(testNow)
	_, err := env.svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "ANN@EXAMPLE.COM"
	_, err = env.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

func TestRegister_Honeypot(t *testing.T) {
	env := newTestEnv(testNow)
	in := validInput()
	in.Website = "http://spam.example"

	res, err := env.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Honeypot)
	assert.Nil(t, env.users.get("ann@example.com"))
	assert.Empty(t, env.notifier.codes)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing name", RegisterInput{Name: "  ", Email: "a@example.com", DateOfBirth: "1990-01-01"}, "name"},
		{"script in name", RegisterInput{Name: "<script>x</script>", Email: "a@example.com", DateOfBirth: "1990-01-01"}, "name"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", DateOfBirth: "1990-01-01"}, "email"},
		{"email with display name", RegisterInput{Name: "A", Email: "A <a@example.com>", DateOfBirth: "1990-01-01"}, "email"},
		{"bad date", RegisterInput{Name: "A", Email: "a@example.com", DateOfBirth: "15/06/1990"}, "dateOfBirth"},
		{"too young", RegisterInput{Name: "A", Email: "a@example.com", DateOfBirth: "2022-01-01"}, "dateOfBirth"},
		{"too old", RegisterInput{Name: "A", Email: "a@example.com", DateOfBirth: "1890-01-01"}, "dateOfBirth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(testNow)
			_, err := env.svc.Register(context.Background(), tt.in)
			var ve *apperrors.ValidationError
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve.Fields)
			assert.Equal(t, tt.field, ve.Fields[0].Field)
		})
	}
}

func TestRegister_AcceptsRFC3339DateAndEscapesName(t *testing.T) {
	env := newTestEnv(testNow)
	in := RegisterInput{Name: "Tom & Jerry", Email: "tj@example.com", DateOfBirth: "1985-02-03T00:00:00Z"}

	res, err := env.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Tom &amp; Jerry", res.User.Name)
	assert.Equal(t, time.Date(1985, 2, 3, 0, 0, 0, 0, time.UTC), env.users.get("tj@example.com").DateOfBirth)
}

func TestRegister_EmailFailureKeepsUser(t *testing.T) {
	env := newTestEnv(testNow)
	env.notifier.codeErr = errTransport

	res, err := env.svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.NotNil(t, env.users.get("ann@example.com"))
}

func TestRegister_StoreUnavailable(t *testing.T) {
	env := newTestEnv(testNow)
	env.users.err = apperrors.ErrStoreUnavailable

	_, err := env.svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func registered(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.svc.Register(context.Background(), validInput())
	require.NoError(t, err)
}

func TestVerifyOTP_Success(t *testing.T) {
	env := newTestEnv(testNow)
	registered(t, env)

	user, err := env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	require.NoError(t, err)
	assert.True(t, user.Authenticated)

	stored := env.users.get("ann@example.com")
	assert.True(t, stored.Authenticated)
	assert.Empty(t, stored.OTP)
	assert.Nil(t, stored.OTPExpiresAt)

	_, err = env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyVerified)
}

func TestVerifyOTP_WrongCodeKeepsOTP(t *testing.T) {
	env := newTestEnv(testNow)
	registered(t, env)

	_, err := env.svc.VerifyOTP(context.Background(), "ann@example.com", "999999")
	assert.ErrorIs(t, err, apperrors.ErrInvalidOTP)
	assert.Equal(t, "111111", env.users.get("ann@example.com").OTP)

	_, err = env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	assert.NoError(t, err)
}

func TestVerifyOTP_ExpiredClearsAndResendIssuesNewCode(t *testing.T) {
	env := newTestEnv(testNow)
	registered(t, env)

	env.clock.t = testNow.Add(10 * time.Minute)
	_, err := env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	assert.ErrorIs(t, err, apperrors.ErrOTPExpired)
	assert.Empty(t, env.users.get("ann@example.com").OTP)

	_, err = env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	assert.ErrorIs(t, err, apperrors.ErrNoOTP)

	require.NoError(t, env.svc.ResendOTP(context.Background(), "ann@example.com"))
	stored := env.users.get("ann@example.com")
	assert.Equal(t, "222222", stored.OTP)
	assert.NotEqual(t, "111111", stored.OTP)
	assert.Equal(t, env.clock.t.Add(10*time.Minute), *stored.OTPExpiresAt)
}

func TestVerifyOTP_Errors(t *testing.T) {
	env := newTestEnv(testNow)

	_, err := env.svc.VerifyOTP(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = env.svc.VerifyOTP(context.Background(), "ghost@example.com", "12ab56")
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "otp", ve.Fields[0].Field)
}

func TestResendOTP(t *testing.T) {
	env := newTestEnv(testNow)
	registered(t, env)

	env.notifier.codeErr = errTransport
	err := env.svc.ResendOTP(context.Background(), "ann@example.com")
	assert.ErrorIs(t, err, apperrors.ErrEmailDispatch)
	// the new code is stored even though it could not be mailed
	assert.Equal(t, "222222", env.users.get("ann@example.com").OTP)

	assert.ErrorIs(t, env.svc.ResendOTP(context.Background(), "ghost@example.com"), apperrors.ErrNotFound)

	env.users.add(models.User{Email: "done@example.com", Authenticated: true})
	assert.ErrorIs(t, env.svc.ResendOTP(context.Background(), "done@example.com"), apperrors.ErrAlreadyVerified)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(testNow)
	registered(t, env)

	st, err := env.svc.Status(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, st.Exists)

	st, err = env.svc.Status(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.True(t, st.HasOTP)
	assert.False(t, st.OTPExpired)
	assert.False(t, st.CanResendOTP)
	assert.True(t, st.NeedsVerification)

	env.clock.t = testNow.Add(time.Hour)
	st, err = env.svc.Status(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, st.OTPExpired)
	assert.True(t, st.CanResendOTP)

	env.clock.t = testNow
	_, err = env.svc.VerifyOTP(context.Background(), "ann@example.com", "111111")
	require.NoError(t, err)
	st, err = env.svc.Status(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.False(t, st.CanResendOTP)
	assert.Equal(t, "User is verified and active", st.Message)
}
