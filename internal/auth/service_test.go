package auth_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fzdarsky/srpgate/internal/auth"
	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

func quietLogger() *logging.Logger {
	logger := logging.New(logging.LevelError, logging.FormatJSON)
	logger.SetOutput(io.Discard, io.Discard)
	return logger
}

func newService(t *testing.T, store auth.AccountStore) *auth.Service {
	t.Helper()
	sm := newSessionManager(t, 30*time.Minute, 0)
	svc, err := auth.NewService(store, sm, quietLogger(), auth.Options{
		GroupBits: 1024,
		Hash:      "sha256",
	})
	require.NoError(t, err)
	t.Cleanup(svc.Stop)
	return svc
}

// login runs hello and returns the client, ready to compute M1.
func login(t *testing.T, svc *auth.Service, identity, password string) (*srp.Client, *auth.HelloResult) {
	t.Helper()
	ctx := context.Background()

	g := srp.MustLookup(1024, "sha256")
	secret, err := srp.GenerateSecret(ctx, nil)
	require.NoError(t, err)
	client, err := srp.NewClient(g, []byte(identity), []byte(password), secret)
	require.NoError(t, err)

	A, err := client.ComputeA()
	require.NoError(t, err)

	hello, err := svc.Hello(ctx, auth.HelloRequest{Identity: identity, A: A})
	require.NoError(t, err)
	require.NoError(t, client.SetB(hello.Salt, hello.B))
	return client, hello
}

func TestService_CreateHelloConfirm(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()
	svc := newService(t, store)

	account, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("wonderland")})
	require.NoError(t, err)
	assert.Equal(t, 1024, account.GroupBits)
	assert.Equal(t, "sha256", account.Hash)
	assert.Len(t, account.Salt, auth.DefaultSaltBytes)
	assert.Len(t, account.Verifier, 128)

	client, hello := login(t, svc, "alice", "wonderland")
	assert.Equal(t, account.Salt, hello.Salt)
	assert.Equal(t, 1024, hello.GroupBits)
	assert.Equal(t, 1, svc.PendingHandshakes())

	m1, err := client.ComputeM1()
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "alice", hello.HandshakeID, m1)
	require.NoError(t, err)
	require.NoError(t, client.CheckM2(result.M2))
	assert.Equal(t, 0, svc.PendingHandshakes())

	session, err := svc.Sessions().Validate(result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Identity)
}

func TestService_WrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, auth.NewMemoryStore())

	_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("wonderland")})
	require.NoError(t, err)

	client, hello := login(t, svc, "alice", "looking-glass")
	m1, err := client.ComputeM1()
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, "alice", hello.HandshakeID, m1)
	assert.ErrorIs(t, err, srp.ErrClientAuthenticationFailed)
	assert.Nil(t, result)
	assert.Equal(t, 0, svc.Sessions().Count())

	// The handshake is gone even though confirm failed.
	_, err = svc.Confirm(ctx, "alice", hello.HandshakeID, m1)
	assert.ErrorIs(t, err, auth.ErrHandshakeNotFound)
}

func TestService_ConfirmWrongIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, auth.NewMemoryStore())

	for _, id := range []string{"alice", "bob"} {
		_, err := svc.Create(ctx, auth.CreateRequest{Identity: id, Password: []byte("pw-" + id)})
		require.NoError(t, err)
	}

	client, hello := login(t, svc, "alice", "pw-alice")
	m1, err := client.ComputeM1()
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "bob", hello.HandshakeID, m1)
	assert.ErrorIs(t, err, auth.ErrHandshakeNotFound)
}

func TestService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, auth.NewMemoryStore())

	_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  auth.CreateRequest
		want error
	}{
		{"duplicate", auth.CreateRequest{Identity: "alice", Password: []byte("pw")}, auth.ErrAccountExists},
		{"empty password", auth.CreateRequest{Identity: "bob"}, auth.ErrEmptyPassword},
		{"bad identity", auth.CreateRequest{Identity: "", Password: []byte("pw")}, auth.ErrInvalidIdentity},
		{"unknown group", auth.CreateRequest{Identity: "bob", Password: []byte("pw"), GroupBits: 512}, srp.ErrUnknownGroup},
		{"unknown hash", auth.CreateRequest{Identity: "bob", Password: []byte("pw"), Hash: "md5"}, srp.ErrUnknownHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_CreateParameterOverride(t *testing.T) {
	svc := newService(t, auth.NewMemoryStore())

	account, err := svc.Create(context.Background(), auth.CreateRequest{
		Identity:  "carol",
		Password:  []byte("pw"),
		GroupBits: 1536,
		Hash:      "SHA-512",
	})
	require.NoError(t, err)
	assert.Equal(t, 1536, account.GroupBits)
	assert.Equal(t, "sha512", account.Hash)
	assert.Len(t, account.Verifier, 192)
}

func TestService_HelloRejectsDegenerateA(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, auth.NewMemoryStore())

	_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
	require.NoError(t, err)

	g := srp.MustLookup(1024, "sha256")
	for name, A := range map[string][]byte{"zero": {0}, "N": g.N.Bytes()} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Hello(ctx, auth.HelloRequest{Identity: "alice", A: A})
			assert.ErrorIs(t, err, srp.ErrInvalidPublicValue)
		})
	}
	assert.Equal(t, 0, svc.PendingHandshakes())
}

func TestService_HelloUnknownAccount(t *testing.T) {
	svc := newService(t, auth.NewMemoryStore())

	_, err := svc.Hello(context.Background(), auth.HelloRequest{Identity: "nobody", A: []byte{2}})
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestService_HelloParameterMismatch(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, auth.NewMemoryStore())

	_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
	require.NoError(t, err)

	tests := []struct {
		name     string
		bits     int
		hash     string
		mismatch bool
	}{
		{"no expectation", 0, "", false},
		{"matching", 1024, "sha256", false},
		{"matching alias", 1024, "SHA-256", false},
		{"other group", 2048, "", true},
		{"other hash", 0, "sha512", true},
		{"unknown hash", 0, "md5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Hello(ctx, auth.HelloRequest{
				Identity:  "alice",
				A:         []byte{2},
				GroupBits: tt.bits,
				Hash:      tt.hash,
			})
			if !tt.mismatch {
				assert.NoError(t, err)
				return
			}

			var mismatch *auth.ParameterMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.ErrorIs(t, err, auth.ErrParameterMismatch)
			assert.Equal(t, 1024, mismatch.GroupBits)
			assert.Equal(t, "sha256", mismatch.Hash)
		})
	}
}

func TestService_StoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := auth.NewMockAccountStore(ctrl)
	svc := newService(t, store)
	ctx := context.Background()

	diskFull := errors.New("disk full")

	t.Run("lookup failure", func(t *testing.T) {
		store.EXPECT().Fetch(gomock.Any(), "alice").Return(nil, diskFull)

		_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
		assert.ErrorIs(t, err, diskFull)
	})

	t.Run("write failure", func(t *testing.T) {
		store.EXPECT().Fetch(gomock.Any(), "alice").Return(nil, auth.ErrAccountNotFound)
		store.EXPECT().Store(gomock.Any(), gomock.Any()).Return(diskFull)

		_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
		assert.ErrorIs(t, err, diskFull)
	})

	t.Run("lost race", func(t *testing.T) {
		store.EXPECT().Fetch(gomock.Any(), "alice").Return(nil, auth.ErrAccountNotFound)
		store.EXPECT().Store(gomock.Any(), gomock.Any()).Return(auth.ErrAccountExists)

		_, err := svc.Create(ctx, auth.CreateRequest{Identity: "alice", Password: []byte("pw")})
		assert.ErrorIs(t, err, auth.ErrAccountExists)
	})

	t.Run("stored account never carries the password", func(t *testing.T) {
		store.EXPECT().Fetch(gomock.Any(), "dave").Return(nil, auth.ErrAccountNotFound)
		store.EXPECT().Store(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *auth.Account) error {
				assert.Equal(t, "dave", a.Identity)
				assert.NotContains(t, string(a.Verifier), "secret-password")
				assert.NotContains(t, string(a.Salt), "secret-password")
				return nil
			})

		_, err := svc.Create(ctx, auth.CreateRequest{Identity: "dave", Password: []byte("secret-password")})
		assert.NoError(t, err)
	})

	t.Run("corrupt account parameters", func(t *testing.T) {
		store.EXPECT().Fetch(gomock.Any(), "erin").Return(&auth.Account{
			Identity:  "erin",
			Salt:      []byte{1},
			Verifier:  []byte{2},
			GroupBits: 999,
			Hash:      "sha256",
		}, nil)

		_, err := svc.Hello(ctx, auth.HelloRequest{Identity: "erin", A: []byte{2}})
		assert.ErrorIs(t, err, srp.ErrUnknownGroup)
	})
}

func TestNewService_InvalidOptions(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 0)

	_, err := auth.NewService(auth.NewMemoryStore(), sm, quietLogger(), auth.Options{GroupBits: 1000})
	assert.ErrorIs(t, err, srp.ErrUnknownGroup)

	_, err = auth.NewService(auth.NewMemoryStore(), sm, quietLogger(), auth.Options{SaltBytes: 8})
	assert.Error(t, err)
}
