package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fzdarsky/srpgate/pkg/protocol"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// LoginResult is the outcome of a successful mutual authentication.
type LoginResult struct {
	Identity  string
	Token     string
	ExpiresAt time.Time
	GroupBits int
	Hash      string
	// SessionKey is K. Both sides hold the same value after login.
	SessionKey []byte
}

// Login runs the SRP-6a exchange for identity. With zero params the
// server's defaults from /healthz are used. When the account was created
// with other parameters the server answers PARAMETER_MISMATCH and the
// exchange is restarted once with the account's parameters.
func (c *Client) Login(ctx context.Context, identity string, password []byte, params protocol.Parameters) (*LoginResult, error) {
	if params.GroupBits == 0 || params.Hash == "" {
		health, err := c.Health(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query server parameters: %w", err)
		}
		if params.GroupBits == 0 {
			params.GroupBits = health.GroupBits
		}
		if params.Hash == "" {
			params.Hash = health.Hash
		}
	}

	result, err := c.login(ctx, identity, password, params)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code() == protocol.ErrCodeParameterMismatch && apiErr.Response.Parameters != nil {
		return c.login(ctx, identity, password, *apiErr.Response.Parameters)
	}
	return result, err
}

func (c *Client) login(ctx context.Context, identity string, password []byte, params protocol.Parameters) (*LoginResult, error) {
	group, err := srp.Shared(params.GroupBits, params.Hash)
	if err != nil {
		return nil, err
	}

	secret, err := srp.GenerateSecret(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral secret: %w", err)
	}

	session, err := srp.NewClient(group, []byte(identity), password, secret)
	clear(secret)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	A, err := session.ComputeA()
	if err != nil {
		return nil, err
	}

	hello, err := c.Hello(ctx, protocol.HelloRequest{
		Identity:  identity,
		A:         A,
		GroupBits: params.GroupBits,
		Hash:      params.Hash,
	})
	if err != nil {
		return nil, err
	}
	if hello.GroupBits != group.Bits || hello.Hash != group.HashName() {
		return nil, fmt.Errorf("server answered with %d-bit/%s, expected %s", hello.GroupBits, hello.Hash, group)
	}

	if err := session.SetB(hello.Salt, hello.B); err != nil {
		return nil, fmt.Errorf("invalid server challenge: %w", err)
	}

	m1, err := session.ComputeM1()
	if err != nil {
		return nil, err
	}

	confirm, err := c.Confirm(ctx, protocol.ConfirmRequest{
		Identity:    identity,
		HandshakeID: hello.HandshakeID,
		M1:          m1,
	})
	if err != nil {
		return nil, err
	}

	if err := session.CheckM2(confirm.M2); err != nil {
		// The server could not prove knowledge of the verifier; drop the token.
		c.sessionToken = ""
		return nil, err
	}

	key, err := session.ComputeK()
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Identity:   identity,
		Token:      confirm.Token,
		ExpiresAt:  confirm.ExpiresAt,
		GroupBits:  group.Bits,
		Hash:       group.HashName(),
		SessionKey: key,
	}, nil
}
