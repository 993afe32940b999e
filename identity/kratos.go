// Package identity authenticates passwords against Ory Kratos and turns the
// resulting Kratos session into a JWT access token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	ory "github.com/ory/client-go"

	"storefront/apperr"
	"storefront/session"
)

// DefaultTokenizeTemplate is the session tokenizer template configured in kratos.yml.
const DefaultTokenizeTemplate = "jwt_v1"

var (
	_ session.TokenIssuer = (*KratosAuthenticator)(nil)
	_ session.Revoker     = (*KratosAuthenticator)(nil)
)

// KratosAuthenticator runs the native (API) login flow. The Kratos session
// token acts as the refresh token and each refresh tokenizes it again.
type KratosAuthenticator struct {
	client   *ory.APIClient
	template string
	logger   *slog.Logger
}

// NewKratosAuthenticator builds a client for the Kratos public API at publicURL.
func NewKratosAuthenticator(publicURL, template string, httpClient *http.Client, logger *slog.Logger) *KratosAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if template == "" {
		template = DefaultTokenizeTemplate
	}

	conf := ory.NewConfiguration()
	conf.Servers = ory.ServerConfigurations{
		{
			URL: publicURL,
		},
	}
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}

	return &KratosAuthenticator{
		client:   ory.NewAPIClient(conf),
		template: template,
		logger:   logger,
	}
}

// ObtainToken logs in with phone as the identifier and returns the tokenized
// session as access token and the session token as refresh token.
func (k *KratosAuthenticator) ObtainToken(ctx context.Context, phone, password string) (session.Tokens, error) {
	flow, resp, err := k.client.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		return session.Tokens{}, k.mapError("create login flow", resp, err)
	}

	updateBody := ory.UpdateLoginFlowWithPasswordMethod{
		Method:     "password",
		Identifier: phone,
		Password:   password,
	}
	loginFlowBody := ory.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&updateBody)

	result, resp, err := k.client.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.GetId()).
		UpdateLoginFlowBody(loginFlowBody).
		Execute()
	if err != nil {
		mapped := k.mapError("update login flow", resp, err)
		if resp != nil && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized) {
			return session.Tokens{}, fmt.Errorf("%w: %w", apperr.ErrInvalidCredentials, mapped)
		}
		return session.Tokens{}, mapped
	}

	if result.SessionToken == nil || *result.SessionToken == "" {
		return session.Tokens{}, errors.New("kratos login succeeded without a session token")
	}

	access, err := k.tokenize(ctx, *result.SessionToken)
	if err != nil {
		return session.Tokens{}, err
	}

	k.logger.Info("kratos login succeeded", "session_id", result.Session.GetId())
	return session.Tokens{Access: access, Refresh: *result.SessionToken}, nil
}

// RefreshToken tokenizes the Kratos session again. The session token is
// not rotated, so Refresh is left empty.
func (k *KratosAuthenticator) RefreshToken(ctx context.Context, sessionToken string) (session.Tokens, error) {
	access, err := k.tokenize(ctx, sessionToken)
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{Access: access}, nil
}

// Revoke ends the Kratos session.
func (k *KratosAuthenticator) Revoke(ctx context.Context, tokens session.Tokens) error {
	resp, err := k.client.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*ory.NewPerformNativeLogoutBody(tokens.Refresh)).
		Execute()
	if err != nil {
		return k.mapError("perform native logout", resp, err)
	}
	return nil
}

func (k *KratosAuthenticator) tokenize(ctx context.Context, sessionToken string) (string, error) {
	tokenized, resp, err := k.client.FrontendAPI.ToSession(ctx).
		XSessionToken(sessionToken).
		TokenizeAs(k.template).
		Execute()
	if err != nil {
		return "", k.mapError("tokenize session", resp, err)
	}

	if tokenized.Active != nil && !*tokenized.Active {
		return "", errors.New("kratos session is not active")
	}
	if !tokenized.HasTokenized() {
		return "", fmt.Errorf("kratos did not tokenize the session with template %q", k.template)
	}
	return tokenized.GetTokenized(), nil
}

// mapError separates API answers from transport failures.
func (k *KratosAuthenticator) mapError(op string, resp *http.Response, err error) error {
	var genericError *ory.GenericOpenAPIError
	if !errors.As(err, &genericError) {
		k.logger.Warn("kratos unreachable", "op", op, "error", err)
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrNetworkFailure, err)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if errModel, ok := genericError.Model().(ory.ErrorGeneric); ok {
		k.logger.Warn("kratos error", "op", op, "status", status, "reason", errModel.Error.GetMessage())
	} else {
		k.logger.Warn("kratos error", "op", op, "status", status, "error", genericError.Error())
	}
	return fmt.Errorf("%s: kratos returned status %d: %w", op, status, err)
}
