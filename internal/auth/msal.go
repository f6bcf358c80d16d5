package auth

import (
	"context"
	"fmt"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"

	"teams-chat-exporter/internal/domain"
)

// msalClient реализует authClient поверх библиотеки MSAL.
type msalClient struct {
	app public.Client
}

func newMSALClient(clientID, tenantID string) (*msalClient, error) {
	app, err := public.New(clientID,
		public.WithAuthority("https://login.microsoftonline.com/"+tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to create msal client: %w", err)
	}

	return &msalClient{app: app}, nil
}

func (m *msalClient) StartDeviceFlow(ctx context.Context, scopes []string) (*deviceFlow, error) {
	code, err := m.app.AcquireTokenByDeviceCode(ctx, scopes)
	if err != nil {
		return nil, err
	}

	return &deviceFlow{
		UserCode:        code.Result.UserCode,
		VerificationURL: code.Result.VerificationURL,
		Wait: func(ctx context.Context) (authResult, error) {
			res, err := code.AuthenticationResult(ctx)
			if err != nil {
				return authResult{}, err
			}
			return toAuthResult(res), nil
		},
	}, nil
}

func (m *msalClient) AcquireSilent(ctx context.Context, scopes []string) (authResult, error) {
	accounts, err := m.app.Accounts(ctx)
	if err != nil {
		return authResult{}, fmt.Errorf("failed to list cached accounts: %w", err)
	}
	if len(accounts) == 0 {
		return authResult{}, ErrNoCachedAccount
	}

	res, err := m.app.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(accounts[0]))
	if err != nil {
		return authResult{}, err
	}

	return toAuthResult(res), nil
}

// toAuthResult переводит ответ библиотеки во внутренние типы.
func toAuthResult(res public.AuthResult) authResult {
	return authResult{
		Token: domain.Token{
			AccessToken: res.AccessToken,
			ExpiresOn:   res.ExpiresOn,
		},
		Account: domain.Identity{
			DisplayName:       res.Account.Name,
			UserPrincipalName: res.Account.PreferredUsername,
		},
	}
}
