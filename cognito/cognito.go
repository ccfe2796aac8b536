// Package cognito implements auth.IdentityProvider on top of an AWS Cognito
// user pool.
//
// The SDK client is wrapped behind a five-call api interface so unit tests
// substitute a stub without network access or global SDK state. SDK errors
// are tagged into the closed auth.ProviderError code set here, at the
// boundary; nothing upstream inspects raw SDK error shapes.
package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/metrics"
	"github.com/grantlab/auth-go/secrethash"
)

// api is the slice of the Cognito SDK surface this provider uses.
type api interface {
	AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, in *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
}

// Provider implements auth.IdentityProvider against a Cognito user pool.
type Provider struct {
	api          api
	userPoolID   string
	clientID     string
	clientSecret string
	metrics      *metrics.Metrics
}

// compile-time check
var _ auth.IdentityProvider = (*Provider)(nil)

// Option configures the Provider.
type Option func(*Provider)

// WithMetrics sets the metrics sink for provider call durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

// New creates a Cognito-backed identity provider.
func New(client *cip.Client, userPoolID, clientID, clientSecret string, opts ...Option) *Provider {
	p := &Provider{
		api:          client,
		userPoolID:   userPoolID,
		clientID:     clientID,
		clientSecret: clientSecret,
		metrics:      metrics.New(false),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CreateAccount constructs the account without sending an invitation and
// without signing the user in. The email is marked verified so GetUser can
// report it back after the first login.
func (p *Provider) CreateAccount(ctx context.Context, username, password, email string) error {
	if p.userPoolID == "" {
		return &auth.ConfigError{Missing: "identity provider pool id"}
	}

	defer p.observe("AdminCreateUser", time.Now())
	_, err := p.api.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:        aws.String(p.userPoolID),
		Username:          aws.String(username),
		TemporaryPassword: aws.String(password),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
	})
	return tagErr("AdminCreateUser", err)
}

// SetPermanentPassword marks the password permanent so the account skips the
// forced first-login reset.
func (p *Provider) SetPermanentPassword(ctx context.Context, username, password string) error {
	if p.userPoolID == "" {
		return &auth.ConfigError{Missing: "identity provider pool id"}
	}

	defer p.observe("AdminSetUserPassword", time.Now())
	_, err := p.api.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		Permanent:  true,
	})
	return tagErr("AdminSetUserPassword", err)
}

// InitiateAuth runs the USER_PASSWORD_AUTH flow.
func (p *Provider) InitiateAuth(ctx context.Context, username, password string) (*auth.AuthOutcome, error) {
	hash, err := secrethash.Compute(username, p.clientID, p.clientSecret)
	if err != nil {
		return nil, err
	}

	defer p.observe("InitiateAuth", time.Now())
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME":    username,
			"PASSWORD":    password,
			"SECRET_HASH": hash,
		},
	})
	if err != nil {
		return nil, tagErr("InitiateAuth", err)
	}

	if out.ChallengeName == types.ChallengeNameTypeNewPasswordRequired {
		return &auth.AuthOutcome{
			Challenge: &auth.Challenge{
				Session:            aws.ToString(out.Session),
				RequiredAttributes: parseRequiredAttributes(out.ChallengeParameters),
				Username:           username,
			},
		}, nil
	}

	return &auth.AuthOutcome{Tokens: toTokens(out.AuthenticationResult)}, nil
}

// RespondToChallenge resumes a NEW_PASSWORD_REQUIRED challenge. Extra
// attributes are forwarded under the provider's userAttributes.* keys.
func (p *Provider) RespondToChallenge(ctx context.Context, session, username, newPassword string, attributes map[string]string) (*auth.SessionTokens, error) {
	hash, err := secrethash.Compute(username, p.clientID, p.clientSecret)
	if err != nil {
		return nil, err
	}

	responses := map[string]string{
		"USERNAME":     username,
		"NEW_PASSWORD": newPassword,
		"SECRET_HASH":  hash,
	}
	for name, value := range attributes {
		responses["userAttributes."+name] = value
	}

	defer p.observe("RespondToAuthChallenge", time.Now())
	out, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ClientId:           aws.String(p.clientID),
		ChallengeName:      types.ChallengeNameTypeNewPasswordRequired,
		Session:            aws.String(session),
		ChallengeResponses: responses,
	})
	if err != nil {
		return nil, tagErr("RespondToAuthChallenge", err)
	}
	return toTokens(out.AuthenticationResult), nil
}

// GetUserByToken resolves the account behind a bearer access token.
func (p *Provider) GetUserByToken(ctx context.Context, accessToken string) (*auth.Account, error) {
	defer p.observe("GetUser", time.Now())
	out, err := p.api.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, tagErr("GetUser", err)
	}

	account := &auth.Account{Username: aws.ToString(out.Username)}
	for _, attr := range out.UserAttributes {
		if aws.ToString(attr.Name) == "email" {
			account.Email = aws.ToString(attr.Value)
		}
	}
	return account, nil
}

func (p *Provider) observe(op string, start time.Time) {
	p.metrics.ObserveProviderCall(op, time.Since(start).Seconds())
}

// parseRequiredAttributes decodes the requiredAttributes challenge parameter,
// a JSON list of attribute names carrying a userAttributes. prefix.
func parseRequiredAttributes(params map[string]string) []string {
	raw, ok := params["requiredAttributes"]
	if !ok || raw == "" {
		return nil
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	for i, name := range names {
		names[i] = strings.TrimPrefix(name, "userAttributes.")
	}
	return names
}

func toTokens(result *types.AuthenticationResultType) *auth.SessionTokens {
	if result == nil {
		return nil
	}
	return &auth.SessionTokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}
}

// tagErr converts an SDK error into the closed auth.ProviderError code set.
func tagErr(op string, err error) error {
	if err == nil {
		return nil
	}

	code := auth.CodeUnavailable

	var notAuthorized *types.NotAuthorizedException
	var userExists *types.UsernameExistsException
	var userNotFound *types.UserNotFoundException
	var invalidPassword *types.InvalidPasswordException
	var invalidParameter *types.InvalidParameterException
	var expiredCode *types.ExpiredCodeException
	var tooManyRequests *types.TooManyRequestsException
	var apiErr smithy.APIError

	switch {
	case errors.As(err, &notAuthorized):
		code = auth.CodeNotAuthorized
	case errors.As(err, &userExists):
		code = auth.CodeUserExists
	case errors.As(err, &userNotFound):
		code = auth.CodeUserNotFound
	case errors.As(err, &invalidPassword):
		code = auth.CodeInvalidPassword
	case errors.As(err, &invalidParameter):
		code = auth.CodeInvalidParameter
	case errors.As(err, &expiredCode):
		code = auth.CodeChallengeExpired
	case errors.As(err, &tooManyRequests):
		code = auth.CodeThrottled
	case errors.As(err, &apiErr):
		code = auth.CodeUnknown
	}

	return &auth.ProviderError{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf("%v", err),
		Err:     err,
	}
}
