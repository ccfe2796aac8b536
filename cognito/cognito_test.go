package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	auth "github.com/grantlab/auth-go"
	"github.com/grantlab/auth-go/metrics"
	"github.com/grantlab/auth-go/secrethash"
)

type stubAPI struct {
	adminCreateUser        func(*cip.AdminCreateUserInput) (*cip.AdminCreateUserOutput, error)
	adminSetUserPassword   func(*cip.AdminSetUserPasswordInput) (*cip.AdminSetUserPasswordOutput, error)
	initiateAuth           func(*cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error)
	respondToAuthChallenge func(*cip.RespondToAuthChallengeInput) (*cip.RespondToAuthChallengeOutput, error)
	getUser                func(*cip.GetUserInput) (*cip.GetUserOutput, error)
}

func (s *stubAPI) AdminCreateUser(_ context.Context, in *cip.AdminCreateUserInput, _ ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	return s.adminCreateUser(in)
}

func (s *stubAPI) AdminSetUserPassword(_ context.Context, in *cip.AdminSetUserPasswordInput, _ ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error) {
	return s.adminSetUserPassword(in)
}

func (s *stubAPI) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	return s.initiateAuth(in)
}

func (s *stubAPI) RespondToAuthChallenge(_ context.Context, in *cip.RespondToAuthChallengeInput, _ ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error) {
	return s.respondToAuthChallenge(in)
}

func (s *stubAPI) GetUser(_ context.Context, in *cip.GetUserInput, _ ...func(*cip.Options)) (*cip.GetUserOutput, error) {
	return s.getUser(in)
}

func newTestProvider(stub *stubAPI) *Provider {
	return &Provider{
		api:          stub,
		userPoolID:   "eu-west-1_testpool",
		clientID:     "client",
		clientSecret: "secret",
		metrics:      metrics.New(false),
	}
}

func TestCreateAccount(t *testing.T) {
	var created *cip.AdminCreateUserInput
	var permanent *cip.AdminSetUserPasswordInput
	stub := &stubAPI{
		adminCreateUser: func(in *cip.AdminCreateUserInput) (*cip.AdminCreateUserOutput, error) {
			created = in
			return &cip.AdminCreateUserOutput{}, nil
		},
		adminSetUserPassword: func(in *cip.AdminSetUserPasswordInput) (*cip.AdminSetUserPasswordOutput, error) {
			permanent = in
			return &cip.AdminSetUserPasswordOutput{}, nil
		},
	}
	p := newTestProvider(stub)

	if err := p.CreateAccount(context.Background(), "alice", "hunter2!A", "alice@example.com"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := p.SetPermanentPassword(context.Background(), "alice", "hunter2!A"); err != nil {
		t.Fatalf("SetPermanentPassword() error = %v", err)
	}

	if got := aws.ToString(created.UserPoolId); got != "eu-west-1_testpool" {
		t.Errorf("pool id = %q", got)
	}
	if created.MessageAction != types.MessageActionTypeSuppress {
		t.Errorf("message action = %q, want suppress", created.MessageAction)
	}
	attrs := map[string]string{}
	for _, a := range created.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	if attrs["email"] != "alice@example.com" {
		t.Errorf("email attribute = %q", attrs["email"])
	}
	if attrs["email_verified"] != "true" {
		t.Errorf("email_verified attribute = %q", attrs["email_verified"])
	}
	if !permanent.Permanent {
		t.Error("password was not marked permanent")
	}
}

func TestCreateAccount_MissingPoolID(t *testing.T) {
	p := newTestProvider(&stubAPI{})
	p.userPoolID = ""

	err := p.CreateAccount(context.Background(), "alice", "pw", "alice@example.com")
	var cfgErr *auth.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("CreateAccount() error = %v, want ConfigError", err)
	}
}

func TestInitiateAuth_SecretHash(t *testing.T) {
	var captured *cip.InitiateAuthInput
	stub := &stubAPI{
		initiateAuth: func(in *cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
			captured = in
			return &cip.InitiateAuthOutput{
				AuthenticationResult: &types.AuthenticationResultType{
					AccessToken:  aws.String("access"),
					IdToken:      aws.String("id"),
					RefreshToken: aws.String("refresh"),
				},
			}, nil
		},
	}
	p := newTestProvider(stub)

	outcome, err := p.InitiateAuth(context.Background(), "alice", "hunter2!A")
	if err != nil {
		t.Fatalf("InitiateAuth() error = %v", err)
	}
	if outcome.Challenge != nil {
		t.Fatal("unexpected challenge")
	}
	if outcome.Tokens.AccessToken != "access" || outcome.Tokens.IDToken != "id" || outcome.Tokens.RefreshToken != "refresh" {
		t.Errorf("tokens = %+v", outcome.Tokens)
	}

	if captured.AuthFlow != types.AuthFlowTypeUserPasswordAuth {
		t.Errorf("auth flow = %q", captured.AuthFlow)
	}
	want, err := secrethash.Compute("alice", "client", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if got := captured.AuthParameters["SECRET_HASH"]; got != want {
		t.Errorf("SECRET_HASH = %q, want %q", got, want)
	}
	if captured.AuthParameters["USERNAME"] != "alice" {
		t.Errorf("USERNAME = %q", captured.AuthParameters["USERNAME"])
	}
}

func TestInitiateAuth_NewPasswordChallenge(t *testing.T) {
	stub := &stubAPI{
		initiateAuth: func(in *cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
			return &cip.InitiateAuthOutput{
				ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
				Session:       aws.String("challenge-session"),
				ChallengeParameters: map[string]string{
					"requiredAttributes": `["userAttributes.email","userAttributes.name"]`,
				},
			}, nil
		},
	}
	p := newTestProvider(stub)

	outcome, err := p.InitiateAuth(context.Background(), "bob", "temp-pw")
	if err != nil {
		t.Fatalf("InitiateAuth() error = %v", err)
	}
	if outcome.Tokens != nil {
		t.Fatal("unexpected tokens alongside challenge")
	}
	ch := outcome.Challenge
	if ch == nil {
		t.Fatal("expected challenge")
	}
	if ch.Session != "challenge-session" {
		t.Errorf("session = %q", ch.Session)
	}
	if ch.Username != "bob" {
		t.Errorf("username = %q", ch.Username)
	}
	if len(ch.RequiredAttributes) != 2 || ch.RequiredAttributes[0] != "email" || ch.RequiredAttributes[1] != "name" {
		t.Errorf("required attributes = %v", ch.RequiredAttributes)
	}
}

func TestInitiateAuth_EmptySecretConfig(t *testing.T) {
	p := newTestProvider(&stubAPI{})
	p.clientSecret = ""

	_, err := p.InitiateAuth(context.Background(), "alice", "pw")
	var cfgErr *auth.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("InitiateAuth() error = %v, want ConfigError", err)
	}
}

func TestRespondToChallenge(t *testing.T) {
	var captured *cip.RespondToAuthChallengeInput
	stub := &stubAPI{
		respondToAuthChallenge: func(in *cip.RespondToAuthChallengeInput) (*cip.RespondToAuthChallengeOutput, error) {
			captured = in
			return &cip.RespondToAuthChallengeOutput{
				AuthenticationResult: &types.AuthenticationResultType{
					AccessToken: aws.String("access"),
					IdToken:     aws.String("id"),
				},
			}, nil
		},
	}
	p := newTestProvider(stub)

	tokens, err := p.RespondToChallenge(context.Background(), "sess", "bob", "NewPw!234", map[string]string{"email": "bob@example.com"})
	if err != nil {
		t.Fatalf("RespondToChallenge() error = %v", err)
	}
	if tokens.IDToken != "id" {
		t.Errorf("id token = %q", tokens.IDToken)
	}

	if captured.ChallengeName != types.ChallengeNameTypeNewPasswordRequired {
		t.Errorf("challenge name = %q", captured.ChallengeName)
	}
	if got := aws.ToString(captured.Session); got != "sess" {
		t.Errorf("session = %q", got)
	}
	if captured.ChallengeResponses["NEW_PASSWORD"] != "NewPw!234" {
		t.Errorf("NEW_PASSWORD = %q", captured.ChallengeResponses["NEW_PASSWORD"])
	}
	if captured.ChallengeResponses["userAttributes.email"] != "bob@example.com" {
		t.Errorf("userAttributes.email = %q", captured.ChallengeResponses["userAttributes.email"])
	}
	want, _ := secrethash.Compute("bob", "client", "secret")
	if captured.ChallengeResponses["SECRET_HASH"] != want {
		t.Errorf("SECRET_HASH = %q, want %q", captured.ChallengeResponses["SECRET_HASH"], want)
	}
}

func TestGetUserByToken(t *testing.T) {
	stub := &stubAPI{
		getUser: func(in *cip.GetUserInput) (*cip.GetUserOutput, error) {
			if aws.ToString(in.AccessToken) != "token-1" {
				t.Errorf("access token = %q", aws.ToString(in.AccessToken))
			}
			return &cip.GetUserOutput{
				Username: aws.String("alice"),
				UserAttributes: []types.AttributeType{
					{Name: aws.String("sub"), Value: aws.String("uuid-1")},
					{Name: aws.String("email"), Value: aws.String("alice@example.com")},
				},
			}, nil
		},
	}
	p := newTestProvider(stub)

	account, err := p.GetUserByToken(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("GetUserByToken() error = %v", err)
	}
	if account.Username != "alice" || account.Email != "alice@example.com" {
		t.Errorf("account = %+v", account)
	}
}

func TestTagErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want auth.ProviderCode
	}{
		{"not authorized", &types.NotAuthorizedException{}, auth.CodeNotAuthorized},
		{"user exists", &types.UsernameExistsException{}, auth.CodeUserExists},
		{"user not found", &types.UserNotFoundException{}, auth.CodeUserNotFound},
		{"invalid password", &types.InvalidPasswordException{}, auth.CodeInvalidPassword},
		{"invalid parameter", &types.InvalidParameterException{}, auth.CodeInvalidParameter},
		{"expired code", &types.ExpiredCodeException{}, auth.CodeChallengeExpired},
		{"throttled", &types.TooManyRequestsException{}, auth.CodeThrottled},
		{"transport", errors.New("connection reset"), auth.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tagErr("InitiateAuth", tt.err)
			if got := auth.ProviderCodeOf(err); got != tt.want {
				t.Errorf("ProviderCodeOf() = %q, want %q", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error lost the cause")
			}
		})
	}

	if tagErr("InitiateAuth", nil) != nil {
		t.Error("tagErr(nil) should be nil")
	}
}

func TestInitiateAuth_ProviderErrorPassthrough(t *testing.T) {
	stub := &stubAPI{
		initiateAuth: func(in *cip.InitiateAuthInput) (*cip.InitiateAuthOutput, error) {
			return nil, &types.NotAuthorizedException{Message: aws.String("Incorrect username or password.")}
		},
	}
	p := newTestProvider(stub)

	_, err := p.InitiateAuth(context.Background(), "alice", "wrong")
	if auth.ProviderCodeOf(err) != auth.CodeNotAuthorized {
		t.Fatalf("InitiateAuth() error = %v, want not-authorized code", err)
	}
}
