package admin

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/services"
)

type fakeService struct {
	registered  services.SignUpInput
	registerErr error

	loginUser, loginPass string
	loginID              string
	loginErr             error

	question  string
	lookupErr error

	resetArgs []string
	resetErr  error

	changeArgs []string
	changeErr  error

	qaArgs []string
	qaErr  error

	profile    *models.User
	profileErr error
}

func (f *fakeService) Register(_ context.Context, in services.SignUpInput) (*models.User, error) {
	f.registered = in
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-1", UserName: in.Username, Role: models.RoleAdmin}, nil
}

func (f *fakeService) VerifyLogin(_ context.Context, u, p string) (string, error) {
	f.loginUser, f.loginPass = u, p
	return f.loginID, f.loginErr
}

func (f *fakeService) LookupSecurityQuestion(context.Context, string) (string, error) {
	return f.question, f.lookupErr
}

func (f *fakeService) ResetPasswordWithSecurity(_ context.Context, u, a, p string) error {
	f.resetArgs = []string{u, a, p}
	return f.resetErr
}

func (f *fakeService) ChangePassword(_ context.Context, id, cur, np, conf string) error {
	f.changeArgs = []string{id, cur, np, conf}
	return f.changeErr
}

func (f *fakeService) UpdateSecurityQA(_ context.Context, id, cur, q, a string) error {
	f.qaArgs = []string{id, cur, q, a}
	return f.qaErr
}

func (f *fakeService) Profile(context.Context, string) (*models.User, error) {
	return f.profile, f.profileErr
}

// stubInputs replaces the prompt seams with queued answers. It returns the
// secret buffers handed out, so tests can check they were wiped.
func stubInputs(t *testing.T, texts []string, secrets []string, choice string) *[][]byte {
	t.Helper()
	origST, origGS, origCO := getSimpleText, getSecret, chooseOption

	var handed [][]byte
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		require.NotEmpty(t, texts, "unexpected text prompt")
		v := texts[0]
		texts = texts[1:]
		return v, nil
	}
	getSecret = func(_ io.Writer, _ string) ([]byte, error) {
		require.NotEmpty(t, secrets, "unexpected secret prompt")
		b := []byte(secrets[0])
		secrets = secrets[1:]
		handed = append(handed, b)
		return b, nil
	}
	chooseOption = func(_ *bufio.Reader, _ string, options []string, _ io.Writer) (string, error) {
		assert.Equal(t, services.SecurityQuestions(), options)
		return choice, nil
	}

	t.Cleanup(func() {
		getSimpleText, getSecret, chooseOption = origST, origGS, origCO
	})
	return &handed
}

func assertWiped(t *testing.T, handed [][]byte) {
	t.Helper()
	for i, b := range handed {
		assert.Equal(t, make([]byte, len(b)), b, "secret %d not wiped", i)
	}
}

func newTestApp(us Service) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return NewApp(us, &bytes.Buffer{}, &out), &out
}

func TestSignUp(t *testing.T) {
	us := &fakeService{}
	a, out := newTestApp(us)
	handed := stubInputs(t,
		[]string{"maria.gestora", "Los Olivos"},
		[]string{"clave123", "clave123", "Caracas"},
		"¿En qué ciudad naciste?")

	require.NoError(t, a.SignUp(context.Background()))
	assert.Equal(t, services.SignUpInput{
		Username:         "maria.gestora",
		Password:         "clave123",
		ConfirmPassword:  "clave123",
		UnitName:         "Los Olivos",
		SecurityQuestion: "¿En qué ciudad naciste?",
		SecurityAnswer:   "Caracas",
	}, us.registered)
	assert.Contains(t, out.String(), "Cuenta creada: maria.gestora (Admin)")
	assert.False(t, a.isLoggedIn(), "signup does not log in")
	assertWiped(t, *handed)
}

func TestSignUp_ServiceError(t *testing.T) {
	us := &fakeService{registerErr: common.ErrDuplicateUsername}
	a, _ := newTestApp(us)
	stubInputs(t, []string{"maria.gestora", ""}, []string{"clave123", "clave123", "Caracas"}, "¿En qué ciudad naciste?")

	assert.ErrorIs(t, a.SignUp(context.Background()), common.ErrDuplicateUsername)
}

func TestLoginWhoAmILogout(t *testing.T) {
	us := &fakeService{
		loginID: "u-1",
		profile: &models.User{ID: "u-1", UserName: "alice", Role: models.RoleAdmin,
			SecurityQuestion: models.DefaultSecurityQuestion, SecurityAnswerHash: "h"},
	}
	a, out := newTestApp(us)

	assert.ErrorIs(t, a.WhoAmI(context.Background()), errNotLoggedIn)

	handed := stubInputs(t, []string{"alice"}, []string{"secret1"}, "")
	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "alice", us.loginUser)
	assert.Equal(t, "secret1", us.loginPass)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(alice)", a.getStatus())
	assertWiped(t, *handed)

	require.NoError(t, a.WhoAmI(context.Background()))
	assert.Contains(t, out.String(), "Usuario: alice\nRol: Admin\n")
	assert.Contains(t, out.String(), "Pregunta de seguridad: "+models.DefaultSecurityQuestion)

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())
}

func TestLogin_Failure(t *testing.T) {
	us := &fakeService{loginErr: common.ErrAuthFailed}
	a, _ := newTestApp(us)
	stubInputs(t, []string{"alice"}, []string{"nope"}, "")

	assert.ErrorIs(t, a.Login(context.Background()), common.ErrAuthFailed)
	assert.False(t, a.isLoggedIn())
}

func TestWhoAmI_SessionOfRemovedAccount(t *testing.T) {
	us := &fakeService{loginID: "u-1", profileErr: common.ErrUnauthenticated}
	a, _ := newTestApp(us)
	stubInputs(t, []string{"alice"}, []string{"secret1"}, "")
	require.NoError(t, a.Login(context.Background()))

	assert.ErrorIs(t, a.WhoAmI(context.Background()), common.ErrUnauthenticated)
	assert.False(t, a.isLoggedIn(), "stale session is dropped")
}

func TestRecover(t *testing.T) {
	us := &fakeService{question: "¿Cuál es tu comida favorita?"}
	a, out := newTestApp(us)
	handed := stubInputs(t, []string{"alice"}, []string{" Arepa ", "newpass1", "newpass1"}, "")

	require.NoError(t, a.Recover(context.Background()))
	assert.Contains(t, out.String(), "¿Cuál es tu comida favorita?\n")
	assert.Equal(t, []string{"alice", " Arepa ", "newpass1"}, us.resetArgs)
	assertWiped(t, *handed)
}

func TestRecover_Failures(t *testing.T) {
	t.Run("unknown user stops before any secret", func(t *testing.T) {
		us := &fakeService{lookupErr: common.ErrUserNotFound}
		a, _ := newTestApp(us)
		stubInputs(t, []string{"ghost"}, nil, "")

		assert.ErrorIs(t, a.Recover(context.Background()), common.ErrUserNotFound)
		assert.Nil(t, us.resetArgs)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		us := &fakeService{question: "q"}
		a, _ := newTestApp(us)
		stubInputs(t, []string{"alice"}, []string{"arepa", "newpass1", "newpass2"}, "")

		err := a.Recover(context.Background())
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Nil(t, us.resetArgs)
	})

	t.Run("wrong answer", func(t *testing.T) {
		us := &fakeService{question: "q", resetErr: common.ErrAnswerMismatch}
		a, _ := newTestApp(us)
		stubInputs(t, []string{"alice"}, []string{"cachapa", "newpass1", "newpass1"}, "")

		assert.ErrorIs(t, a.Recover(context.Background()), common.ErrAnswerMismatch)
	})
}

func TestChangePasswordAndSecurity(t *testing.T) {
	us := &fakeService{loginID: "u-1"}
	a, _ := newTestApp(us)

	assert.ErrorIs(t, a.ChangePassword(context.Background()), errNotLoggedIn)
	assert.ErrorIs(t, a.UpdateSecurity(context.Background()), errNotLoggedIn)

	stubInputs(t, []string{"alice"}, []string{"secret1"}, "")
	require.NoError(t, a.Login(context.Background()))

	handed := stubInputs(t, nil, []string{"secret1", "newpass1", "newpass1"}, "")
	require.NoError(t, a.ChangePassword(context.Background()))
	assert.Equal(t, []string{"u-1", "secret1", "newpass1", "newpass1"}, us.changeArgs)
	assertWiped(t, *handed)

	handed = stubInputs(t, nil, []string{"newpass1", "Maracay"}, "¿En qué ciudad naciste?")
	require.NoError(t, a.UpdateSecurity(context.Background()))
	assert.Equal(t, []string{"u-1", "newpass1", "¿En qué ciudad naciste?", "Maracay"}, us.qaArgs)
	assertWiped(t, *handed)
}
