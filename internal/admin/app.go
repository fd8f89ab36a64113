package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/services"
)

// Service is the part of services.UserService the terminal uses.
type Service interface {
	Register(ctx context.Context, in services.SignUpInput) (*models.User, error)
	VerifyLogin(ctx context.Context, userName, password string) (string, error)
	LookupSecurityQuestion(ctx context.Context, userName string) (string, error)
	ResetPasswordWithSecurity(ctx context.Context, userName, answer, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, confirmPassword string) error
	UpdateSecurityQA(ctx context.Context, userID, currentPassword, question, answer string) error
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// getSimpleText, getSecret and chooseOption are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getSecret     = GetSecret
	chooseOption  = ChooseOption
)

var errNotLoggedIn = errors.New("not logged in")

type App struct {
	users    Service
	reader   *bufio.Reader
	out      io.Writer
	userID   string
	userName string
}

func NewApp(us Service, in io.Reader, out io.Writer) *App {
	return &App{users: us, reader: bufio.NewReader(in), out: out}
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Portal del consejo comunal (escriba 'help' para ver los comandos)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.userID != ""
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return "(" + a.userName + ")"
}

// secret reads one hidden value. The caller wipes it.
func (a *App) secret(prompt string) ([]byte, error) {
	return getSecret(a.out, prompt)
}

// SignUp registers a new administrator account. It does not log in.
func (a *App) SignUp(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Usuario", a.out)
	if err != nil {
		return err
	}

	password, err := a.secret("Contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := a.secret("Confirme la contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	unit, err := getSimpleText(a.reader, "Consejo comunal (vacío para el predeterminado)", a.out)
	if err != nil {
		return err
	}

	question, err := chooseOption(a.reader, "Pregunta de seguridad", services.SecurityQuestions(), a.out)
	if err != nil {
		return err
	}

	answer, err := a.secret("Respuesta")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(answer)

	user, err := a.users.Register(ctx, services.SignUpInput{
		Username:         userName,
		Password:         string(password),
		ConfirmPassword:  string(confirm),
		UnitName:         unit,
		SecurityQuestion: question,
		SecurityAnswer:   string(answer),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Cuenta creada: %s (%s)\n", user.UserName, user.Role)
	return nil
}

// Login verifies the credentials and keeps the account id as the session.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Usuario", a.out)
	if err != nil {
		return err
	}

	password, err := a.secret("Contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	userID, err := a.users.VerifyLogin(ctx, userName, string(password))
	if err != nil {
		return err
	}

	a.userID, a.userName = userID, userName
	fmt.Fprintln(a.out, "Sesión iniciada")
	return nil
}

// Recover runs both recovery steps: show the stored question, then check the
// answer and set the new password.
func (a *App) Recover(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Usuario", a.out)
	if err != nil {
		return err
	}

	question, err := a.users.LookupSecurityQuestion(ctx, userName)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, question)

	answer, err := a.secret("Respuesta")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(answer)

	password, err := a.secret("Nueva contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := a.secret("Confirme la contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return common.NewValidationError("confirm_password", "does not match")
	}

	if err := a.users.ResetPasswordWithSecurity(ctx, userName, string(answer), string(password)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Contraseña restablecida, inicie sesión con la nueva contraseña")
	return nil
}

// ChangePassword replaces the password of the logged-in account.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	current, err := a.secret("Contraseña actual")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	password, err := a.secret("Nueva contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := a.secret("Confirme la contraseña")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if err := a.users.ChangePassword(ctx, a.userID, string(current), string(password), string(confirm)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Contraseña actualizada")
	return nil
}

// UpdateSecurity sets a new security question and answer.
func (a *App) UpdateSecurity(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	current, err := a.secret("Contraseña actual")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	question, err := chooseOption(a.reader, "Pregunta de seguridad", services.SecurityQuestions(), a.out)
	if err != nil {
		return err
	}

	answer, err := a.secret("Respuesta")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(answer)

	if err := a.users.UpdateSecurityQA(ctx, a.userID, string(current), question, string(answer)); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Pregunta de seguridad actualizada")
	return nil
}

// WhoAmI prints the logged-in account.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	user, err := a.users.Profile(ctx, a.userID)
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			a.userID, a.userName = "", ""
		}
		return err
	}

	fmt.Fprintf(a.out, "Usuario: %s\nRol: %s\n", user.UserName, user.Role)
	if user.SecurityConfigured() {
		fmt.Fprintf(a.out, "Pregunta de seguridad: %s\n", user.SecurityQuestion)
	} else {
		fmt.Fprintln(a.out, "Pregunta de seguridad: no configurada")
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.userID, a.userName = "", ""
	fmt.Fprintln(a.out, "Sesión cerrada")
	return nil
}
