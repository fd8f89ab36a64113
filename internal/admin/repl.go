package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/consejo/internal/common"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies it.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	Login(ctx context.Context) error
	Recover(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	UpdateSecurity(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF or on "exit"/"quit". Command errors are printed and the
// loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("consejo %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, passwd, security, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, recover, exit")
			}

		case "signup":
			cmdErr = a.SignUp(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "recover":
			cmdErr = a.Recover(ctx)

		case "passwd":
			cmdErr = a.ChangePassword(ctx)

		case "security":
			cmdErr = a.UpdateSecurity(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describe(cmdErr))
		}
	}
}

// describe turns a command error into the line shown to the user. A wrong
// recovery answer is worded like a failed login.
func describe(err error) string {
	switch {
	case errors.Is(err, errNotLoggedIn):
		return "Error: inicie sesión primero"
	case errors.Is(err, errInvalidChoice):
		return "Error: opción inválida"
	}

	switch common.ReasonCode(err) {
	case common.ReasonValidation:
		var b strings.Builder
		b.WriteString("Error: datos inválidos")
		for _, ve := range common.ValidationErrors(err) {
			b.WriteString("\n  - " + ve.Field + ": " + ve.Reason)
		}
		return b.String()
	case common.ReasonDuplicateUsername:
		return "Error: el nombre de usuario ya está registrado"
	case common.ReasonUserNotFound:
		return "Error: usuario no encontrado"
	case common.ReasonSecurityNotConfigured:
		return "Error: el usuario no tiene pregunta de seguridad configurada"
	case common.ReasonAnswerMismatch, common.ReasonAuthFailed:
		return "Error: usuario o credenciales inválidas"
	case common.ReasonCurrentPasswordIncorrect:
		return "Error: la contraseña actual es incorrecta"
	case common.ReasonUnauthenticated:
		return "Error: sesión inválida, inicie sesión de nuevo"
	}

	// terminal I/O problems are not store faults
	if !errors.Is(err, common.ErrStoreFailure) && !errors.Is(err, common.ErrorInternal) {
		return "Error: " + err.Error()
	}
	return "Error: servicio no disponible, intente más tarde"
}
