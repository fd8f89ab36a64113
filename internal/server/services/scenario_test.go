package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/consejo/internal/common"
)

func TestRecoveryJourney_MariaGestora(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemService(t)

	_, err := s.Register(ctx, SignUpInput{
		Username:         "maria.gestora",
		Password:         "clave123",
		ConfirmPassword:  "clave123",
		SecurityQuestion: "¿En qué ciudad naciste?",
		SecurityAnswer:   "Caracas",
	})
	require.NoError(t, err)

	_, err = s.Login(ctx, "maria.gestora", "clave123")
	require.NoError(t, err)

	q, err := s.LookupSecurityQuestion(ctx, "maria.gestora")
	require.NoError(t, err)
	assert.Equal(t, "¿En qué ciudad naciste?", q)

	require.NoError(t, s.ResetPasswordWithSecurity(ctx, "maria.gestora", "  CARACAS  ", "nuevaClave456"))

	_, err = s.Login(ctx, "maria.gestora", "clave123")
	assert.ErrorIs(t, err, common.ErrAuthFailed, "old password no longer authenticates")

	_, err = s.Login(ctx, "maria.gestora", "nuevaClave456")
	assert.NoError(t, err, "new password authenticates")
}

func TestRecoveryJourney_WrongAnswerKeepsPassword(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemService(t)

	in := validSignUp()
	_, err := s.Register(ctx, in)
	require.NoError(t, err)

	err = s.ResetPasswordWithSecurity(ctx, in.Username, "Valencia", "nuevaClave456")
	require.ErrorIs(t, err, common.ErrAnswerMismatch)

	_, err = s.Login(ctx, in.Username, in.Password)
	assert.NoError(t, err)
	_, err = s.Login(ctx, in.Username, "nuevaClave456")
	assert.ErrorIs(t, err, common.ErrAuthFailed)
}
