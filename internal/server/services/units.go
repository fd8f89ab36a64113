package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	"github.com/dmitrijs2005/consejo/internal/server/repositories/units"
)

// DefaultUnitName is the consejo comunal used when sign-up leaves the unit blank.
const DefaultUnitName = "Valle Verde I"

// Placeholder descriptive fields for councils created on the fly.
const (
	placeholderParish       = "Valle Verde"
	placeholderMunicipality = "Municipio Ejemplo"
	placeholderState        = "Estado Ejemplo"
)

// ResolveUnit returns the id of the council called name, creating it with
// placeholder fields when it does not exist yet. A blank name resolves to
// defaultName, and a blank defaultName to DefaultUnitName.
func ResolveUnit(ctx context.Context, repo units.Repository, name, defaultName string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(defaultName)
	}
	if name == "" {
		name = DefaultUnitName
	}

	unit, err := repo.FindByName(ctx, name)
	if err == nil {
		return unit.ID, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	unit, err = repo.Create(ctx, &models.Unit{
		Name:         name,
		Parish:       placeholderParish,
		Municipality: placeholderMunicipality,
		State:        placeholderState,
	})
	if err != nil {
		return "", err
	}
	return unit.ID, nil
}
