package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/noah-isme/lostfound-api/internal/models"
)

const uniqueViolation = "23505"

// mapUniqueViolation translates a usuarios unique constraint failure into a domain sentinel.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "usuarios_email_key":
		return models.ErrDuplicateEmail
	case "usuarios_matricula_key":
		return models.ErrDuplicateMatricula
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere, with wildcards in term escaped.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
