package providers

import (
	"errors"

	"github.com/gookit/validate"

	"tallyd/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}
	if cv.conf.Persistence.Driver == "postgres" && cv.conf.Persistence.PostgresDSN == "" {
		return errors.New("persistence.postgresDSN is required when driver is postgres")
	}
	return nil
}
