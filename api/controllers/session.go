package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/maison-pos/api/middleware"
	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/register"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

type loginRequest struct {
	StaffID uuid.UUID `json:"staff_id" validate:"required"`
	PIN     string    `json:"pin" validate:"required,min=4,max=12"`
}

// currentRegister pulls the register seeded by middleware.Register or middleware.Auth.
func currentRegister(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*register.Register, bool) {
	reg := middleware.RegisterFromContext(r.Context())
	if reg == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "register context missing"))
		return nil, false
	}
	return reg, true
}

// SessionLogin signs an operator in. A different operator signing in replaces
// the current one without clearing the cart.
func SessionLogin(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := reg.Guard().Login(r.Context(), payload.StaffID, payload.PIN)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SessionLogout(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}
		if err := reg.Guard().Logout(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reg.Session())
	}
}

// SessionActivity records a keep-alive from the register UI.
func SessionActivity(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}
		if err := reg.Guard().Touch(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reg.Session())
	}
}

// SessionStatus reports who is signed in and whether the session is idle.
func SessionStatus(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, ok := currentRegister(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, reg.Session())
	}
}
