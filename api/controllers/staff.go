package controllers

import (
	"net/http"

	"github.com/angelmondragon/maison-pos/api/responses"
	"github.com/angelmondragon/maison-pos/api/validators"
	"github.com/angelmondragon/maison-pos/internal/staff"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
)

const displayNameMaxLen = 80

type createStaffRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Role        string `json:"role" validate:"required,oneof=cashier manager"`
	PIN         string `json:"pin" validate:"required,numeric,min=4,max=12"`
}

// StaffList feeds the login screen. It never exposes credentials.
func StaffList(svc staff.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListStaff(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"staff": list})
	}
}

func StaffCreate(svc staff.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createStaffRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseStaffRole(payload.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid staff role"))
			return
		}

		created, err := svc.CreateStaff(r.Context(), staff.CreateInput{
			DisplayName: validators.SanitizeString(payload.DisplayName, displayNameMaxLen),
			Role:        role,
			PIN:         payload.PIN,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
