package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Summary is the login-screen view of an operator. It never carries the credential.
type Summary struct {
	ID          uuid.UUID       `json:"id"`
	DisplayName string          `json:"display_name"`
	Role        enums.StaffRole `json:"role"`
}

// FromModel converts a staff row into its public summary.
func FromModel(row *models.Staff) Summary {
	return Summary{ID: row.ID, DisplayName: row.DisplayName, Role: row.Role}
}

// CreateInput describes a new operator.
type CreateInput struct {
	DisplayName string
	Role        enums.StaffRole
	PIN         string
}

// Service defines the Staff Store used by the login screen and the session guard.
type Service interface {
	ListStaff(ctx context.Context) ([]Summary, error)
	VerifyCredential(ctx context.Context, staffID uuid.UUID, pin string) (*models.Staff, error)
	CreateStaff(ctx context.Context, input CreateInput) (Summary, error)
}

type staffRepository interface {
	ListActive(ctx context.Context) ([]models.Staff, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Staff, error)
	Create(ctx context.Context, row *models.Staff) (*models.Staff, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePinHash(ctx context.Context, id uuid.UUID, hash string) error
}

type service struct {
	repo     staffRepository
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the staff service.
func NewService(repo staffRepository, password config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("staff repository required")
	}
	return &service{repo: repo, password: password, logg: logg, now: time.Now}, nil
}

func (s *service) ListStaff(ctx context.Context) ([]Summary, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list staff")
	}
	out := make([]Summary, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

// VerifyCredential checks a PIN against the stored Argon2id hash. Unknown,
// inactive, and mismatched operators all fail with the same error.
func (s *service) VerifyCredential(ctx context.Context, staffID uuid.UUID, pin string) (*models.Staff, error) {
	if staffID == uuid.Nil || strings.TrimSpace(pin) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	row, err := s.repo.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staff")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	ok, err := security.VerifyPIN(pin, row.PinHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify pin")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, row.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	row.LastLoginAt = &now

	if security.NeedsRehash(row.PinHash, s.password) {
		s.rehash(ctx, row, pin)
	}
	return row, nil
}

func (s *service) rehash(ctx context.Context, row *models.Staff, pin string) {
	hash, err := security.HashPIN(pin, s.password)
	if err == nil {
		err = s.repo.UpdatePinHash(ctx, row.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithStaffID(ctx, row.ID.String()), "failed to upgrade pin hash", err)
		}
		return
	}
	row.PinHash = hash
}

func (s *service) CreateStaff(ctx context.Context, input CreateInput) (Summary, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "display_name is required")
	}
	role := input.Role
	if role == "" {
		role = enums.StaffRoleCashier
	}
	if !role.IsValid() {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid staff role").WithDetail("role", role)
	}
	hash, err := security.HashPIN(input.PIN, s.password)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pin")
	}
	row, err := s.repo.Create(ctx, &models.Staff{
		DisplayName: name,
		Role:        role,
		PinHash:     hash,
		IsActive:    true,
	})
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create staff")
	}
	return FromModel(row), nil
}
