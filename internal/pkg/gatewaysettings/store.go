package gatewaysettings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
)

// MaskPrefix is prepended to the last four characters of a secret.
const MaskPrefix = "********"

var (
	ErrForbidden      = errors.New("gatewaysettings: admin privileges required")
	ErrNotFound       = errors.New("gatewaysettings: gateway not found")
	ErrNotConfigured  = errors.New("gatewaysettings: gateway not configured")
	ErrSecretRequired = errors.New("gatewaysettings: secret key is required for a new gateway")
)

// Actor is the authenticated principal performing a settings operation.
type Actor struct {
	UserID  uint
	IsAdmin bool
}

// View is the admin-facing representation. The secret never leaves the
// process in cleartext.
type View struct {
	Name            string    `json:"name"`
	PublicKey       string    `json:"public_key"`
	SecretKeyMasked string    `json:"secret_key_masked"`
	IsActive        bool      `json:"is_active"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpsertInput is the admin form. A nil, blank or masked SecretKey keeps the
// stored secret.
type UpsertInput struct {
	PublicKey string  `json:"public_key" validate:"required,max=255"`
	SecretKey *string `json:"secret_key,omitempty" validate:"omitempty,max=255"`
	IsActive  bool    `json:"is_active"`
}

// Store is the settings store for payment gateway credentials. Values are
// read from the database on every call so rotated keys apply immediately.
type Store struct {
	repo     Repository
	cipher   *security.SecretCipher
	validate *validator.Validate
}

func NewStore(repo Repository, cipher *security.SecretCipher) *Store {
	return &Store{repo: repo, cipher: cipher, validate: validator.New()}
}

func NewStoreFromDB(db *gorm.DB, cipher *security.SecretCipher) *Store {
	return NewStore(NewRepository(db), cipher)
}

// MaskSecret returns the masked form shown to admins.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return MaskPrefix
	}
	return MaskPrefix + secret[len(secret)-4:]
}

// IsMasked reports whether value is a masked placeholder rather than a key.
func IsMasked(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), MaskPrefix)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the gateway settings with the secret masked.
func (s *Store) Get(ctx context.Context, actor Actor, name string) (*View, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	row, err := s.repo.FindByName(ctx, normalizeName(name))
	if err != nil {
		return nil, err
	}

	masked := ""
	if row.SecretKeyEnc != "" {
		plain, err := s.cipher.Decrypt(row.SecretKeyEnc, row.Name)
		if err != nil {
			return nil, err
		}
		masked = MaskSecret(plain)
	}

	return toView(row, masked), nil
}

// SecretForServerUse returns the cleartext secret of the active gateway.
// The value must never be written to an HTTP response.
func (s *Store) SecretForServerUse(ctx context.Context, name string) (string, error) {
	row, err := s.repo.FindByName(ctx, normalizeName(name))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotConfigured
		}
		return "", err
	}
	if !row.IsActive || row.SecretKeyEnc == "" {
		return "", ErrNotConfigured
	}

	plain, err := s.cipher.Decrypt(row.SecretKeyEnc, row.Name)
	if err != nil {
		return "", err
	}
	if plain == "" {
		return "", ErrNotConfigured
	}
	return plain, nil
}

// Upsert creates or updates the gateway settings. Last writer wins.
func (s *Store) Upsert(ctx context.Context, actor Actor, name string, in UpsertInput) (*View, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	name = normalizeName(name)
	if err := s.validate.Var(name, "required,alphanum,max=50"); err != nil {
		return nil, err
	}
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByName(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	row := &models.PaymentGatewaySetting{
		Name:      name,
		PublicKey: in.PublicKey,
		IsActive:  in.IsActive,
	}

	newSecret := ""
	if in.SecretKey != nil && !IsMasked(*in.SecretKey) {
		newSecret = strings.TrimSpace(*in.SecretKey)
	}

	updateSecret := newSecret != ""
	if updateSecret {
		enc, err := s.cipher.Encrypt(newSecret, name)
		if err != nil {
			return nil, fmt.Errorf("encrypt secret: %w", err)
		}
		row.SecretKeyEnc = enc
	} else {
		if existing == nil || existing.SecretKeyEnc == "" {
			return nil, ErrSecretRequired
		}
		row.SecretKeyEnc = existing.SecretKeyEnc
	}

	if err := s.repo.Upsert(ctx, row, updateSecret); err != nil {
		return nil, fmt.Errorf("save gateway settings: %w", err)
	}

	masked := MaskPrefix
	if updateSecret {
		masked = MaskSecret(newSecret)
	} else if plain, err := s.cipher.Decrypt(row.SecretKeyEnc, name); err == nil {
		masked = MaskSecret(plain)
	}
	return toView(row, masked), nil
}

func toView(row *models.PaymentGatewaySetting, masked string) *View {
	return &View{
		Name:            row.Name,
		PublicKey:       row.PublicKey,
		SecretKeyMasked: masked,
		IsActive:        row.IsActive,
		UpdatedAt:       row.UpdatedAt,
	}
}
