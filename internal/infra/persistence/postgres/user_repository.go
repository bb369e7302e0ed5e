// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"reviewhub/internal/domain/entity"
	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/repository"
	"reviewhub/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain.UserRepository interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db, now: time.Now}
}

// FindByID retrieves a single user by their unique ID, preloading external logins.
func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return repo.first(ctx, "failed to find user by id", "id = ?", id)
}

// FindByEmail retrieves a single user by normalized email.
func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.first(ctx, "failed to find user by email", "email = ?", entity.NormalizeEmail(email))
}

// FindByExternalLogin retrieves the user bound to a provider subject.
func (repo *userRepository) FindByExternalLogin(ctx context.Context, provider entity.Provider, subjectID string) (*entity.User, error) {
	var login model.ExternalLoginModel
	err := repo.db.WithContext(ctx).
		Where("provider = ? AND subject_id = ?", provider.String(), subjectID).
		First(&login).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExternalLoginNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find external login")
	}

	user, err := repo.FindByID(ctx, login.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, repository.ErrExternalLoginNotFound
	}

	return user, err
}

// List returns every user ordered by creation time.
func (repo *userRepository) List(ctx context.Context) ([]*entity.User, error) {
	var rows []*model.UserModel
	err := repo.db.WithContext(ctx).
		Preload("ExternalLogins").
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to list users")
	}

	users := make([]*entity.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, toUserDomain(row))
	}

	return users, nil
}

// Create persists a new user together with its external logins.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "generate user id")
		}
		user.ID = id
	}
	now := repo.now().UTC()
	user.Email = entity.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	for i := range user.ExternalLogins {
		user.ExternalLogins[i].UserID = user.ID
		user.ExternalLogins[i].CreatedAt = now
	}

	userM := fromUserDomain(user)
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(userM).Error; err != nil {
			return err
		}
		if len(userM.ExternalLogins) == 0 {
			return nil
		}

		return tx.Create(&userM.ExternalLogins).Error
	})
	if err != nil {
		return translateWriteError(err, "failed to create user")
	}

	return nil
}

// UpdateProfile persists the user's nickname.
func (repo *userRepository) UpdateProfile(ctx context.Context, user *entity.User) error {
	now := repo.now().UTC()
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"nickname": user.Nickname, "updated_at": now})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update user profile")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = now

	return nil
}

// UpdatePassword swaps hash and stamp in one conditional UPDATE so concurrent
// redemptions of the same reset token cannot both succeed.
func (repo *userRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, expectedStamp, passwordHash, newStamp string) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND security_stamp = ?", userID, expectedStamp).
		Updates(map[string]any{
			"password_hash":  passwordHash,
			"security_stamp": newStamp,
			"updated_at":     repo.now().UTC(),
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update password")
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := repo.db.WithContext(ctx).Model(&model.UserModel{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to check user existence")
	}
	if count == 0 {
		return repository.ErrUserNotFound
	}

	return repository.ErrStaleSecurityStamp
}

// AddExternalLogin binds a provider subject to an existing user.
func (repo *userRepository) AddExternalLogin(ctx context.Context, login *entity.ExternalLogin) error {
	login.CreatedAt = repo.now().UTC()
	loginM := fromExternalLoginDomain(*login)
	if err := repo.db.WithContext(ctx).Create(&loginM).Error; err != nil {
		return translateWriteError(err, "failed to add external login")
	}

	return nil
}

func (repo *userRepository) first(ctx context.Context, op, query string, args ...any) (*entity.User, error) {
	var userM model.UserModel
	err := repo.db.WithContext(ctx).
		Preload("ExternalLogins").
		Where(query, args...).
		First(&userM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, op)
	}

	return toUserDomain(&userM), nil
}

// translateWriteError maps constraint violations to repository sentinels.
func translateWriteError(err error, op string) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case constraintUsersEmail:
			return repository.ErrUserAlreadyExists
		case constraintExternalLoginPK:
			return repository.ErrExternalLoginExists
		case constraintExternalLoginPerUsr:
			return repository.ErrProviderAlreadyLinked
		}
	}
	if isForeignKeyConstraintViolation(err) {
		return repository.ErrUserNotFound
	}

	return domainerrors.NewDatabaseExecuteError(err, op)
}

// --- Mapper Functions ---
// These helpers convert between domain entities and persistence models.

func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	logins := make([]entity.ExternalLogin, 0, len(data.ExternalLogins))
	for _, l := range data.ExternalLogins {
		logins = append(logins, entity.ExternalLogin{
			Provider:  entity.Provider(l.Provider),
			SubjectID: l.SubjectID,
			UserID:    l.UserID,
			CreatedAt: l.CreatedAt,
		})
	}

	return &entity.User{
		ID:             data.ID,
		Email:          data.Email,
		UserName:       data.UserName,
		Nickname:       data.Nickname,
		PasswordHash:   data.PasswordHash,
		SecurityStamp:  data.SecurityStamp,
		Roles:          entity.RolesFromStrings(data.Roles),
		ExternalLogins: logins,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	logins := make([]model.ExternalLoginModel, 0, len(data.ExternalLogins))
	for _, l := range data.ExternalLogins {
		logins = append(logins, fromExternalLoginDomain(l))
	}

	return &model.UserModel{
		ID:             data.ID,
		Email:          data.Email,
		UserName:       data.UserName,
		Nickname:       data.Nickname,
		PasswordHash:   data.PasswordHash,
		SecurityStamp:  data.SecurityStamp,
		Roles:          data.Roles.ToStrings(),
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
		ExternalLogins: logins,
	}
}

func fromExternalLoginDomain(data entity.ExternalLogin) model.ExternalLoginModel {
	return model.ExternalLoginModel{
		Provider:  data.Provider.String(),
		SubjectID: data.SubjectID,
		UserID:    data.UserID,
		CreatedAt: data.CreatedAt,
	}
}
