package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")
	ErrRoleNotFound  = errors.New("role not found")
	ErrRoleInUse     = errors.New("role is still assigned to users")
)

type UserServiceConfig struct {
	Database *gorm.DB
}

type UserService struct {
	config UserServiceConfig
}

func NewUserService(config UserServiceConfig) *UserService {
	return &UserService{
		config: config,
	}
}

type CreateUserParams struct {
	Username       string
	Email          string
	Name           string
	Password       string
	IsAdmin        bool
	OrganizationID string
	BusinessUnitID string
}

func (us *UserService) CreateUser(params CreateUserParams) (*model.User, error) {
	var count int64
	if err := us.config.Database.Model(&model.User{}).Where("username = ?", params.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	if err := us.config.Database.Model(&model.User{}).Where("email = ?", params.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := params.Name
	if name == "" {
		name = utils.Capitalize(params.Username)
	}

	now := time.Now().Unix()

	user := model.User{
		ID:             uuid.New().String(),
		Username:       params.Username,
		Email:          params.Email,
		Name:           name,
		PasswordHash:   string(hash),
		IsAdmin:        params.IsAdmin,
		IsActive:       true,
		OrganizationID: params.OrganizationID,
		BusinessUnitID: params.BusinessUnitID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := us.config.Database.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

func (us *UserService) GetUser(id string) (*model.User, error) {
	var user model.User
	err := us.config.Database.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (us *UserService) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	err := us.config.Database.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (us *UserService) ListUsers() ([]model.User, error) {
	var users []model.User
	if err := us.config.Database.Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

type UpdateUserParams struct {
	Email          *string
	Name           *string
	Password       *string
	IsAdmin        *bool
	IsActive       *bool
	OrganizationID *string
	BusinessUnitID *string
}

func (us *UserService) UpdateUser(id string, params UpdateUserParams) (*model.User, error) {
	user, err := us.GetUser(id)
	if err != nil {
		return nil, err
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if params.IsAdmin != nil {
		user.IsAdmin = *params.IsAdmin
	}
	if params.IsActive != nil {
		user.IsActive = *params.IsActive
	}
	if params.OrganizationID != nil {
		user.OrganizationID = *params.OrganizationID
	}
	if params.BusinessUnitID != nil {
		user.BusinessUnitID = *params.BusinessUnitID
	}

	user.UpdatedAt = time.Now().Unix()

	if err := us.config.Database.Save(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func (us *UserService) DeleteUser(id string) error {
	return us.config.Database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func (us *UserService) SetTotpSecret(id string, secret string) error {
	res := us.config.Database.Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"totp_secret": secret,
		"updated_at":  time.Now().Unix(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (us *UserService) CheckPassword(user *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// Roles

func (us *UserService) CreateRole(name string, description string) (*model.Role, error) {
	role := model.Role{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().Unix(),
	}
	if err := us.config.Database.Create(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (us *UserService) ListRoles() ([]model.Role, error) {
	var roles []model.Role
	if err := us.config.Database.Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// DeleteRole refuses to delete a role that is still assigned. The usage
// check and the delete run in one transaction, serialized by SQLite's
// single writer.
func (us *UserService) DeleteRole(id string) error {
	return us.config.Database.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.UserRole{}).Where("role_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRoleInUse
		}

		res := tx.Where("id = ?", id).Delete(&model.Role{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoleNotFound
		}
		return nil
	})
}

func (us *UserService) AssignRole(userID string, roleID string) error {
	var role model.Role
	err := us.config.Database.Where("id = ?", roleID).First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}

	if _, err := us.GetUser(userID); err != nil {
		return err
	}

	// Re-assigning an existing role is a no-op
	var count int64
	err = us.config.Database.Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	assignment := model.UserRole{
		UserID: userID,
		RoleID: roleID,
	}

	return us.config.Database.Create(&assignment).Error
}

func (us *UserService) RemoveRole(userID string, roleID string) error {
	return us.config.Database.Where("user_id = ? AND role_id = ?", userID, roleID).Delete(&model.UserRole{}).Error
}

func (us *UserService) GetUserRoles(userID string) ([]string, error) {
	var names []string
	err := us.config.Database.Model(&model.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
