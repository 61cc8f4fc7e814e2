package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/dto"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/events"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	db        *gorm.DB
	auth      *AuthService
	publisher events.Publisher
}

func NewUserService(db *gorm.DB, auth *AuthService, publisher events.Publisher) *UserService {
	return &UserService{db: db, auth: auth, publisher: publisher}
}

func (s *UserService) List(q dto.ListUsersQuery) ([]models.User, error) {
	var users []models.User
	query := s.db.Model(&models.User{})
	if q.UserType != "" {
		query = query.Where("user_type = ?", q.UserType)
	}
	if q.Active != nil {
		query = query.Where("is_active = ?", *q.Active)
	}
	if err := query.Order("lastname ASC, firstname ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Create is the admin path: the account is active immediately unless the
// request says otherwise.
func (s *UserService) Create(req *dto.CreateUserRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if err := validateNames(req.Firstname, req.Lastname); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password, req.ConfirmPassword); err != nil {
		return nil, err
	}
	userType, err := parseUserType(req.UserType)
	if err != nil {
		return nil, err
	}
	if err := ensureEmailFree(s.db, email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user := models.User{
		ID:                uuid.New(),
		Firstname:         strings.TrimSpace(req.Firstname),
		Lastname:          strings.TrimSpace(req.Lastname),
		Email:             email,
		Password:          hash,
		UserType:          userType,
		IsAdmin:           userType == models.UserTypeAdmin,
		IsActive:          active,
		AssignedLocations: []uuid.UUID{},
	}
	if err := insertUser(s.db, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) UpdateSelf(id uuid.UUID, req *dto.UpdateSelfRequest) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if err := s.applyProfile(user, req.Firstname, req.Lastname, req.Email, updates); err != nil {
		return nil, err
	}

	if req.Password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			return nil, Validation("current password is incorrect")
		}
		if err := validatePassword(req.Password, req.ConfirmPassword); err != nil {
			return nil, err
		}
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hash
	}

	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.Get(id)
}

// UpdateByID is the admin edit. Promoting a technician to admin drops their
// location assignment, since admins are never assigned.
func (s *UserService) UpdateByID(id uuid.UUID, req *dto.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if err := s.applyProfile(user, req.Firstname, req.Lastname, req.Email, updates); err != nil {
		return nil, err
	}

	promote := false
	if req.UserType != nil {
		userType, err := parseUserType(*req.UserType)
		if err != nil {
			return nil, err
		}
		updates["user_type"] = userType
		updates["is_admin"] = userType == models.UserTypeAdmin
		promote = userType == models.UserTypeAdmin && !user.IsAdmin
	}
	deactivate := false
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
		deactivate = user.IsActive && !*req.IsActive
	}
	if req.Password != "" {
		if err := validatePassword(req.Password, req.ConfirmPassword); err != nil {
			return nil, err
		}
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hash
	}

	if len(updates) == 0 {
		return user, nil
	}

	err = withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if promote {
				if err := detachTechnician(tx, id); err != nil {
					return err
				}
				updates["assigned_locations"] = datatypes.JSONSlice[uuid.UUID]{}
			}
			return tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
		})
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if deactivate {
		if err := s.auth.RevokeAll(id); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}
	return s.Get(id)
}

func (s *UserService) Approve(actorID, id uuid.UUID) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return user, nil
	}
	if err := s.db.Model(user).Update("is_active", true).Error; err != nil {
		return nil, fmt.Errorf("failed to approve user: %w", err)
	}
	user.IsActive = true

	events.Emit(s.publisher, events.TopicUserApproved, events.UserApproved{
		UserID:     user.ID,
		Email:      user.Email,
		ApprovedBy: actorID,
		OccurredAt: time.Now().UTC(),
	})
	return user, nil
}

// Delete removes the user and every location reference to them in one
// transaction, keeping the assignment relation symmetric.
func (s *UserService) Delete(actorID, id uuid.UUID) error {
	if actorID == id {
		return Validation("you cannot delete your own account")
	}
	if _, err := s.Get(id); err != nil {
		return err
	}

	return withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := detachTechnician(tx, id); err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&models.RefreshToken{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.User{}, "id = ?", id).Error
		})
	})
}

func (s *UserService) applyProfile(user *models.User, firstname, lastname, email *string, updates map[string]interface{}) error {
	if firstname != nil {
		if strings.TrimSpace(*firstname) == "" {
			return Validation("firstname cannot be empty")
		}
		updates["firstname"] = strings.TrimSpace(*firstname)
	}
	if lastname != nil {
		if strings.TrimSpace(*lastname) == "" {
			return Validation("lastname cannot be empty")
		}
		updates["lastname"] = strings.TrimSpace(*lastname)
	}
	if email != nil {
		normalized := normalizeEmail(*email)
		if normalized != user.Email {
			if err := validateEmail(normalized); err != nil {
				return err
			}
			if err := ensureEmailFree(s.db, normalized, user.ID); err != nil {
				return err
			}
			updates["email"] = normalized
		}
	}
	return nil
}

func parseUserType(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", models.UserTypeUser:
		return models.UserTypeUser, nil
	case models.UserTypeAdmin:
		return models.UserTypeAdmin, nil
	default:
		return "", Validation("userType must be admin or user")
	}
}

// detachTechnician removes userID from every location technician set. The
// affected location rows are locked before the user row, the same order the
// assignment procedure uses.
func detachTechnician(tx *gorm.DB, userID uuid.UUID) error {
	needle, err := jsonArrayOf(userID)
	if err != nil {
		return err
	}

	var locationIDs []uuid.UUID
	if err := tx.Table(LocationsTable).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("assigned_technicians @> CAST(? AS jsonb)", needle).
		Order("id").
		Pluck("id", &locationIDs).Error; err != nil {
		return fmt.Errorf("failed to lock locations: %w", err)
	}

	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").First(&models.User{}, "id = ?", userID).Error; err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}

	if len(locationIDs) == 0 {
		return nil
	}
	return tx.Table(LocationsTable).
		Where("id IN ?", locationIDs).
		Update("assigned_technicians", gorm.Expr("assigned_technicians - CAST(? AS text)", userID.String())).Error
}
