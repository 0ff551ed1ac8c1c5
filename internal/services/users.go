package services

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"filepanel/internal/authz"
	"filepanel/internal/models"
	"filepanel/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
)

// Secondary index key prefixes. Primary user keys are uuids, which never
// contain ':', so the delimiter alone distinguishes an index entry from a
// record when scanning.
const (
	usernameIndexPrefix = "username:"
	emailIndexPrefix    = "email:"
	indexDelimiter      = ":"
)

// UserService is the identity registry: it owns the user records in the
// users keyspace together with their username and email indexes. All user
// mutation goes through it.
type UserService struct {
	ks         *store.Keyspace
	bcryptCost int
}

func NewUserService(st *store.Store, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		ks:         st.Keyspace(store.UsersKeyspace),
		bcryptCost: bcryptCost,
	}
}

// CreateUserParams carries everything needed to mint a user. Permissions,
// when set, is merged over the role's default template.
type CreateUserParams struct {
	Username    string
	Email       string
	Password    string
	Role        models.Role
	Permissions *models.PermissionsPatch
	CreatedBy   string
}

// Create normalizes the username and email, hashes the password and writes
// the record plus both index entries.
//
// Uniqueness is check-then-create: two concurrent creates for the same
// username can both pass the existence check before either writes, and the
// later write wins. Single-process deployments make this window acceptable;
// it is the store's documented consistency model, not an accident.
func (s *UserService) Create(p CreateUserParams) (*models.User, error) {
	username := strings.ToLower(strings.TrimSpace(p.Username))
	email := strings.ToLower(strings.TrimSpace(p.Email))

	if taken, err := s.indexExists(usernameIndexPrefix + username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.indexExists(emailIndexPrefix + email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	role := p.Role
	if !models.ValidRole(role) {
		role = models.RoleUser
	}
	perms := models.DefaultPermissionsFor(role)
	if p.Permissions != nil {
		perms = p.Permissions.ApplyTo(perms)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Permissions:  perms,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    p.CreatedBy,
		IsActive:     true,
	}

	if err := s.putUser(user); err != nil {
		return nil, err
	}
	if err := s.ks.Put(usernameIndexPrefix+username, []byte(user.ID)); err != nil {
		return nil, err
	}
	if err := s.ks.Put(emailIndexPrefix+email, []byte(user.ID)); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByID resolves a user record. Absent and structurally corrupted
// records both come back as (nil, nil): a record that cannot be decoded
// must never become a half-authenticated identity.
func (s *UserService) FindByID(id string) (*models.User, error) {
	raw, err := s.ks.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// FindByUsername resolves through the username index. A dangling index
// entry (record gone) reads as absent.
func (s *UserService) FindByUsername(username string) (*models.User, error) {
	return s.findByIndex(usernameIndexPrefix + strings.ToLower(username))
}

// FindByEmail resolves through the email index.
func (s *UserService) FindByEmail(email string) (*models.User, error) {
	return s.findByIndex(emailIndexPrefix + strings.ToLower(email))
}

func (s *UserService) findByIndex(indexKey string) (*models.User, error) {
	raw, err := s.ks.Get(indexKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.FindByID(string(raw))
}

// UpdateUserParams is a partial update; nil fields are untouched.
type UpdateUserParams struct {
	Email       *string
	Password    *string
	Role        *models.Role
	IsActive    *bool
	Permissions *models.PermissionsPatch
}

// Update applies the patch to an existing user. An email change re-indexes:
// the old index entry is deleted and a new one written, and the new email
// must not belong to another user. Permissions merge onto the existing value.
// Returns (nil, nil) when the user does not exist.
func (s *UserService) Update(id string, p UpdateUserParams) (*models.User, error) {
	user, err := s.FindByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	if p.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*p.Email))
		if newEmail != "" && newEmail != user.Email {
			owner, err := s.ks.Get(emailIndexPrefix + newEmail)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			if err == nil && string(owner) != id {
				return nil, ErrEmailTaken
			}
			if err := s.ks.Delete(emailIndexPrefix + user.Email); err != nil {
				return nil, err
			}
			if err := s.ks.Put(emailIndexPrefix+newEmail, []byte(id)); err != nil {
				return nil, err
			}
			user.Email = newEmail
		}
	}

	if p.Password != nil && *p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*p.Password), s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if p.Role != nil && models.ValidRole(*p.Role) {
		user.Role = *p.Role
	}

	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}

	if p.Permissions != nil {
		user.Permissions = p.Permissions.ApplyTo(user.Permissions)
	}

	if err := s.putUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the record and both index entries. Returns false when the
// user did not exist.
func (s *UserService) Delete(id string) (bool, error) {
	user, err := s.FindByID(id)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}

	if err := s.ks.Delete(id); err != nil {
		return false, err
	}
	if err := s.ks.Delete(usernameIndexPrefix + user.Username); err != nil {
		return false, err
	}
	if err := s.ks.Delete(emailIndexPrefix + user.Email); err != nil {
		return false, err
	}
	return true, nil
}

// List returns every user record. Index entries share the keyspace and are
// skipped by key shape; corrupted records are skipped too.
func (s *UserService) List() ([]*models.User, error) {
	entries, err := s.ks.Scan("")
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e.Key, indexDelimiter) {
			continue
		}
		var user models.User
		if err := json.Unmarshal(e.Value, &user); err != nil {
			continue
		}
		users = append(users, &user)
	}
	return users, nil
}

// HasUsers reports whether any user record exists. Drives first-run setup.
func (s *UserService) HasUsers() (bool, error) {
	users, err := s.List()
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// VerifyPassword checks candidate against the stored hash. It never
// compares raw strings; bcrypt's own comparison does the work.
func (s *UserService) VerifyPassword(user *models.User, candidate string) bool {
	if user == nil || user.PasswordHash == "" || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(candidate)) == nil
}

// UpdateLastLogin stamps the user's last successful authentication.
func (s *UserService) UpdateLastLogin(id string) error {
	user, err := s.FindByID(id)
	if err != nil || user == nil {
		return err
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	return s.putUser(user)
}

// HasPermission resolves the user and delegates the decision to the
// evaluator. Missing or disabled users are simply denied.
func (s *UserService) HasPermission(userID string, cap models.Capability, path string) (bool, error) {
	user, err := s.FindByID(userID)
	if err != nil {
		return false, err
	}
	if user == nil || !user.IsActive {
		return false, nil
	}
	return authz.Allow(user, cap, path), nil
}

func (s *UserService) putUser(user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.ks.Put(user.ID, raw)
}

func (s *UserService) indexExists(key string) (bool, error) {
	_, err := s.ks.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
