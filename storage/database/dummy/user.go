package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// query returns all users ordered by id.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...int64) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(username, email, excludedIDs...)
}

func (repo *userRepository) checkUniqueness(username, email string, excludedIDs ...int64) error {
	for _, usr := range repo.query() {
		if isExcluded(usr.ID, excludedIDs) {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	// unique indexes
	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	usr.ID = repo.db.nextID("users")
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, userID int64, profile user.Profile) error {
	defer repo.db.lockWrite(ctx)()

	usr, ok := repo.db.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	if _, exists := repo.db.profiles[userID]; exists || profile == nil || profile.Role() != usr.Role {
		return user.ErrInvalidRole
	}
	if p, ok := profile.(user.StudentProfile); ok && p.ParentID.Valid {
		if _, isParent := repo.db.profiles[p.ParentID.Int64].(user.ParentProfile); !isParent {
			return user.ErrParentNotFound
		}
	}
	repo.db.profiles[userID] = profile
	return nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != 0 {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.query() {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter == nil || filter.IsEmpty() {
		return sortUsers(users, ordering), nil
	}

	search := strings.ToLower(filter.Search)
	filtered := make([]user.User, 0, len(users))
	for _, u := range users {
		// users with search keyword matching any Name, Username or Email ?
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) {
			continue
		}
		// users with any of the specified roles
		if len(filter.Roles) > 0 && !u.HasRole(filter.Roles...) {
			continue
		}
		filtered = append(filtered, u)
	}
	return sortUsers(filtered, ordering), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.ID); err != nil {
		return user.User{}, err
	}
	usr.Role = orig.Role
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetStudent(_ context.Context, id int64) (user.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.getStudent(id)
}

func (repo *userRepository) getStudent(id int64) (user.Student, error) {
	p, ok := repo.db.profiles[id].(user.StudentProfile)
	if !ok {
		return user.Student{}, user.ErrStudentNotFound
	}
	return user.Student{User: repo.db.users[id], Grade: p.Grade, ParentID: p.ParentID}, nil
}

func (repo *userRepository) QueryStudents(_ context.Context, filter user.StudentFilter) ([]user.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]user.Student, 0)
	for _, usr := range repo.query() {
		std, err := repo.getStudent(usr.ID)
		if err != nil {
			continue
		}
		if filter.ParentID != 0 && !std.HasGuardian(filter.ParentID) {
			continue
		}
		if filter.Grade != "" && std.Grade != filter.Grade {
			continue
		}
		students = append(students, std)
	}
	return students, nil
}

func (repo *userRepository) SetStudentParent(ctx context.Context, studentID, parentID int64) error {
	defer repo.db.lockWrite(ctx)()

	p, ok := repo.db.profiles[studentID].(user.StudentProfile)
	if !ok {
		return user.ErrStudentNotFound
	}
	if _, ok := repo.db.profiles[parentID].(user.ParentProfile); !ok {
		return user.ErrParentNotFound
	}
	p.ParentID = null.Int64From(parentID)
	repo.db.profiles[studentID] = p
	return nil
}

func sortUsers(users []user.User, ordering []core.DBOrdering) []user.User {
	if len(ordering) == 0 {
		return users
	}
	ord := ordering[0]
	less := func(i, j int) bool { return users[i].ID < users[j].ID }
	switch ord.Field {
	case "name":
		less = func(i, j int) bool { return users[i].Name < users[j].Name }
	case "username":
		less = func(i, j int) bool { return users[i].Username < users[j].Username }
	case "email":
		less = func(i, j int) bool { return users[i].Email < users[j].Email }
	case "role":
		less = func(i, j int) bool { return users[i].Role < users[j].Role }
	case "created_at":
		less = func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) }
	}
	sort.SliceStable(users, func(i, j int) bool {
		if ord.Ascending {
			return less(i, j)
		}
		return less(j, i)
	})
	return users
}

func isExcluded(id int64, excludedIDs []int64) bool {
	for _, excl := range excludedIDs {
		if excl == id {
			return true
		}
	}
	return false
}
