// Package memory is an in-process user store with the same uniqueness and
// compare-and-swap guarantees as the PostgreSQL implementation.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"reviewhub/internal/domain/entity"
	"reviewhub/internal/domain/repository"

	"github.com/google/uuid"
)

type loginKey struct {
	provider  entity.Provider
	subjectID string
}

type state struct {
	users  map[uuid.UUID]*entity.User
	emails map[string]uuid.UUID
	logins map[loginKey]uuid.UUID
}

func newState() *state {
	return &state{
		users:  make(map[uuid.UUID]*entity.User),
		emails: make(map[string]uuid.UUID),
		logins: make(map[loginKey]uuid.UUID),
	}
}

func (s *state) clone() *state {
	cp := &state{
		users:  make(map[uuid.UUID]*entity.User, len(s.users)),
		emails: make(map[string]uuid.UUID, len(s.emails)),
		logins: make(map[loginKey]uuid.UUID, len(s.logins)),
	}
	for id, u := range s.users {
		cp.users[id] = copyUser(u)
	}
	for k, v := range s.emails {
		cp.emails[k] = v
	}
	for k, v := range s.logins {
		cp.logins[k] = v
	}

	return cp
}

// Store serializes every operation behind one mutex. Transactions run on a
// copy of the state that replaces the original only on success.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// UserRepo returns a repository whose calls are individually atomic.
func (s *Store) UserRepo() repository.UserRepository {
	return &lockedRepository{store: s}
}

// TransactionManager returns a manager running callbacks against a snapshot.
func (s *Store) TransactionManager() repository.TransactionManager {
	return s
}

// Execute implements repository.TransactionManager.
func (s *Store) Execute(ctx context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	if err := fn(&txFactory{repo: &stateRepository{st: snapshot, now: s.now}}); err != nil {
		return err
	}
	s.st = snapshot

	return nil
}

type txFactory struct {
	repo repository.UserRepository
}

func (f *txFactory) UserRepo() repository.UserRepository {
	return f.repo
}

// lockedRepository takes the store lock around each call.
type lockedRepository struct {
	store *Store
}

func (r *lockedRepository) with(fn func(repo *stateRepository) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return fn(&stateRepository{st: r.store.st, now: r.store.now})
}

func (r *lockedRepository) FindByID(ctx context.Context, id uuid.UUID) (user *entity.User, err error) {
	err = r.with(func(repo *stateRepository) error {
		user, err = repo.FindByID(ctx, id)

		return err
	})

	return user, err
}

func (r *lockedRepository) FindByEmail(ctx context.Context, email string) (user *entity.User, err error) {
	err = r.with(func(repo *stateRepository) error {
		user, err = repo.FindByEmail(ctx, email)

		return err
	})

	return user, err
}

func (r *lockedRepository) FindByExternalLogin(ctx context.Context, provider entity.Provider, subjectID string) (user *entity.User, err error) {
	err = r.with(func(repo *stateRepository) error {
		user, err = repo.FindByExternalLogin(ctx, provider, subjectID)

		return err
	})

	return user, err
}

func (r *lockedRepository) List(ctx context.Context) (users []*entity.User, err error) {
	err = r.with(func(repo *stateRepository) error {
		users, err = repo.List(ctx)

		return err
	})

	return users, err
}

func (r *lockedRepository) Create(ctx context.Context, user *entity.User) error {
	return r.with(func(repo *stateRepository) error { return repo.Create(ctx, user) })
}

func (r *lockedRepository) UpdateProfile(ctx context.Context, user *entity.User) error {
	return r.with(func(repo *stateRepository) error { return repo.UpdateProfile(ctx, user) })
}

func (r *lockedRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, expectedStamp, passwordHash, newStamp string) error {
	return r.with(func(repo *stateRepository) error {
		return repo.UpdatePassword(ctx, userID, expectedStamp, passwordHash, newStamp)
	})
}

func (r *lockedRepository) AddExternalLogin(ctx context.Context, login *entity.ExternalLogin) error {
	return r.with(func(repo *stateRepository) error { return repo.AddExternalLogin(ctx, login) })
}

// stateRepository works on a state the caller has exclusive access to.
type stateRepository struct {
	st  *state
	now func() time.Time
}

func (r *stateRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return copyUser(u), nil
}

func (r *stateRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	id, ok := r.st.emails[entity.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return copyUser(r.st.users[id]), nil
}

func (r *stateRepository) FindByExternalLogin(_ context.Context, provider entity.Provider, subjectID string) (*entity.User, error) {
	id, ok := r.st.logins[loginKey{provider: provider, subjectID: subjectID}]
	if !ok {
		return nil, repository.ErrExternalLoginNotFound
	}

	return copyUser(r.st.users[id]), nil
}

func (r *stateRepository) List(_ context.Context) ([]*entity.User, error) {
	users := make([]*entity.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		users = append(users, copyUser(u))
	}
	slices.SortFunc(users, func(a, b *entity.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	return users, nil
}

func (r *stateRepository) Create(_ context.Context, user *entity.User) error {
	email := entity.NormalizeEmail(user.Email)
	if _, taken := r.st.emails[email]; taken {
		return repository.ErrUserAlreadyExists
	}
	for _, login := range user.ExternalLogins {
		if _, taken := r.st.logins[loginKey{provider: login.Provider, subjectID: login.SubjectID}]; taken {
			return repository.ErrExternalLoginExists
		}
	}

	if user.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		user.ID = id
	}
	now := r.now()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	for i := range user.ExternalLogins {
		user.ExternalLogins[i].UserID = user.ID
		user.ExternalLogins[i].CreatedAt = now
	}

	stored := copyUser(user)
	r.st.users[stored.ID] = stored
	r.st.emails[email] = stored.ID
	for _, login := range stored.ExternalLogins {
		r.st.logins[loginKey{provider: login.Provider, subjectID: login.SubjectID}] = stored.ID
	}

	return nil
}

func (r *stateRepository) UpdateProfile(_ context.Context, user *entity.User) error {
	stored, ok := r.st.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}

	stored.Nickname = user.Nickname
	stored.UpdatedAt = r.now()
	user.UpdatedAt = stored.UpdatedAt

	return nil
}

func (r *stateRepository) UpdatePassword(_ context.Context, userID uuid.UUID, expectedStamp, passwordHash, newStamp string) error {
	stored, ok := r.st.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if stored.SecurityStamp != expectedStamp {
		return repository.ErrStaleSecurityStamp
	}

	stored.PasswordHash = &passwordHash
	stored.SecurityStamp = newStamp
	stored.UpdatedAt = r.now()

	return nil
}

func (r *stateRepository) AddExternalLogin(_ context.Context, login *entity.ExternalLogin) error {
	stored, ok := r.st.users[login.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}

	key := loginKey{provider: login.Provider, subjectID: login.SubjectID}
	if _, taken := r.st.logins[key]; taken {
		return repository.ErrExternalLoginExists
	}
	if _, linked := stored.ExternalLoginFor(login.Provider); linked {
		return repository.ErrProviderAlreadyLinked
	}

	login.CreatedAt = r.now()
	stored.ExternalLogins = append(stored.ExternalLogins, *login)
	r.st.logins[key] = stored.ID

	return nil
}

func copyUser(u *entity.User) *entity.User {
	cp := *u
	if u.PasswordHash != nil {
		hash := *u.PasswordHash
		cp.PasswordHash = &hash
	}
	cp.Roles = slices.Clone(u.Roles)
	cp.ExternalLogins = slices.Clone(u.ExternalLogins)

	return &cp
}
