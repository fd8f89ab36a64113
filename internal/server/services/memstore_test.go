package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/dbx"
	"github.com/dmitrijs2005/consejo/internal/logging"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
	"github.com/dmitrijs2005/consejo/internal/server/config"
	"github.com/dmitrijs2005/consejo/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/consejo/internal/server/repositories/refreshtokens"
	unitsrepo "github.com/dmitrijs2005/consejo/internal/server/repositories/units"
	usersrepo "github.com/dmitrijs2005/consejo/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore keeps users, units and refresh tokens in memory. The fail* fields
// inject faults into single operations; a failing operation changes nothing.
type memStore struct {
	mu     sync.Mutex
	users  map[string]models.User
	units  map[string]models.Unit
	tokens map[string]models.RefreshToken

	failGetByLogin     error
	failGetByID        error
	failCreateUser     error
	failUpdatePassword error
	failUpdateSecurity error
	failDeleteByUser   error
	failFindUnit       error

	// hideFromLookup makes GetUserByLogin miss existing rows, which lets a
	// test reach Create with a taken username.
	hideFromLookup bool

	updatePasswordCalls int
	updateSecurityCalls int
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]models.User{},
		units:  map[string]models.Unit{},
		tokens: map[string]models.RefreshToken{},
	}
}

// --- users.Repository ---

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failCreateUser != nil {
		return nil, r.m.failCreateUser
	}
	for _, existing := range r.m.users {
		if existing.UserName == u.UserName {
			return nil, common.ErrDuplicateUsername
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now()
	r.m.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failGetByLogin != nil {
		return nil, r.m.failGetByLogin
	}
	if r.m.hideFromLookup {
		return nil, common.ErrorNotFound
	}
	for _, u := range r.m.users {
		if u.UserName == login {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failGetByID != nil {
		return nil, r.m.failGetByID
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.updatePasswordCalls++
	if r.m.failUpdatePassword != nil {
		return r.m.failUpdatePassword
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	r.m.users[id] = u
	return nil
}

func (r memUsers) UpdateSecurityQA(_ context.Context, id string, question string, answerHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.updateSecurityCalls++
	if r.m.failUpdateSecurity != nil {
		return r.m.failUpdateSecurity
	}
	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.SecurityQuestion = question
	u.SecurityAnswerHash = answerHash
	r.m.users[id] = u
	return nil
}

// --- units.Repository ---

type memUnits struct{ m *memStore }

func (r memUnits) FindByName(_ context.Context, name string) (*models.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failFindUnit != nil {
		return nil, r.m.failFindUnit
	}
	u, ok := r.m.units[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUnits) Create(_ context.Context, unit *models.Unit) (*models.Unit, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	r.m.units[unit.Name] = *unit
	out := *unit
	return &out, nil
}

// --- refreshtokens.Repository ---

type memTokens struct{ m *memStore }

func (r memTokens) Create(_ context.Context, userID string, token string, validity time.Duration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[token] = models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r memTokens) Delete(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.tokens, token)
	return nil
}

func (r memTokens) DeleteByUser(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failDeleteByUser != nil {
		return r.m.failDeleteByUser
	}
	for k, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, k)
		}
	}
	return nil
}

func (m *memStore) userByName(name string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UserName == name {
			return u, true
		}
	}
	return models.User{}, false
}

func (m *memStore) countUsers(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.UserName == name {
			n++
		}
	}
	return n
}

func (m *memStore) tokensOf(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// memManager is a repomanager.RepositoryManager over a memStore.
type memManager struct{ m *memStore }

func (mm *memManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (mm *memManager) Users(dbx.DBTX) usersrepo.Repository                 { return memUsers{mm.m} }
func (mm *memManager) Units(dbx.DBTX) unitsrepo.Repository                 { return memUnits{mm.m} }
func (mm *memManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return memTokens{mm.m} }

// newSQLiteDB returns an in-memory database used only as a transaction
// handle: the repositories under test never touch it.
func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		DefaultUnitName:              DefaultUnitName,
	}
}

func testHasher() *auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

// newMemService wires a UserService to a fresh memStore.
func newMemService(t *testing.T) (*UserService, *memStore) {
	t.Helper()
	store := newMemStore()
	s := NewUserService(newSQLiteDB(t), &memManager{m: store}, testHasher(), logging.Nop{}, testConfig())
	return s, store
}

// seedUser stores an account with real hashes for password and answer.
// An empty answer leaves the legacy "not configured" hash in place.
func seedUser(t *testing.T, store *memStore, name, password, question, answer string) models.User {
	t.Helper()
	h := testHasher()
	ph, err := h.Hash(password)
	require.NoError(t, err)
	ah := ""
	if answer != "" {
		ah, err = h.Hash(auth.NormalizeAnswer(answer))
		require.NoError(t, err)
	}
	u, err := memUsers{store}.Create(context.Background(), &models.User{
		UserName:           name,
		PasswordHash:       ph,
		Role:               models.RoleAdmin,
		SecurityQuestion:   question,
		SecurityAnswerHash: ah,
	})
	require.NoError(t, err)
	return *u
}
