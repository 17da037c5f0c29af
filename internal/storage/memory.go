package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heartline/vault/internal/common"
)

// Memory is an in-process Gateway backed by maps. It is used by tests and
// by the CLI's demo mode; the data does not survive the process.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*UserRow   // by id
	byName  map[string]string     // username -> id
	records map[string]*RecordRow // userID/fieldName
	tokens  map[string]*TokenRow  // by id

	// ReplaceHook, when set, runs inside ReplaceUserKeys before any write
	// and aborts the operation if it returns an error. Test seam for the
	// password-change rollback property.
	ReplaceHook func() error
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*UserRow),
		byName:  make(map[string]string),
		records: make(map[string]*RecordRow),
		tokens:  make(map[string]*TokenRow),
	}
}

func recordKey(userID, fieldName string) string {
	return userID + "/" + fieldName
}

func copyUser(u *UserRow) *UserRow {
	c := *u
	c.PasswordSalt = append([]byte(nil), u.PasswordSalt...)
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	c.KDFSalt = append([]byte(nil), u.KDFSalt...)
	return &c
}

func copyRecord(r *RecordRow) *RecordRow {
	c := *r
	c.Nonce = append([]byte(nil), r.Nonce...)
	c.Ciphertext = append([]byte(nil), r.Ciphertext...)
	c.AuthTag = append([]byte(nil), r.AuthTag...)
	return &c
}

func copyToken(t *TokenRow) *TokenRow {
	c := *t
	c.WrapNonce = append([]byte(nil), t.WrapNonce...)
	c.WrappedKey = append([]byte(nil), t.WrappedKey...)
	c.WrapTag = append([]byte(nil), t.WrapTag...)
	return &c
}

func (m *Memory) CreateUser(ctx context.Context, user *UserRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[user.Username]; ok {
		return common.ErrDuplicateUser
	}
	m.users[user.ID] = copyUser(user)
	m.byName[user.Username] = user.ID
	return nil
}

func (m *Memory) GetUser(ctx context.Context, username string) (*UserRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byName[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyUser(m.users[id]), nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*UserRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyUser(user), nil
}

func (m *Memory) GetRecord(ctx context.Context, userID, fieldName string) (*RecordRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[recordKey(userID, fieldName)]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyRecord(record), nil
}

func (m *Memory) PutRecord(ctx context.Context, record *RecordRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[recordKey(record.UserID, record.FieldName)] = copyRecord(record)
	return nil
}

func (m *Memory) DeleteRecord(ctx context.Context, userID, fieldName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, recordKey(userID, fieldName))
	return nil
}

func (m *Memory) ListRecords(ctx context.Context, userID string) ([]*RecordRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*RecordRow
	for _, record := range m.records {
		if record.UserID == userID {
			out = append(out, copyRecord(record))
		}
	}
	return out, nil
}

func (m *Memory) GetToken(ctx context.Context, tokenID string) (*TokenRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyToken(token), nil
}

func (m *Memory) PutToken(ctx context.Context, token *TokenRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token.ID] = copyToken(token)
	return nil
}

func (m *Memory) DeleteToken(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tokens, tokenID)
	return nil
}

func (m *Memory) DeleteUserTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, token := range m.tokens {
		if token.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *Memory) SwapTokenGeneration(ctx context.Context, tokenID string, expectedGen int64, updated *TokenRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenID]
	if !ok || token.Generation != expectedGen {
		return common.ErrNotFound
	}
	m.tokens[tokenID] = copyToken(updated)
	return nil
}

func (m *Memory) RevokeToken(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens[tokenID]
	if !ok {
		return common.ErrNotFound
	}
	token.Generation = RevokedGeneration
	return nil
}

func (m *Memory) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, token := range m.tokens {
		if now.After(token.ExpiresAt) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ReplaceUserKeys(ctx context.Context, user *UserRow, records []*RecordRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReplaceHook != nil {
		if err := m.ReplaceHook(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
	}

	if _, ok := m.users[user.ID]; !ok {
		return common.ErrNotFound
	}

	m.users[user.ID] = copyUser(user)
	for key, record := range m.records {
		if record.UserID == user.ID {
			delete(m.records, key)
		}
	}
	for _, record := range records {
		m.records[recordKey(record.UserID, record.FieldName)] = copyRecord(record)
	}
	return nil
}
