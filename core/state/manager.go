package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"gigchain/core/types"
	"gigchain/storage"
)

var accountPrefix = []byte("accounts/")

// Manager provides typed access to ledger records over a raw key-value
// database. Records are RLP encoded; record identity is the key, so records
// have immutable identity and mutable fields. Callers are responsible for
// serializing transitions (the node holds a global lock around each one).
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr []byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr...)
}

// GetAccount loads the account stored at addr. Unknown addresses yield a
// fresh zero-balance account rather than an error, mirroring the ledger
// convention that every address implicitly exists.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: database not configured")
	}
	if len(addr) != 20 {
		return nil, fmt.Errorf("state: account address must be 20 bytes")
	}
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: new(big.Int).Set(stored.Balance)}, nil
}

// PutAccount persists the account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	if len(addr) != 20 {
		return fmt.Errorf("state: account address must be 20 bytes")
	}
	if account == nil {
		return fmt.Errorf("state: account must not be nil")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: account balance must not be negative")
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// KVPut stores the RLP encoding of value under the supplied key. Native
// modules namespace their own keys.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the
// key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: database not configured")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func kvKey(key []byte) []byte {
	return append([]byte("kv/"), key...)
}

// storedAccount is the RLP wire form; RLP has no nil big.Int so the encoder
// operates on a normalized copy.
type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}
