package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

const (
	DefaultStorageFileName = ".wallet-swap-accounts.json"
)

// Store persists the account snapshot the swap form works on
type Store struct {
	filePath string
	registry *types.Registry
	mu       sync.RWMutex
	accounts []*types.Account
}

// accountRecord is the stored form of an account. Currencies are stored by id.
type accountRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CurrencyID  string          `json:"currency_id"`
	Address     string          `json:"address"`
	Balance     decimal.Decimal `json:"balance"`
	SubAccounts []accountRecord `json:"sub_accounts,omitempty"`
}

// AccountStorage represents the JSON structure for storage
type AccountStorage struct {
	Accounts []accountRecord `json:"accounts"`
}

// NewStore opens the account file, creating nothing until the first write
func NewStore(filePath string, registry *types.Registry) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	store := &Store{
		filePath: filePath,
		registry: registry,
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
	}

	return store, nil
}

// load reads accounts from the storage file
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var storage AccountStorage
	if err := json.Unmarshal(data, &storage); err != nil {
		return fmt.Errorf("failed to unmarshal accounts: %w", err)
	}

	accounts := make([]*types.Account, 0, len(storage.Accounts))
	for _, rec := range storage.Accounts {
		account, err := s.fromRecord(rec, nil)
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	}
	s.accounts = accounts
	return nil
}

// save writes the snapshot to the storage file. Callers hold the lock.
func (s *Store) save() error {
	storage := AccountStorage{Accounts: make([]accountRecord, 0, len(s.accounts))}
	for _, account := range s.accounts {
		storage.Accounts = append(storage.Accounts, toRecord(account))
	}

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns the accounts in insertion order
func (s *Store) List() []*types.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// Get retrieves an account by id, sub-accounts included
func (s *Store) Get(id string) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range types.FlattenAccounts(s.accounts) {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, fmt.Errorf("account '%s' not found", id)
}

// Add appends a top-level account
func (s *Store) Add(account *types.Account) error {
	if err := validate(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range types.FlattenAccounts(s.accounts) {
		if existing.ID == account.ID {
			return fmt.Errorf("account '%s' already exists", account.ID)
		}
	}

	s.accounts = append(s.accounts, account)
	return s.save()
}

// Update replaces the stored account with the same id
func (s *Store) Update(account *types.Account) error {
	if err := validate(account); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.accounts {
		if existing.ID == account.ID {
			next := make([]*types.Account, len(s.accounts))
			copy(next, s.accounts)
			next[i] = account
			s.accounts = next
			return s.save()
		}
	}
	return fmt.Errorf("account '%s' not found", account.ID)
}

// Remove deletes a top-level account and its sub-accounts
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.accounts {
		if existing.ID == id {
			next := make([]*types.Account, 0, len(s.accounts)-1)
			next = append(next, s.accounts[:i]...)
			next = append(next, s.accounts[i+1:]...)
			s.accounts = next
			return s.save()
		}
	}
	return fmt.Errorf("account '%s' not found", id)
}

// Replace swaps the whole snapshot
func (s *Store) Replace(accounts []*types.Account) error {
	for _, account := range accounts {
		if err := validate(account); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = append([]*types.Account(nil), accounts...)
	return s.save()
}

// Count returns the number of top-level accounts
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// GetFilePath returns the storage file path
func (s *Store) GetFilePath() string {
	return s.filePath
}

func validate(account *types.Account) error {
	if account == nil {
		return fmt.Errorf("account is required")
	}
	if account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if account.Currency == nil {
		return fmt.Errorf("account '%s' has no currency", account.ID)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("account '%s' has a negative balance", account.ID)
	}
	for _, sub := range account.SubAccounts {
		if !sub.Currency.IsToken() || !types.SameCurrency(sub.Currency.Parent, account.Currency) {
			return fmt.Errorf("sub-account '%s' does not hold a token of %s", sub.ID, account.Currency.ID)
		}
		if err := validate(sub); err != nil {
			return err
		}
	}
	return nil
}

func toRecord(account *types.Account) accountRecord {
	rec := accountRecord{
		ID:         account.ID,
		Name:       account.Name,
		CurrencyID: account.Currency.ID,
		Address:    account.Address,
		Balance:    account.Balance,
	}
	for _, sub := range account.SubAccounts {
		rec.SubAccounts = append(rec.SubAccounts, toRecord(sub))
	}
	return rec
}

func (s *Store) fromRecord(rec accountRecord, parent *types.Account) (*types.Account, error) {
	currency, err := s.registry.Get(rec.CurrencyID)
	if err != nil {
		return nil, fmt.Errorf("account '%s': %w", rec.ID, err)
	}

	account := &types.Account{
		ID:       rec.ID,
		Name:     rec.Name,
		Currency: currency,
		Address:  rec.Address,
		Balance:  rec.Balance,
	}
	if parent != nil {
		account.ParentID = parent.ID
		if account.Address == "" {
			account.Address = parent.Address
		}
	}

	for _, subRec := range rec.SubAccounts {
		sub, err := s.fromRecord(subRec, account)
		if err != nil {
			return nil, err
		}
		account.SubAccounts = append(account.SubAccounts, sub)
	}
	return account, nil
}
