package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"autocloudskill/domain/entities"
)

// RunStore persists registered accounts and run history as JSON files next
// to the browser profile, so a later session can reuse credentials.
type RunStore struct {
	mu           sync.Mutex
	accountsPath string
	historyPath  string
}

// AccountRecord is one successfully registered account.
type AccountRecord struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Confirmed bool   `json:"confirmed"`
	CreatedAt string `json:"created_at"`
}

// NewRunStore - creates a store rooted at the given directory
func NewRunStore(dir string) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &RunStore{
		accountsPath: filepath.Join(dir, "accounts.json"),
		historyPath:  filepath.Join(dir, "history.json"),
	}, nil
}

// SaveAccount appends an account to the persisted list.
func (s *RunStore) SaveAccount(account AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return err
	}
	accounts = append(accounts, account)
	return writeJSON(s.accountsPath, accounts)
}

// MarkConfirmed flips the confirmed flag for the account with the e-mail.
func (s *RunStore) MarkConfirmed(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.loadAccounts()
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].Email == email {
			accounts[i].Confirmed = true
			return writeJSON(s.accountsPath, accounts)
		}
	}
	return fmt.Errorf("no stored account for %s", email)
}

// Accounts returns every stored account.
func (s *RunStore) Accounts() ([]AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAccounts()
}

// AppendRun adds a run result to the history file.
func (s *RunStore) AppendRun(result entities.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []entities.RunResult
	if err := readJSON(s.historyPath, &history); err != nil {
		return err
	}
	history = append(history, result)
	return writeJSON(s.historyPath, history)
}

// History returns all recorded runs.
func (s *RunStore) History() ([]entities.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []entities.RunResult
	if err := readJSON(s.historyPath, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *RunStore) loadAccounts() ([]AccountRecord, error) {
	var accounts []AccountRecord
	if err := readJSON(s.accountsPath, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
