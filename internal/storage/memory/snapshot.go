package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

const snapshotVersion = 1

type SnapshotMeta struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the persisted form of a MemoryLedgerStore.
type Snapshot struct {
	Meta         SnapshotMeta         `json:"_meta"`
	LastID       uint64               `json:"last_id"`
	Accounts     []models.Account     `json:"accounts"`
	Transactions []models.Transaction `json:"transactions"`
}

// Snapshot copies the store. It is consistent only when no unit of work is
// in flight; ledger.Ledger.Quiesced provides that.
func (m *MemoryLedgerStore) Snapshot() Snapshot {
	accounts, _ := m.accounts.ListAccounts(context.Background())
	return Snapshot{
		Meta:         SnapshotMeta{Version: snapshotVersion},
		LastID:       m.txlog.lastID(),
		Accounts:     accounts,
		Transactions: m.txlog.All(),
	}
}

// Restore replaces the store contents with snap.
func (m *MemoryLedgerStore) Restore(snap Snapshot) error {
	if snap.Meta.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Meta.Version)
	}
	for _, a := range snap.Accounts {
		if a.ID == "" || a.Balance < 0 {
			return fmt.Errorf("snapshot holds invalid account %q with balance %s", a.ID, a.Balance)
		}
	}
	m.accounts.replace(snap.Accounts)
	m.txlog.replace(snap.LastID, snap.Transactions)
	return nil
}

func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot writes to path+".tmp" and renames it over path.
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Version = snapshotVersion
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
