package hooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// declForHash is the canonical, JSON-stable projection of a Hook used
// to compute the approval key (specification §4.8: "SHA-256 of the
// canonical serialization of the hook declarations, not of the whole
// config file").
type declForHash struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
	Source  bool     `json:"source"`
	Preload bool     `json:"preload"`
	Inputs  []string `json:"inputs"`
}

// ConfigHash computes the approval key for a set of hook declarations.
func ConfigHash(declared []Hook) (string, error) {
	projected := make([]declForHash, len(declared))
	for i, h := range declared {
		projected[i] = declForHash{
			Command: h.Command,
			Args:    append([]string(nil), h.Args...),
			Dir:     h.Dir,
			Source:  h.Source,
			Preload: h.Preload,
			Inputs:  append([]string(nil), h.Inputs...),
		}
	}
	canonical, err := json.Marshal(projected)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ApprovalRecord is one entry of the on-disk approvals file
// (specification §6 "Approvals file").
type ApprovalRecord struct {
	ApprovedAt time.Time `json:"approved_at"`
	Approver   string    `json:"approver,omitempty"`
}

// Approvals is the full on-disk approvals file: config-hash -> record.
type Approvals map[string]ApprovalRecord

// ApprovalStore reads and writes the approvals file at path under an
// advisory lock, so concurrent cuenv invocations never interleave
// writes (specification §4.8 "Approval gate").
type ApprovalStore struct {
	path string
}

// NewApprovalStore opens (without requiring it to yet exist) the
// approvals file at path.
func NewApprovalStore(path string) *ApprovalStore {
	return &ApprovalStore{path: path}
}

// IsApproved reports whether configHash has a recorded approval.
func (a *ApprovalStore) IsApproved(configHash string) (bool, error) {
	approvals, err := a.read()
	if err != nil {
		return false, err
	}
	_, ok := approvals[configHash]
	return ok, nil
}

// Approve records approval for configHash, read-modify-write under an
// advisory lock so concurrent writers never lose each other's records.
// IsApproved reads without taking the lock.
func (a *ApprovalStore) Approve(configHash, approver string) error {
	return a.withLock(func() error {
		approvals, err := a.readLocked()
		if err != nil {
			return err
		}
		if approvals == nil {
			approvals = Approvals{}
		}
		approvals[configHash] = ApprovalRecord{ApprovedAt: time.Now().UTC(), Approver: approver}
		return a.writeLocked(approvals)
	})
}

// Revoke removes configHash's approval record, if any.
func (a *ApprovalStore) Revoke(configHash string) error {
	return a.withLock(func() error {
		approvals, err := a.readLocked()
		if err != nil {
			return err
		}
		delete(approvals, configHash)
		return a.writeLocked(approvals)
	})
}

func (a *ApprovalStore) read() (Approvals, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Approvals{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return Approvals{}, nil // withLock creates the file empty before the first write
	}
	var approvals Approvals
	if err := json.Unmarshal(data, &approvals); err != nil {
		return nil, err
	}
	return approvals, nil
}

// readLocked is identical to read but documents that it must only be
// called while holding the file lock (via withLock).
func (a *ApprovalStore) readLocked() (Approvals, error) {
	return a.read()
}

func (a *ApprovalStore) writeLocked(approvals Approvals) error {
	data, err := json.MarshalIndent(approvals, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.path, data, 0o600)
}

// withLock holds an advisory exclusive lock on a.path (created if
// absent) for the duration of fn, implementing the read-modify-write
// contract (specification §4.8).
func (a *ApprovalStore) withLock(fn func() error) error {
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}
