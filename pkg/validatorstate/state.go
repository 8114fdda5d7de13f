// Package validatorstate holds the validator's current view of the
// contract: which epoch and block height it has synced to, and which role
// it currently holds. Epoch and role are updated atomically by the
// contract-sync cron job, any field can be set by the test-only state
// route, and all are read concurrently by the HTTP handlers and the cosign
// pipeline.
package validatorstate

import "sync/atomic"

// Role is the validator's role for the current epoch.
type Role uint8

const (
	// RoleLeader collects and forwards cosigned receipts for anchoring.
	RoleLeader Role = iota
	// RoleCosigner countersigns receipts the Leader forwards to it.
	RoleCosigner
	// RoleIdle is held by validators not nominated for the current epoch.
	RoleIdle
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleCosigner:
		return "cosigner"
	case RoleIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// State is the validator's current block height, epoch, and role, safe for
// concurrent access without external locking.
type State struct {
	currentBlock atomic.Uint64
	currentEpoch atomic.Uint64
	role         atomic.Uint32
}

// New returns a State initialized to block 0, epoch 0, and RoleCosigner —
// the role a freshly started validator holds until its first contract sync.
func New() *State {
	s := &State{}
	s.role.Store(uint32(RoleCosigner))
	return s
}

// Block returns the last block height the validator has synced to.
func (s *State) Block() uint64 {
	return s.currentBlock.Load()
}

// SetBlock records the current block height. The contract-sync job does not
// call it; the test-only state route does.
func (s *State) SetBlock(block uint64) {
	s.currentBlock.Store(block)
}

// Epoch returns the validator's current epoch.
func (s *State) Epoch() uint64 {
	return s.currentEpoch.Load()
}

// SetEpoch records the epoch observed in the latest contract sync.
func (s *State) SetEpoch(epoch uint64) {
	s.currentEpoch.Store(epoch)
}

// Role returns the validator's current role.
func (s *State) Role() Role {
	return Role(s.role.Load())
}

// SetRole updates the validator's current role.
func (s *State) SetRole(role Role) {
	s.role.Store(uint32(role))
}
