package store

import (
	"sync"

	ics23 "github.com/confio/ics23/go"
	"github.com/cosmos/iavl"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"
)

// DefaultCacheSize is the iavl node cache size used for harness stores.
const DefaultCacheSize = 10000

// CommitID identifies a committed store version and its merkle root.
type CommitID struct {
	Version uint64
	Hash    []byte
}

// CommitStore is a versioned key-value store producing ICS23 commitment
// proofs. Each Commit advances the version by exactly one; identical write
// sequences yield identical roots. Committed versions are immutable.
//
// The store is shared between the owning chain context and any relayer
// inspecting it in-process, so all operations are guarded by a mutex.
// Readers only ever observe fully committed versions.
type CommitStore struct {
	mtx  sync.RWMutex
	name string
	tree *iavl.MutableTree
}

// NewCommitStore returns a store named name, persisted under its own prefix
// of db.
func NewCommitStore(db dbm.DB, name string) (*CommitStore, error) {
	tree, err := iavl.NewMutableTree(dbm.NewPrefixDB(db, []byte(name)), DefaultCacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "creating store %s", name)
	}

	return &CommitStore{
		name: name,
		tree: tree,
	}, nil
}

// Name returns the store's name.
func (cs *CommitStore) Name() string {
	return cs.name
}

// Set stages a key-value pair for the next commit.
func (cs *CommitStore) Set(key, value []byte) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	cs.tree.Set(key, value)
}

// Delete stages a key removal for the next commit.
func (cs *CommitStore) Delete(key []byte) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	cs.tree.Remove(key)
}

// Get returns the value for key in the working set, including writes staged
// since the last commit. A nil result means the key is absent.
func (cs *CommitStore) Get(key []byte) []byte {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	_, value := cs.tree.Get(key)
	return value
}

// Has reports whether key is present in the working set.
func (cs *CommitStore) Has(key []byte) bool {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	return cs.tree.Has(key)
}

// GetAtVersion returns the value for key at a committed version.
func (cs *CommitStore) GetAtVersion(key []byte, version uint64) ([]byte, error) {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	if !cs.tree.VersionExists(int64(version)) {
		return nil, errors.Wrapf(ErrHeightNotAvailable, "store %s has no version %d", cs.name, version)
	}

	_, value := cs.tree.GetVersioned(key, int64(version))
	return value, nil
}

// LatestVersion returns the most recently committed version. Zero means
// nothing has been committed yet.
func (cs *CommitStore) LatestVersion() uint64 {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	return uint64(cs.tree.Version())
}

// RootAtVersion returns the merkle root committed at version.
func (cs *CommitStore) RootAtVersion(version uint64) ([]byte, error) {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	imt, err := cs.tree.GetImmutable(int64(version))
	if err != nil {
		return nil, errors.Wrapf(ErrHeightNotAvailable, "store %s has no version %d", cs.name, version)
	}

	return imt.Hash(), nil
}

// Commit writes the staged working set as the next version and returns its
// commit identifier. Each call advances the version by exactly one.
func (cs *CommitStore) Commit() (CommitID, error) {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	hash, version, err := cs.tree.SaveVersion()
	if err != nil {
		return CommitID{}, errors.Wrapf(err, "committing store %s", cs.name)
	}

	return CommitID{Version: uint64(version), Hash: hash}, nil
}

// Prove returns an ICS23 commitment proof for key at a committed version: an
// existence proof if the key was present, a non-existence proof otherwise.
func (cs *CommitStore) Prove(key []byte, version uint64) (*ics23.CommitmentProof, error) {
	cs.mtx.RLock()
	defer cs.mtx.RUnlock()

	if !cs.tree.VersionExists(int64(version)) {
		return nil, errors.Wrapf(ErrHeightNotAvailable, "store %s cannot prove at version %d", cs.name, version)
	}

	imt, err := cs.tree.GetImmutable(int64(version))
	if err != nil {
		return nil, errors.Wrapf(ErrHeightNotAvailable, "store %s has no version %d", cs.name, version)
	}

	if imt.Has(key) {
		proof, err := imt.GetMembershipProof(key)
		if err != nil {
			return nil, errors.Wrapf(ErrProofGeneration, "store %s, key %X at version %d: %v", cs.name, key, version, err)
		}
		return proof, nil
	}

	proof, err := imt.GetNonMembershipProof(key)
	if err != nil {
		return nil, errors.Wrapf(ErrProofGeneration, "store %s, absent key %X at version %d: %v", cs.name, key, version, err)
	}
	return proof, nil
}

// PruneVersions deletes all committed versions strictly below the given
// version. The latest version is never deleted; pruning past it is rejected
// before any mutation occurs.
func (cs *CommitStore) PruneVersions(below uint64) error {
	cs.mtx.Lock()
	defer cs.mtx.Unlock()

	latest := uint64(cs.tree.Version())
	if below > latest {
		return errors.Wrapf(ErrHeightNotAvailable, "cannot prune below %d: latest committed version is %d", below, latest)
	}

	versions := cs.tree.AvailableVersions()
	if len(versions) == 0 || uint64(versions[0]) >= below {
		return nil
	}

	if err := cs.tree.DeleteVersionsRange(int64(versions[0]), int64(below)); err != nil {
		return errors.Wrapf(err, "pruning store %s below version %d", cs.name, below)
	}
	return nil
}
