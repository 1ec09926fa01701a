package store_test

import (
	"fmt"
	"testing"

	ics23 "github.com/confio/ics23/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/interop-labs/ibcsim/store"
)

func newStore(t *testing.T, name string) *store.CommitStore {
	t.Helper()
	cs, err := store.NewCommitStore(dbm.NewMemDB(), name)
	require.NoError(t, err)
	return cs
}

func TestCommitAdvancesVersionByOne(t *testing.T) {
	cs := newStore(t, "test")

	for i := 1; i <= 5; i++ {
		cs.Set([]byte(fmt.Sprintf("key/%d", i)), []byte("value"))
		id, err := cs.Commit()
		require.NoError(t, err)
		require.Equal(t, uint64(i), id.Version)
		require.NotEmpty(t, id.Hash)
	}
	require.Equal(t, uint64(5), cs.LatestVersion())
}

func TestCommitDeterminism(t *testing.T) {
	build := func() [][]byte {
		cs := newStore(t, "test")
		var roots [][]byte
		for i := 0; i < 3; i++ {
			cs.Set([]byte(fmt.Sprintf("key/%d", i)), []byte(fmt.Sprintf("value/%d", i)))
			id, err := cs.Commit()
			require.NoError(t, err)
			roots = append(roots, id.Hash)
		}
		return roots
	}

	require.Equal(t, build(), build())
}

func TestCommittedVersionsAreImmutable(t *testing.T) {
	cs := newStore(t, "test")

	cs.Set([]byte("key"), []byte("one"))
	id1, err := cs.Commit()
	require.NoError(t, err)

	cs.Set([]byte("key"), []byte("two"))
	_, err = cs.Commit()
	require.NoError(t, err)

	value, err := cs.GetAtVersion([]byte("key"), id1.Version)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), value)

	root, err := cs.RootAtVersion(id1.Version)
	require.NoError(t, err)
	require.Equal(t, id1.Hash, root)
}

func TestGetAtUnknownVersion(t *testing.T) {
	cs := newStore(t, "test")
	cs.Set([]byte("key"), []byte("value"))
	_, err := cs.Commit()
	require.NoError(t, err)

	_, err = cs.GetAtVersion([]byte("key"), 10)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))
}

// commitLayered commits a value into a module store and the module store's
// root into a top-level store, mirroring how a chain commits state.
func commitLayered(t *testing.T, key, value []byte) (topRoot []byte, proof store.MerkleProof) {
	t.Helper()
	db := dbm.NewMemDB()

	module, err := store.NewCommitStore(db, "ibc")
	require.NoError(t, err)
	top, err := store.NewCommitStore(db, "top")
	require.NoError(t, err)

	if value != nil {
		module.Set(key, value)
	}
	module.Set([]byte("other"), []byte("state"))
	moduleID, err := module.Commit()
	require.NoError(t, err)

	top.Set([]byte("ibc"), moduleID.Hash)
	topID, err := top.Commit()
	require.NoError(t, err)

	moduleProof, err := module.Prove(key, moduleID.Version)
	require.NoError(t, err)
	topProof, err := top.Prove([]byte("ibc"), topID.Version)
	require.NoError(t, err)

	return topID.Hash, store.MerkleProof{Proofs: []*ics23.CommitmentProof{moduleProof, topProof}}
}

func TestTwoLayerMembershipProof(t *testing.T) {
	key, value := []byte("clients/07-tendermint-0/clientState"), []byte("state")
	topRoot, proof := commitLayered(t, key, value)

	path := store.NewMerklePath("ibc", string(key))
	require.NoError(t, proof.VerifyMembership(store.GetSpecs(), topRoot, path, value))

	// wrong value
	err := proof.VerifyMembership(store.GetSpecs(), topRoot, path, []byte("tampered"))
	require.True(t, errors.Is(err, store.ErrInvalidProof))

	// wrong root
	err = proof.VerifyMembership(store.GetSpecs(), []byte("not the root"), path, value)
	require.True(t, errors.Is(err, store.ErrInvalidProof))
}

func TestTwoLayerNonMembershipProof(t *testing.T) {
	key := []byte("clients/07-tendermint-9/clientState")
	topRoot, proof := commitLayered(t, key, nil)

	path := store.NewMerklePath("ibc", string(key))
	require.NoError(t, proof.VerifyNonMembership(store.GetSpecs(), topRoot, path))

	// a non-membership proof is not a membership proof
	err := proof.VerifyMembership(store.GetSpecs(), topRoot, path, []byte("anything"))
	require.True(t, errors.Is(err, store.ErrInvalidProof))
}

func TestVerificationArgValidation(t *testing.T) {
	key, value := []byte("key"), []byte("value")
	topRoot, proof := commitLayered(t, key, value)

	// spec count mismatch
	err := proof.VerifyMembership([]*ics23.ProofSpec{ics23.IavlSpec}, topRoot, store.NewMerklePath("ibc", string(key)), value)
	require.True(t, errors.Is(err, store.ErrInvalidProof))

	// path length mismatch
	err = proof.VerifyMembership(store.GetSpecs(), topRoot, store.NewMerklePath(string(key)), value)
	require.True(t, errors.Is(err, store.ErrInvalidProof))

	// empty proof
	err = store.MerkleProof{}.VerifyMembership(store.GetSpecs(), topRoot, store.NewMerklePath("ibc", string(key)), value)
	require.True(t, errors.Is(err, store.ErrInvalidProof))
}

func TestProveUnknownVersion(t *testing.T) {
	cs := newStore(t, "test")
	cs.Set([]byte("key"), []byte("value"))
	_, err := cs.Commit()
	require.NoError(t, err)

	_, err = cs.Prove([]byte("key"), 5)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))
}

func TestPruneVersions(t *testing.T) {
	cs := newStore(t, "test")
	for i := 0; i < 5; i++ {
		cs.Set([]byte("key"), []byte(fmt.Sprintf("value/%d", i)))
		_, err := cs.Commit()
		require.NoError(t, err)
	}

	require.NoError(t, cs.PruneVersions(4))

	_, err := cs.GetAtVersion([]byte("key"), 2)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	value, err := cs.GetAtVersion([]byte("key"), 4)
	require.NoError(t, err)
	require.Equal(t, []byte("value/3"), value)

	// pruning past the latest version is rejected before any mutation
	err = cs.PruneVersions(9)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	value, err = cs.GetAtVersion([]byte("key"), 5)
	require.NoError(t, err)
	require.Equal(t, []byte("value/4"), value)
}
