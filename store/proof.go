package store

import (
	"bytes"

	ics23 "github.com/confio/ics23/go"
	"github.com/pkg/errors"
)

// GetSpecs returns the proof specs for the harness's two-layer commitment
// scheme: a module-level iavl store whose root is committed under a prefix
// key in a top-level iavl store.
func GetSpecs() []*ics23.ProofSpec {
	return []*ics23.ProofSpec{ics23.IavlSpec, ics23.IavlSpec}
}

// MerklePath is the ordered list of keys addressing a value through nested
// stores, outermost key first (e.g. {"ibc", "clients/07-mock-0/clientState"}).
type MerklePath struct {
	KeyPath []string
}

// NewMerklePath creates a path from the given keys, outermost first.
func NewMerklePath(keyPath ...string) MerklePath {
	return MerklePath{KeyPath: keyPath}
}

// String implements fmt.Stringer.
func (mp MerklePath) String() string {
	path := ""
	for _, k := range mp.KeyPath {
		path += "/" + k
	}
	return path
}

// MerkleProof is a chained ICS23 proof: Proofs[0] is the innermost layer
// (the leaf store containing the value) and each subsequent layer proves the
// previous layer's root under the corresponding path key. It is verifiable
// with nothing but the outer root, independent of the store that produced it.
type MerkleProof struct {
	Proofs []*ics23.CommitmentProof
}

// ValidateBasic rejects structurally empty proofs.
func (p MerkleProof) ValidateBasic() error {
	if len(p.Proofs) == 0 {
		return errors.Wrap(ErrInvalidProof, "proof has no layers")
	}
	for _, layer := range p.Proofs {
		if layer == nil || layer.Proof == nil {
			return errors.Wrap(ErrInvalidProof, "proof layer is empty")
		}
	}
	return nil
}

// VerifyMembership verifies that value is committed under path relative to
// root. The number of specs, proof layers and path keys must match.
func (p MerkleProof) VerifyMembership(specs []*ics23.ProofSpec, root []byte, path MerklePath, value []byte) error {
	if err := p.validateVerificationArgs(specs, root, path); err != nil {
		return err
	}
	if len(value) == 0 {
		return errors.Wrap(ErrInvalidProof, "empty value in membership proof")
	}
	return p.verifyChainedMembership(specs, root, path, value, 0)
}

// VerifyNonMembership verifies that the innermost path key is absent from
// the store committed under path relative to root.
func (p MerkleProof) VerifyNonMembership(specs []*ics23.ProofSpec, root []byte, path MerklePath) error {
	if err := p.validateVerificationArgs(specs, root, path); err != nil {
		return err
	}

	switch p.Proofs[0].Proof.(type) {
	case *ics23.CommitmentProof_Nonexist:
		// verify the absence of the innermost key, then prove the subroot
		// upwards through the remaining layers
		subroot, err := p.Proofs[0].Calculate()
		if err != nil {
			return errors.Wrapf(ErrInvalidProof, "could not calculate root for proof layer 0: %v", err)
		}
		key := path.KeyPath[len(path.KeyPath)-1]
		if ok := ics23.VerifyNonMembership(specs[0], subroot, p.Proofs[0], []byte(key)); !ok {
			return errors.Wrapf(ErrInvalidProof, "could not verify absence of key %s", key)
		}
		return p.verifyChainedMembership(specs, root, path, subroot, 1)
	case *ics23.CommitmentProof_Exist:
		return errors.Wrap(ErrInvalidProof, "got existence proof in non-membership verification")
	default:
		return errors.Wrapf(ErrInvalidProof, "unsupported proof type %T", p.Proofs[0].Proof)
	}
}

// verifyChainedMembership verifies membership layer by layer starting at
// index, using each layer's calculated root as the next layer's value. The
// final subroot must equal the given root.
func (p MerkleProof) verifyChainedMembership(specs []*ics23.ProofSpec, root []byte, path MerklePath, value []byte, index int) error {
	var subroot []byte
	for i := index; i < len(p.Proofs); i++ {
		switch p.Proofs[i].Proof.(type) {
		case *ics23.CommitmentProof_Exist:
			var err error
			subroot, err = p.Proofs[i].Calculate()
			if err != nil {
				return errors.Wrapf(ErrInvalidProof, "could not calculate root for proof layer %d: %v", i, err)
			}

			// the key path is outermost-first while proofs are innermost-first
			key := path.KeyPath[len(path.KeyPath)-1-i]
			if ok := ics23.VerifyMembership(specs[i], subroot, p.Proofs[i], []byte(key), value); !ok {
				return errors.Wrapf(ErrInvalidProof, "could not verify membership of key %s at layer %d", key, i)
			}

			value = subroot
		case *ics23.CommitmentProof_Nonexist:
			return errors.Wrapf(ErrInvalidProof, "got non-existence proof at layer %d during membership verification", i)
		default:
			return errors.Wrapf(ErrInvalidProof, "unsupported proof type %T at layer %d", p.Proofs[i].Proof, i)
		}
	}

	if !bytes.Equal(root, subroot) {
		return errors.Wrapf(ErrInvalidProof, "proof root %X does not match committed root %X", subroot, root)
	}
	return nil
}

func (p MerkleProof) validateVerificationArgs(specs []*ics23.ProofSpec, root []byte, path MerklePath) error {
	if err := p.ValidateBasic(); err != nil {
		return err
	}
	if len(root) == 0 {
		return errors.Wrap(ErrInvalidProof, "empty commitment root")
	}
	if len(specs) != len(p.Proofs) {
		return errors.Wrapf(ErrInvalidProof, "have %d proof layers but %d specs", len(p.Proofs), len(specs))
	}
	if len(path.KeyPath) != len(p.Proofs) {
		return errors.Wrapf(ErrInvalidProof, "path %s has %d keys but proof has %d layers", path, len(path.KeyPath), len(p.Proofs))
	}
	return nil
}
