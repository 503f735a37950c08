// Package contract defines what the coin fixtures need from a chain toolchain:
// deploying a named contract type, attaching to an existing address, and
// reading or writing contract state with an explicit sender.
package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Contract is a deployed or attached contract instance.
//
// Method names are either bare ABI names ("transfer") or full signatures
// ("deposit(address,uint256)"). Backends resolve both.
type Contract interface {
	// Address returns the contract's on-chain address.
	Address() common.Address

	// Kind returns the contract type the instance was deployed or attached as.
	// It is empty for contracts attached without a known type.
	Kind() string

	// HasMethod reports whether the contract exposes the named method.
	HasMethod(name string) bool

	// Call executes a read-only method and returns its decoded outputs.
	Call(ctx context.Context, method string, args ...any) ([]any, error)

	// Transact executes a state-changing method signed by (or impersonating) from.
	Transact(ctx context.Context, from common.Address, method string, args ...any) error
}

// Deployer deploys contracts of a named type.
type Deployer interface {
	Deploy(ctx context.Context, kind string, from common.Address, args ...any) (Contract, error)
}

// Attacher binds to contracts that already exist at a known address.
type Attacher interface {
	Attach(ctx context.Context, address common.Address, kind string) (Contract, error)
}

// Backend is the full chain collaborator used by the fixtures.
type Backend interface {
	Deployer
	Attacher
}

// DeploymentError is returned when the toolchain fails to deploy a contract.
type DeploymentError struct {
	Kind string
	Err  error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deploy %s: %v", e.Kind, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// AttachmentError is returned when an address cannot be attached to, typically
// because no code lives there.
type AttachmentError struct {
	Address common.Address
	Err     error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attach %s: %v", e.Address.Hex(), e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}
