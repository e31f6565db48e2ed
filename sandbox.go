// Copyright (c) 2019 Perlin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package evmledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"
	"github.com/perlin-network/evmledger/conf"
	"github.com/pkg/errors"
)

// KeyAddressing selects how drained storage keys are reported.
type KeyAddressing uint8

const (
	// KeysRaw reports the 32-byte slot keys the contract wrote to.
	KeysRaw KeyAddressing = iota
	// KeysHashed reports the Keccak-256 of each slot key, as laid out in the
	// storage trie.
	KeysHashed
)

func (k KeyAddressing) String() string {
	if k == KeysHashed {
		return conf.StorageKeysHashed
	}

	return conf.StorageKeysRaw
}

// KeyAddressingFromConf maps the configured storage key mode.
func KeyAddressingFromConf() KeyAddressing {
	if conf.GetStorageKeys() == conf.StorageKeysHashed {
		return KeysHashed
	}

	return KeysRaw
}

// ExecutionResult is the outcome of running init code. It lives only for the
// duration of a single apply.
type ExecutionResult struct {
	Address     common.Address
	RuntimeCode []byte
	GasUsed     uint64

	Storage *StorageHandle
}

// Sandbox runs contract init code against a private, empty world state.
// It holds configuration only and is safe for concurrent use.
type Sandbox struct {
	chainConfig *params.ChainConfig
	vmConfig    vm.Config
	keys        KeyAddressing
}

type SandboxOption func(*Sandbox)

func WithChainConfig(cfg *params.ChainConfig) SandboxOption {
	return func(s *Sandbox) {
		s.chainConfig = cfg
	}
}

func WithVMConfig(cfg vm.Config) SandboxOption {
	return func(s *Sandbox) {
		s.vmConfig = cfg
	}
}

func WithKeyAddressing(keys KeyAddressing) SandboxOption {
	return func(s *Sandbox) {
		s.keys = keys
	}
}

func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		chainConfig: DefaultChainConfig(),
		keys:        KeysRaw,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// DefaultChainConfig enables every fork up to Shanghai from genesis.
func DefaultChainConfig() *params.ChainConfig {
	zero := uint64(0)

	return &params.ChainConfig{
		ChainID:                       big.NewInt(1337),
		HomesteadBlock:                new(big.Int),
		EIP150Block:                   new(big.Int),
		EIP155Block:                   new(big.Int),
		EIP158Block:                   new(big.Int),
		ByzantiumBlock:                new(big.Int),
		ConstantinopleBlock:           new(big.Int),
		PetersburgBlock:               new(big.Int),
		IstanbulBlock:                 new(big.Int),
		MuirGlacierBlock:              new(big.Int),
		BerlinBlock:                   new(big.Int),
		LondonBlock:                   new(big.Int),
		ArrowGlacierBlock:             new(big.Int),
		GrayGlacierBlock:              new(big.Int),
		MergeNetsplitBlock:            new(big.Int),
		ShanghaiTime:                  &zero,
		TerminalTotalDifficulty:       new(big.Int),
		TerminalTotalDifficultyPassed: true,
	}
}

func (s *Sandbox) KeyAddressing() KeyAddressing {
	return s.keys
}

// Execute runs code as the init code of a contract at address, with at most
// gasLimit gas. Every call gets a fresh in-memory state; nothing is shared
// between calls and no ledger state is touched.
func (s *Sandbox) Execute(code []byte, gasLimit uint64, address common.Address, block *Block) (*ExecutionResult, error) {
	diskdb := rawdb.NewMemoryDatabase()
	nodeDB := triedb.NewDatabase(diskdb, &triedb.Config{Preimages: s.keys == KeysRaw})

	statedb, err := state.New(types.EmptyRootHash, state.NewDatabaseWithNodeDB(diskdb, nodeDB), nil)
	if err != nil {
		return nil, &ExecutionError{Address: address, Err: ErrExecutionFault, VMErr: err}
	}

	var (
		number    uint64
		timestamp uint64
	)

	if block != nil {
		number, timestamp = block.Index, block.Timestamp
	}

	blockCtx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash: func(n uint64) common.Hash {
			return crypto.Keccak256Hash(new(big.Int).SetUint64(n).Bytes())
		},
		GasLimit:    gasLimit,
		BlockNumber: new(big.Int).SetUint64(number),
		Time:        timestamp,
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		Random:      &common.Hash{},
	}

	var origin common.Address

	evm := vm.NewEVM(blockCtx, vm.TxContext{Origin: origin, GasPrice: new(big.Int)}, statedb, s.chainConfig, s.vmConfig)

	rules := s.chainConfig.Rules(blockCtx.BlockNumber, true, timestamp)
	statedb.Prepare(rules, origin, blockCtx.Coinbase, &address, vm.ActivePrecompiles(rules), nil)

	statedb.CreateAccount(address)
	statedb.SetNonce(address, 1)
	statedb.SetCode(address, code)

	ret, leftOver, err := evm.Call(vm.AccountRef(origin), address, nil, gasLimit, new(uint256.Int))
	if err != nil {
		return nil, executionError(address, gasLimit-leftOver, err)
	}

	switch {
	case len(ret) > params.MaxCodeSize:
		return nil, executionError(address, gasLimit-leftOver, vm.ErrMaxCodeSizeExceeded)
	case len(ret) > 0 && ret[0] == 0xEF:
		return nil, executionError(address, gasLimit-leftOver, vm.ErrInvalidCode)
	}

	deposit := uint64(len(ret)) * params.CreateDataGas
	if deposit > leftOver {
		return nil, executionError(address, gasLimit, vm.ErrCodeStoreOutOfGas)
	}

	leftOver -= deposit

	statedb.SetCode(address, ret)

	root, err := statedb.Commit(number, true)
	if err != nil {
		return nil, &ExecutionError{Address: address, GasUsed: gasLimit - leftOver, Err: ErrStorageRead, VMErr: err}
	}

	return &ExecutionResult{
		Address:     address,
		RuntimeCode: common.CopyBytes(ret),
		GasUsed:     gasLimit - leftOver,
		Storage: &StorageHandle{
			nodeDB:  nodeDB,
			root:    root,
			address: address,
			keys:    s.keys,
		},
	}, nil
}

func executionError(address common.Address, gasUsed uint64, err error) *ExecutionError {
	cause := ErrExecutionFault

	if errors.Is(err, vm.ErrOutOfGas) || errors.Is(err, vm.ErrCodeStoreOutOfGas) {
		cause = ErrOutOfGas
	}

	return &ExecutionError{Address: address, GasUsed: gasUsed, Err: cause, VMErr: err}
}
