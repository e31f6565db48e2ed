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
	"encoding/hex"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/sys"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/pkg/errors"
)

const (
	codeTable = "code"

	fieldCode          = "code"
	fieldTransactionID = "transactionId"
)

var _ TransactionType = (*ContractTransactionType)(nil)

// ContractTransactionType deploys EVM init code to a fresh account whose
// address is derived from the deploying transaction.
type ContractTransactionType struct {
	accounts AccountLedger
	journal  *Journal

	sandbox *Sandbox
	deriver *AddressDeriver
	metrics *Metrics

	// Addresses claimed by unconfirmed deployments.
	reservedLock sync.Mutex
	reserved     map[common.Address]TransactionID
}

type ContractOption func(*ContractTransactionType)

func WithSandbox(sandbox *Sandbox) ContractOption {
	return func(c *ContractTransactionType) {
		c.sandbox = sandbox
	}
}

func WithAddressDeriver(deriver *AddressDeriver) ContractOption {
	return func(c *ContractTransactionType) {
		c.deriver = deriver
	}
}

func WithMetrics(metrics *Metrics) ContractOption {
	return func(c *ContractTransactionType) {
		c.metrics = metrics
	}
}

func NewContractTransactionType(accounts AccountLedger, journal *Journal, opts ...ContractOption) *ContractTransactionType {
	c := &ContractTransactionType{
		accounts: accounts,
		journal:  journal,
		reserved: make(map[common.Address]TransactionID),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.sandbox == nil {
		c.sandbox = NewSandbox(WithKeyAddressing(KeyAddressingFromConf()))
	}

	if c.deriver == nil {
		c.deriver = NewAddressDeriver()
	}

	return c
}

// ContractAddress is the address the transaction deploys to.
func (c *ContractTransactionType) ContractAddress(tx *Transaction) common.Address {
	return c.deriver.ContractAddress(tx)
}

// Create stamps the deployment fields onto tx. It does not validate.
func (c *ContractTransactionType) Create(data CreateData, tx *Transaction) *Transaction {
	tx.Tag = sys.TagContract
	tx.Timestamp = data.Timestamp
	tx.Amount = 0
	tx.Asset = Asset{Code: data.Code}

	if data.SenderPublicKey != (edwards25519.PublicKey{}) {
		tx.SenderPublicKey = data.SenderPublicKey
	}

	tx.SenderAddress = AccountAddress(tx.SenderPublicKey)
	tx.Fee = c.CalculateFee(tx)
	tx.RecipientID = c.deriver.ContractAddress(tx)

	return tx
}

func (c *ContractTransactionType) CalculateFee(*Transaction) uint64 {
	return conf.GetContractFee()
}

func (c *ContractTransactionType) Verify(tx *Transaction, sender *Account) error {
	if tx.Tag != sys.TagContract {
		return verificationError("unexpected tag " + tx.Tag.String())
	}

	if err := validateAsset(&tx.Asset); err != nil {
		return err
	}

	if size := hex.DecodedLen(len(tx.Asset.Code)); size > params.MaxInitCodeSize {
		return &VerificationError{
			Reason: "init code too large",
			Err:    errors.Errorf("%d bytes exceeds the limit of %d", size, params.MaxInitCodeSize),
		}
	}

	if tx.Amount != 0 {
		return verificationError("contract deployments must not transfer an amount")
	}

	if fee := c.CalculateFee(tx); tx.Fee != fee {
		return &VerificationError{Reason: "invalid fee", Err: errors.Errorf("expected %d, got %d", fee, tx.Fee)}
	}

	if sender == nil {
		return verificationError("unknown sender")
	}

	if sender.PublicKey != tx.SenderPublicKey || sender.Address != tx.SenderAddress {
		return verificationError("sender does not match transaction")
	}

	if tx.RecipientID == (common.Address{}) {
		return verificationError("missing recipient")
	}

	if expected := c.deriver.ContractAddress(tx); tx.RecipientID != expected {
		return &VerificationError{
			Reason: "invalid contract address",
			Err:    errors.Errorf("expected %s, got %s", expected.Hex(), tx.RecipientID.Hex()),
		}
	}

	if !tx.VerifySignature() {
		return verificationError("invalid sender signature")
	}

	return verifyCosignatures(tx, sender)
}

// verifyCosignatures requires every co-signature to come from a distinct
// member of the sender's multisignature group.
func verifyCosignatures(tx *Transaction, sender *Account) error {
	if !sender.IsMultisig() {
		if len(tx.Signatures) > 0 {
			return verificationError("sender has no multisignature group")
		}

		return nil
	}

	if len(tx.Signatures) > len(sender.Multisignatures) {
		return verificationError("more co-signatures than multisignature keys")
	}

	body := tx.Body()
	used := make([]bool, len(sender.Multisignatures))

	for i, sig := range tx.Signatures {
		matched := false

		for j, key := range sender.Multisignatures {
			if used[j] || !edwards25519.Verify(key, body, sig) {
				continue
			}

			used[j], matched = true, true
			break
		}

		if !matched {
			return &VerificationError{
				Reason: "invalid co-signature",
				Err:    errors.Errorf("signature %d matches no unused multisignature key", i),
			}
		}
	}

	return nil
}

func (c *ContractTransactionType) Process(tx *Transaction, _ *Account) (*Transaction, error) {
	return tx, nil
}

// GetBytes returns the asset as transmitted, or nil when no code is set.
func (c *ContractTransactionType) GetBytes(tx *Transaction) []byte {
	return tx.Asset.Bytes()
}

// Apply executes the init code in a fresh sandbox and writes the resulting
// contract account to the ledger. A failure leaves the ledger untouched.
func (c *ContractTransactionType) Apply(tx *Transaction, block *Block, _ *Account) error {
	start := time.Now()
	logger := log.Contracts("apply")

	code, err := hex.DecodeString(tx.Asset.Code)
	if err != nil {
		return &SchemaValidationError{Errors: []string{"object didn't pass validation for format hex: Code"}}
	}

	address := c.deriver.ContractAddress(tx)

	result, err := c.sandbox.Execute(code, conf.GetMaxContractGas(), address, block)
	if err != nil {
		c.metrics.markDeployFailed()

		logger.Warn().Err(err).
			Hex("tx_id", tx.ID[:]).
			Str("address", address.Hex()).
			Msg("Contract init code failed to execute.")

		return err
	}

	entries, err := result.Storage.Drain()
	if err != nil {
		c.metrics.markDeployFailed()

		logger.Warn().Err(err).
			Hex("tx_id", tx.ID[:]).
			Str("address", address.Hex()).
			Msg("Failed to read contract storage.")

		return err
	}

	prior, err := c.accounts.GetAccount(address)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return &PersistenceError{Op: "read prior account state", Err: err}
		}

		prior = nil
	}

	if err := c.journal.Record(tx.ID, prior); err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			c.metrics.markDeployFailed()
			return err
		}

		return &PersistenceError{Op: "journal prior account state", Err: err}
	}

	var blockID BlockID
	if block != nil {
		blockID = block.ID
	}

	account, err := c.accounts.SetAccountAndGet(AccountRecord{
		Address: address,
		BlockID: blockID,
		Code:    result.RuntimeCode,
		Storage: entries,
	})
	if err != nil {
		_ = c.journal.Drop(tx.ID)
		c.metrics.markDeployFailed()

		return &PersistenceError{Op: "store contract account", Err: err}
	}

	c.metrics.markDeployed(start, result.GasUsed)

	logger.Info().
		Hex("tx_id", tx.ID[:]).
		Str("address", account.Address.Hex()).
		Uint64("gas_used", result.GasUsed).
		Int("code_len", len(account.Code)).
		Int("num_storage_entries", len(account.Storage)).
		Bool("replaced", prior != nil).
		Msg("Deployed contract.")

	return nil
}

// Undo restores the account state Apply replaced. An account that did not
// exist before is removed.
func (c *ContractTransactionType) Undo(tx *Transaction, _ *Block, _ *Account) error {
	prior, existed, err := c.journal.Load(tx.ID)
	if err != nil {
		return err
	}

	address := c.deriver.ContractAddress(tx)

	if existed {
		err = c.accounts.PutAccount(prior)
	} else {
		err = c.accounts.RemoveAccount(address)
	}

	if err != nil {
		return &PersistenceError{Op: "restore account " + address.Hex(), Err: err}
	}

	if err := c.journal.Drop(tx.ID); err != nil {
		return &PersistenceError{Op: "drop journal entry", Err: err}
	}

	logger := log.Contracts("undo")
	logger.Info().
		Hex("tx_id", tx.ID[:]).
		Str("address", address.Hex()).
		Bool("restored", existed).
		Msg("Reverted contract deployment.")

	return nil
}

// ApplyUnconfirmed claims the contract address for tx. Deploying over an
// existing contract or an address claimed by another pending deployment is
// rejected.
func (c *ContractTransactionType) ApplyUnconfirmed(tx *Transaction, _ *Account) error {
	address := c.deriver.ContractAddress(tx)

	account, err := c.accounts.GetAccount(address)
	switch {
	case err == nil && account.IsContract():
		return errors.Wrapf(ErrContractExists, "%s", address.Hex())
	case err != nil && !errors.Is(err, ErrAccountNotFound):
		return &PersistenceError{Op: "read account " + address.Hex(), Err: err}
	}

	c.reservedLock.Lock()
	defer c.reservedLock.Unlock()

	if owner, exists := c.reserved[address]; exists && owner != tx.ID {
		return errors.Wrapf(ErrContractExists, "%s is claimed by pending transaction %x", address.Hex(), owner)
	}

	c.reserved[address] = tx.ID

	return nil
}

// UndoUnconfirmed releases the address claimed by tx, if it holds it.
func (c *ContractTransactionType) UndoUnconfirmed(tx *Transaction, _ *Account) error {
	address := c.deriver.ContractAddress(tx)

	c.reservedLock.Lock()
	defer c.reservedLock.Unlock()

	if owner, exists := c.reserved[address]; exists && owner == tx.ID {
		delete(c.reserved, address)
	}

	return nil
}

func (c *ContractTransactionType) ObjectNormalize(tx *Transaction) (*Transaction, error) {
	if err := validateAsset(&tx.Asset); err != nil {
		return nil, err
	}

	return tx, nil
}

func (c *ContractTransactionType) DBSave(tx *Transaction) sqlstore.Row {
	return sqlstore.Row{
		Table:  codeTable,
		Fields: []string{fieldCode, fieldTransactionID},
		Values: map[string]interface{}{
			fieldCode:          tx.Asset.Code,
			fieldTransactionID: hex.EncodeToString(tx.ID[:]),
		},
	}
}

// DBRead rebuilds the asset from a persisted row, or returns nil if the row
// carries no code.
func (c *ContractTransactionType) DBRead(raw map[string]interface{}) *Asset {
	switch code := raw[fieldCode].(type) {
	case string:
		return &Asset{Code: code}
	case []byte:
		return &Asset{Code: string(code)}
	default:
		return nil
	}
}

// Ready reports whether tx carries enough co-signatures for its sender.
func (c *ContractTransactionType) Ready(tx *Transaction, sender *Account) bool {
	if sender == nil || !sender.IsMultisig() {
		return true
	}

	return len(tx.Signatures) >= int(sender.MultiMin)
}

// Reserved reports the pending transaction holding address, if any.
func (c *ContractTransactionType) Reserved(address common.Address) (TransactionID, bool) {
	c.reservedLock.Lock()
	defer c.reservedLock.Unlock()

	id, exists := c.reserved[address]
	return id, exists
}
