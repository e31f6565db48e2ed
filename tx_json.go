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
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sys"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

var _ log.JSONObject = (*Transaction)(nil)

// ParseJSON decodes a transaction from its JSON form and recomputes its ID.
func ParseJSON(buf []byte) (*Transaction, error) {
	var parser fastjson.Parser

	v, err := parser.ParseBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction json")
	}

	tx := new(Transaction)
	if err := tx.UnmarshalValue(v); err != nil {
		return nil, err
	}

	return tx, nil
}

func (tx *Transaction) UnmarshalValue(v *fastjson.Value) error {
	if v.Type() != fastjson.TypeObject {
		return errors.New("transaction must be a json object")
	}

	tx.Tag = sys.Tag(v.GetUint("tag"))
	tx.Timestamp = v.GetUint64("timestamp")
	tx.Amount = v.GetUint64("amount")
	tx.Fee = v.GetUint64("fee")

	if err := log.ValueHex(v, tx.SenderPublicKey[:], "sender_public_key"); err != nil {
		return err
	}

	tx.SenderAddress = AccountAddress(tx.SenderPublicKey)

	if raw := log.ValueString(v, "recipient_id"); raw != "" {
		if !common.IsHexAddress(raw) {
			return log.NewFieldError("recipient_id", errors.Errorf("invalid address %q", raw))
		}

		tx.RecipientID = common.HexToAddress(raw)
	}

	tx.Asset = Asset{Code: log.ValueString(v, "asset", "code")}

	if err := log.ValueHex(v, tx.Signature[:], "signature"); err != nil {
		return err
	}

	sigs := v.GetArray("signatures")
	if len(sigs) > math.MaxUint8 {
		return log.NewFieldError("signatures", errors.Errorf("at most %d signatures are allowed, got %d", math.MaxUint8, len(sigs)))
	}

	tx.Signatures = nil

	for i, sig := range sigs {
		var s edwards25519.Signature

		if err := log.ValueHex(sig, s[:]); err != nil {
			return errors.Wrapf(err, "invalid signature %d", i)
		}

		tx.Signatures = append(tx.Signatures, s)
	}

	tx.ID = tx.ComputeID()

	return nil
}

func (tx *Transaction) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	o := arena.NewObject()

	o.Set("id", arena.NewString(hex.EncodeToString(tx.ID[:])))
	o.Set("tag", arena.NewNumberInt(int(tx.Tag)))
	o.Set("timestamp", arena.NewNumberString(strconv.FormatUint(tx.Timestamp, 10)))
	o.Set("sender_public_key", arena.NewString(hex.EncodeToString(tx.SenderPublicKey[:])))
	o.Set("sender_address", arena.NewString(tx.SenderAddress.Hex()))
	o.Set("recipient_id", arena.NewString(tx.RecipientID.Hex()))
	o.Set("amount", arena.NewNumberString(strconv.FormatUint(tx.Amount, 10)))
	o.Set("fee", arena.NewNumberString(strconv.FormatUint(tx.Fee, 10)))

	asset := arena.NewObject()
	asset.Set("code", arena.NewString(tx.Asset.Code))
	o.Set("asset", asset)

	o.Set("signature", arena.NewString(hex.EncodeToString(tx.Signature[:])))

	sigs := arena.NewArray()
	for i, sig := range tx.Signatures {
		sigs.SetArrayItem(i, arena.NewString(hex.EncodeToString(sig[:])))
	}
	o.Set("signatures", sigs)

	return o.MarshalTo(nil), nil
}
