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

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/api"
	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/store"
	"github.com/perlin-network/evmledger/sys"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/perlin-network/noise/skademlia"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"
)

const (
	keysC1 = 1
	keysC2 = 1
)

func main() {
	log.SetWriter(log.LoggerStdout, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	app := cli.NewApp()

	app.Name = "evmledger"
	app.Author = "Perlin Network"
	app.Email = "support@perlin.net"
	app.Version = sys.Version
	app.Usage = "deploy EVM contracts onto a single-node ledger"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "db",
			Value: "",
			Usage: "directory of the LevelDB account store `DIR`; in-memory when empty.",
		},
		cli.StringFlag{
			Name:  "sqlite",
			Value: "",
			Usage: "SQLite data source for deployed code `DSN`; in-memory when empty.",
		},
		cli.StringFlag{
			Name:  "wallet, w",
			Value: "",
			Usage: "path to a file containing a hex-encoded private key `PATH`.",
		},
		cli.StringFlag{
			Name:  "loglevel, l",
			Value: "info",
			Usage: "minimum log level `LEVEL` (debug, info, warn, error).",
		},
		cli.StringFlag{
			Name:  "storage.keys",
			Value: conf.GetStorageKeys(),
			Usage: "how contract storage keys are addressed `MODE` (raw or hashed).",
		},
		cli.Uint64Flag{
			Name:  "gas",
			Value: conf.GetMaxContractGas(),
			Usage: "gas limit for a single deployment `GAS`.",
		},
		cli.Uint64Flag{
			Name:  "fee",
			Value: conf.GetContractFee(),
			Usage: "fee charged per deployment `FEE`.",
		},
	}

	app.Before = func(c *cli.Context) error {
		log.SetLevel(c.String("loglevel"))

		conf.Update(
			conf.WithStorageKeys(c.String("storage.keys")),
			conf.WithMaxContractGas(c.Uint64("gas")),
			conf.WithContractFee(c.Uint64("fee")),
		)

		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:      "deploy",
			Usage:     "deploy init code and apply it in a new block",
			ArgsUsage: "<code hex>",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Usage: "read the init code from `PATH` instead of the first argument.",
				},
				cli.BoolFlag{
					Name:  "pending",
					Usage: "leave the deployment pending instead of applying a block.",
				},
			},
			Action: deploy,
		},
		{
			Name:      "account",
			Usage:     "show an account",
			ArgsUsage: "<address>",
			Action:    account,
		},
		{
			Name:   "revert",
			Usage:  "revert the latest block",
			Action: revert,
		},
		{
			Name:  "serve",
			Usage: "serve the HTTP API",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "port, p",
					Value: 9000,
					Usage: "port to serve the HTTP API on `PORT`.",
				},
				cli.StringFlag{
					Name:  "secret",
					Value: conf.GetSecret(),
					Usage: "bearer token guarding block and discard routes `SECRET`.",
				},
				cli.DurationFlag{
					Name:  "block.interval",
					Value: 0,
					Usage: "apply pending deployments every `INTERVAL`; disabled when zero.",
				},
				cli.StringFlag{
					Name:  "api.host",
					Usage: "host for which to request TLS certificates `HOST`.",
				},
				cli.StringFlag{
					Name:  "api.certcache",
					Usage: "directory to cache TLS certificates in `DIR`.",
				},
			},
			Action: serve,
		},
	}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("Version: %s\n", c.App.Version)
		fmt.Printf("Go Version: %s\n", sys.GoVersion)
		fmt.Printf("Git Commit: %s\n", sys.GitCommit)
		fmt.Printf("OS/Arch: %s\n", sys.OSArch)
		fmt.Printf("Built: %s\n", c.App.Compiled.Format(time.ANSIC))
	}

	if err := app.Run(os.Args); err != nil {
		logger := log.Node()
		logger.Fatal().Err(err).Msg("Failed to run command.")
	}
}

func openLedger(c *cli.Context) (*evmledger.Ledger, func(), error) {
	kv, err := store.Open(c.GlobalString("db"))
	if err != nil {
		return nil, nil, err
	}

	rows, err := sqlstore.Open(c.GlobalString("sqlite"))
	if err != nil {
		_ = kv.Close()
		return nil, nil, errors.Wrap(err, "failed to open sqlite")
	}

	ledger, err := evmledger.NewLedger(kv, rows)
	if err != nil {
		_ = rows.Close()
		_ = kv.Close()
		return nil, nil, err
	}

	closer := func() {
		ledger.Close()
		_ = rows.Close()
		_ = kv.Close()
	}

	return ledger, closer, nil
}

func loadKeys(path string) (*skademlia.Keypair, error) {
	logger := log.Node()

	if path == "" {
		keys, err := skademlia.NewKeys(keysC1, keysC2)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate keys")
		}

		logger.Warn().
			Hex("public_key", publicKeyBytes(keys)).
			Msg("No wallet given. Generated a throwaway wallet.")

		return keys, nil
	}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read wallet %q", path)
	}

	var privateKey edwards25519.PrivateKey

	n, err := hex.Decode(privateKey[:], []byte(strings.TrimSpace(string(raw))))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode wallet %q", path)
	}

	if n != edwards25519.SizePrivateKey {
		return nil, errors.Errorf("wallet is not of the right length (%d not %d)", n, edwards25519.SizePrivateKey)
	}

	keys, err := skademlia.LoadKeys(privateKey, keysC1, keysC2)
	if err != nil {
		return nil, errors.Wrapf(err, "the wallet in %q is invalid", path)
	}

	logger.Info().
		Hex("public_key", publicKeyBytes(keys)).
		Msg("Loaded wallet.")

	return keys, nil
}

func publicKeyBytes(keys *skademlia.Keypair) []byte {
	publicKey := keys.PublicKey()
	return publicKey[:]
}

func readCode(c *cli.Context) (string, error) {
	code := c.Args().First()

	if path := c.String("file"); path != "" {
		raw, err := ioutil.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read code from %q", path)
		}

		code = string(raw)
	}

	code = strings.TrimPrefix(strings.TrimSpace(code), "0x")
	if code == "" {
		return "", errors.New("no init code given")
	}

	return code, nil
}

func deploy(c *cli.Context) error {
	code, err := readCode(c)
	if err != nil {
		return err
	}

	keys, err := loadKeys(c.GlobalString("wallet"))
	if err != nil {
		return err
	}

	ledger, closer, err := openLedger(c)
	if err != nil {
		return err
	}
	defer closer()

	now := uint64(time.Now().Unix())

	tx := ledger.Contracts().Create(evmledger.CreateData{
		Code:            code,
		SenderPublicKey: keys.PublicKey(),
		Timestamp:       now,
	}, new(evmledger.Transaction))
	tx.Sign(keys)

	if err := ledger.Pipeline().Admit(tx); err != nil {
		return errors.Wrap(err, "deployment was rejected")
	}

	fmt.Printf("Transaction: %x\n", tx.ID)
	fmt.Printf("Contract: %s\n", tx.RecipientID.Hex())

	if c.Bool("pending") {
		return nil
	}

	block := ledger.Pipeline().ProposeBlock(now, 1)
	if err := ledger.Pipeline().ApplyBlock(context.Background(), block); err != nil {
		return errors.Wrap(err, "failed to apply deployment")
	}

	fmt.Printf("Block: %d (%x)\n", block.Index, block.ID)

	return nil
}

func account(c *cli.Context) error {
	raw := c.Args().First()
	if !common.IsHexAddress(raw) {
		return errors.Errorf("%q is not an address", raw)
	}

	ledger, closer, err := openLedger(c)
	if err != nil {
		return err
	}
	defer closer()

	acc, err := ledger.Accounts().GetAccount(common.HexToAddress(raw))
	if err != nil {
		return err
	}

	fmt.Printf("Address: %s\n", acc.Address.Hex())
	fmt.Printf("Public Key: %x\n", acc.PublicKey)
	fmt.Printf("Block: %x\n", acc.BlockID)
	fmt.Printf("Code: %x\n", acc.Code)

	for _, entry := range acc.Storage {
		fmt.Printf("Storage %x: %x\n", entry.Key, entry.Value)
	}

	return nil
}

func revert(c *cli.Context) error {
	ledger, closer, err := openLedger(c)
	if err != nil {
		return err
	}
	defer closer()

	block, err := ledger.Pipeline().RevertLatest(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Reverted block %d (%x) with %d transaction(s).\n", block.Index, block.ID, len(block.Transactions))

	return nil
}

func serve(c *cli.Context) error {
	conf.Update(conf.WithSecret(c.String("secret")))

	keys, err := loadKeys(c.GlobalString("wallet"))
	if err != nil {
		return err
	}

	ledger, closer, err := openLedger(c)
	if err != nil {
		return err
	}
	defer closer()

	gateway := api.New(&api.Config{
		Port:          c.Int("port"),
		Ledger:        ledger,
		Keys:          keys,
		EnableTimeout: true,
		HostPolicy:    c.String("api.host"),
		CertCacheDir:  c.String("api.certcache"),
	})

	if err := gateway.Start(); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)

	if interval := c.Duration("block.interval"); interval > 0 {
		go applyPending(ledger, interval, stop)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	logger := log.Node()

	sig := <-signals
	logger.Info().Str("signal", sig.String()).Msg("Shutting down.")

	gateway.Shutdown()

	return nil
}

func applyPending(ledger *evmledger.Ledger, interval time.Duration, stop <-chan struct{}) {
	logger := log.Pipeline("block")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			pipeline := ledger.Pipeline()
			if len(pipeline.Pending()) == 0 {
				continue
			}

			block := pipeline.ProposeBlock(uint64(now.Unix()), conf.GetPendingTxLimit())
			if err := pipeline.ApplyBlock(context.Background(), block); err != nil {
				logger.Error().Err(err).Uint64("index", block.Index).Msg("Failed to apply block.")
			}
		}
	}
}
