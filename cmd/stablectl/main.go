package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"stablechain/cmd/internal/passphrase"
	"stablechain/config"
	"stablechain/crypto"
	"stablechain/native/stablecoin"
)

const (
	defaultConfig  = "./config.toml"
	defaultPassEnv = "STABLECHAIN_KEYSTORE_PASS"
)

// command is one stablectl subcommand. fs has already been parsed when run is
// invoked.
type command struct {
	name  string
	usage string
	flags func(fs *flag.FlagSet) func(ctx context.Context, env *cliEnv) error
}

// cliEnv carries the state shared by every subcommand.
type cliEnv struct {
	cfg      *config.Config
	format   string
	keystore string
	pass     *passphrase.Source
	stdout   io.Writer
	stderr   io.Writer
	node     *node
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func commands() []command {
	return []command{
		{name: "init", usage: "create the protocol config owned by the keystore account", flags: initCmd},
		{name: "update", usage: "change protocol parameters or pauses", flags: updateCmd},
		{name: "config", usage: "print the protocol config", flags: configCmd},
		{name: "deposit", usage: "lock collateral and mint stable tokens", flags: depositCmd},
		{name: "redeem", usage: "burn stable tokens and release collateral", flags: redeemCmd},
		{name: "liquidate", usage: "repay debt of an unhealthy vault for its collateral", flags: liquidateCmd},
		{name: "vault", usage: "show a vault's valuation at the current price", flags: vaultCmd},
		{name: "balance", usage: "show an account balance", flags: balanceCmd},
		{name: "faucet", usage: "credit collateral on development networks", flags: faucetCmd},
		{name: "sign-quote", usage: "sign a price quote and write it to the quote file", flags: signQuoteCmd},
		{name: "serve", usage: "run the read-only status server", flags: serveCmd},
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: stablectl <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.usage)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var cmd *command
	cmds := commands()
	for i := range cmds {
		if cmds[i].name == args[0] {
			cmd = &cmds[i]
			break
		}
	}
	if cmd == nil {
		if args[0] != "help" && args[0] != "-h" && args[0] != "--help" {
			fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		}
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfig, "path to the stablechain config file")
	format := fs.String("output", "json", "output format: json or yaml")
	keystorePath := fs.String("keystore", "", "keystore file signing the request (defaults to KeystorePath)")
	passEnv := fs.String("pass-env", defaultPassEnv, "environment variable holding the keystore passphrase")
	exec := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(stderr, "Error: unsupported output format %q\n", *format)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	env := &cliEnv{
		cfg:      cfg,
		format:   *format,
		keystore: strings.TrimSpace(*keystorePath),
		pass:     passphrase.NewSource(*passEnv, ""),
		stdout:   stdout,
		stderr:   stderr,
	}
	if env.keystore == "" {
		env.keystore = cfg.KeystorePath
	}
	defer func() {
		if env.node != nil {
			env.node.Close()
		}
	}()

	if err := exec(ctx, env); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func reportError(w io.Writer, err error) {
	if code := stablecoin.CodeOf(err); code != "" {
		fmt.Fprintf(w, "Error [%s]: %v\n", code, err)
		if stablecoin.Retryable(err) {
			fmt.Fprintln(w, "The request may succeed with a fresher price quote.")
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// open lazily starts the node so commands that never touch state skip it.
func (e *cliEnv) open(ctx context.Context) (*node, error) {
	if e.node != nil {
		return e.node, nil
	}
	n, err := openNode(ctx, e.cfg, e.stderr, time.Now)
	if err != nil {
		return nil, err
	}
	e.node = n
	return n, nil
}

// signer decrypts the keystore and returns its key.
func (e *cliEnv) signer() (*crypto.PrivateKey, error) {
	if e.keystore == "" {
		return nil, errors.New("no keystore configured; pass -keystore")
	}
	pass, err := e.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(e.keystore, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock keystore %s: %w", e.keystore, err)
	}
	return key, nil
}

func (e *cliEnv) caller() (crypto.Address, error) {
	key, err := e.signer()
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}

func (e *cliEnv) print(v any) error {
	if e.format == "yaml" {
		enc := yaml.NewEncoder(e.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
