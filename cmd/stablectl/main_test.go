package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"stablechain/config"
	"stablechain/core"
	"stablechain/crypto"
)

const testPassEnv = "STABLECTL_TEST_PASS"

type cli struct {
	t          *testing.T
	configPath string
	operator   crypto.Address
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	keystorePath := filepath.Join(dir, "operator.keystore")
	require.NoError(t, crypto.SaveToKeystoreWithStrength(keystorePath, key, "pw", crypto.LightStrength))
	t.Setenv(testPassEnv, "pw")

	operator := key.PubKey().Address()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Backend = config.BackendBolt
	cfg.KeystorePath = keystorePath
	cfg.Authority = operator.String()
	cfg.Oracle.QuoteFile = filepath.Join(dir, "quote.json")
	cfg.Oracle.TrustedSigners = []string{operator.String()}
	cfg.Events = config.EventSinkConfig{Driver: "sqlite", DSN: filepath.Join(dir, "events.db")}
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Save(path, cfg))
	return &cli{t: t, configPath: path, operator: operator}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{args[0], "-config", c.configPath, "-pass-env", testPassEnv}, args[1:]...)
	code := run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	code, stdout, stderr := c.run(args...)
	require.Equal(c.t, 0, code, "stablectl %v failed: %s", args, stderr)
	return stdout
}

func TestCLIVaultLifecycle(t *testing.T) {
	c := newCLI(t)

	var receipt core.ReceiptView
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("init")), &receipt))
	require.Equal(t, core.OpInitializeConfig, receipt.Operation)
	require.NotNil(t, receipt.Config)
	require.Equal(t, c.operator.String(), receipt.Config.Authority)

	c.mustRun("faucet", "-amount", "5000000000")
	c.mustRun("sign-quote", "-price", "200000000", "-expo", "-8")

	require.NoError(t, json.Unmarshal([]byte(c.mustRun("deposit", "-collateral", "1000000000", "-mint", "1000000000")), &receipt))
	require.Equal(t, core.OpDeposit, receipt.Operation)
	require.Len(t, receipt.Events, 1)

	var vault core.VaultView
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("vault")), &vault))
	require.Equal(t, "2.000000000", vault.HealthFactor)
	require.Equal(t, "1000000000", vault.Debt)

	var balance map[string]string
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("balance")), &balance))
	require.Equal(t, "1000000000", balance["balance"])

	var cfg core.ConfigView
	require.NoError(t, yaml.Unmarshal([]byte(c.mustRun("config", "-output", "yaml")), &cfg))
	require.Equal(t, "1.000000000", cfg.MinHealthFactor)

	c.mustRun("update", "-pause-mint", "true")
	code, _, stderr := c.run("deposit", "-collateral", "1", "-mint", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "[Paused]")
}

func TestCLIRejectsUnknownCommandAndFormat(t *testing.T) {
	var stderr bytes.Buffer
	require.Equal(t, 2, run(context.Background(), []string{"bogus"}, &bytes.Buffer{}, &stderr))
	require.True(t, strings.Contains(stderr.String(), "unknown command"))

	c := newCLI(t)
	code, _, errOut := c.run("config", "-output", "xml")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "unsupported output format")
}

func TestCLIStalePriceReportsRetry(t *testing.T) {
	c := newCLI(t)
	c.mustRun("init")
	c.mustRun("faucet", "-amount", "5000000000")
	c.mustRun("sign-quote", "-price", "200000000", "-publish-time", "1000")

	code, _, stderr := c.run("deposit", "-collateral", "1000000000", "-mint", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "[StalePrice]")
	require.Contains(t, stderr, "fresher price quote")
}
