package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"crosslend/cmd/internal/passphrase"
	"crosslend/config"
	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/wire"
	"crosslend/services/lendingd/server"
)

const keystorePassphraseEnv = "LEND_KEYSTORE_PASSPHRASE"

var now = time.Now

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "encode-payload":
		return runEncodePayload(args[1:], stdout, stderr)
	case "decode-message":
		return runDecodeMessage(args[1:], stdout, stderr)
	case "mint-token":
		return runMintToken(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "check-config":
		return runCheckConfig(args[1:], stdout, stderr)
	case "loan":
		return runLoan(args[1:], stdout, stderr)
	case "push-price":
		return runPushPrice(args[1:], stdout, stderr)
	case "events":
		return runEvents(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: lendctl <command> [flags]",
		"",
		"Commands:",
		"  encode-payload   build a length-prefixed collateral deposit message",
		"  decode-message   decode a length-prefixed collateral deposit message",
		"  mint-token       sign an API bearer token for an address",
		"  keygen           create an encrypted keystore and print its address",
		"  check-config     validate a lendingd configuration file",
		"  loan             show a loan, optionally with its live health ratio",
		"  push-price       record a manual price quote (operator)",
		"  events           list committed ledger events",
	}, "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func fail(stderr io.Writer, format string, args ...any) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}

func printJSON(stdout io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}

func runEncodePayload(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("encode-payload", stderr)
	var (
		target    uint
		amount    uint64
		decimals  uint
		remaining uint64
	)
	fs.UintVar(&target, "target-chain", 0, "chain id the collateral backs a loan on")
	fs.Uint64Var(&amount, "amount", 0, "collateral amount in base units")
	fs.UintVar(&decimals, "decimals", 0, "collateral decimals")
	fs.Uint64Var(&remaining, "remaining", 0, "collateral still locked on the source chain")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if target == 0 || target > 0xFFFF {
		return fail(stderr, "--target-chain must be within 1..65535")
	}
	if decimals > attest.MaxCollateralDecimals {
		return fail(stderr, "--decimals must not exceed %d", attest.MaxCollateralDecimals)
	}
	payload, err := attest.CollateralPayload{
		TargetChainID:             uint16(target),
		CollateralAmount:          amount,
		CollateralDecimals:        uint8(decimals),
		RemainingCollateralAmount: remaining,
	}.MarshalBinary()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	frame, err := wire.Encode(payload)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, hex.EncodeToString(frame))
	return 0
}

type decodedMessage struct {
	Length                    int    `json:"length"`
	TargetChainID             uint16 `json:"target_chain_id"`
	CollateralAmount          uint64 `json:"collateral_amount"`
	CollateralDecimals        uint8  `json:"collateral_decimals"`
	RemainingCollateralAmount uint64 `json:"remaining_collateral_amount"`
}

func runDecodeMessage(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("decode-message", stderr)
	var raw string
	fs.StringVar(&raw, "hex", "", "hex encoded message")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if raw == "" && fs.NArg() == 1 {
		raw = fs.Arg(0)
	}
	frame, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil || len(frame) == 0 {
		return fail(stderr, "--hex must be a non-empty hex string")
	}
	body, err := wire.Decode(frame)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	payload, err := attest.ParseCollateralPayload(body)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	return printJSON(stdout, decodedMessage{
		Length:                    len(body),
		TargetChainID:             payload.TargetChainID,
		CollateralAmount:          payload.CollateralAmount,
		CollateralDecimals:        payload.CollateralDecimals,
		RemainingCollateralAmount: payload.RemainingCollateralAmount,
	})
}

func runMintToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mint-token", stderr)
	var (
		cfgPath  string
		secret   string
		subject  string
		issuer   string
		audience string
		ttl      time.Duration
	)
	fs.StringVar(&cfgPath, "config", "", "lendingd config to read auth settings from")
	fs.StringVar(&secret, "secret", "", "HMAC secret (overrides --config)")
	fs.StringVar(&subject, "subject", "", "address the token authenticates")
	fs.StringVar(&issuer, "issuer", "", "token issuer")
	fs.StringVar(&audience, "audience", "", "token audience")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fail(stderr, "load config: %v", err)
		}
		if secret == "" {
			secret = cfg.HMACSecret()
		}
		if issuer == "" {
			issuer = cfg.Auth.Issuer
		}
		if audience == "" {
			audience = cfg.Auth.Audience
		}
	}
	if strings.TrimSpace(secret) == "" {
		return fail(stderr, "--secret or --config with an auth secret is required")
	}
	addr, err := crypto.ParseAddress(subject)
	if err != nil {
		return fail(stderr, "--subject: %v", err)
	}
	token, err := server.IssueToken(secret, addr, issuer, audience, ttl, now())
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "", "keystore file to write")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if out == "" {
		return fail(stderr, "--out is required")
	}
	pass, err := passphrase.NewSource(keystorePassphraseEnv, "keystore").Get()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fail(stderr, "generate key: %v", err)
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		return fail(stderr, "write keystore: %v", err)
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func runCheckConfig(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("check-config", stderr)
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "lendingd config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if cfgPath == "" {
		return fail(stderr, "--config is required")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	return printJSON(stdout, cfg.Sanitized())
}
