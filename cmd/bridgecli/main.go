// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	log "github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/bridge"
	"github.com/luxfi/bridge/payload"
	"github.com/luxfi/bridge/relayer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bridgecli",
	Short: "Burn-and-mint bridge protocol CLI",
	Long: `bridgecli provides tools for building, inspecting, and simulating
burn-and-mint bridge transfers.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(simulateCmd)

	encodeCmd.Flags().String("kind", "fungible", "Asset kind (fungible, non-fungible)")
	encodeCmd.Flags().String("asset-id", "", "Asset ID (hex, 32 bytes)")
	encodeCmd.Flags().String("origin", "", "Origin chain ID (cb58 or hex)")
	encodeCmd.Flags().String("sender", "", "Sender address (hex)")
	encodeCmd.Flags().String("recipient", "", "Recipient address (hex)")
	encodeCmd.Flags().String("amount", "0", "Amount (decimal, fungible only)")
	encodeCmd.Flags().String("uri", "", "Metadata URI (non-fungible only)")
	encodeCmd.Flags().Uint64("nonce", 0, "Transfer nonce")
	_ = encodeCmd.MarkFlagRequired("origin")
	_ = encodeCmd.MarkFlagRequired("sender")
	_ = encodeCmd.MarkFlagRequired("recipient")

	decodeCmd.Flags().String("data", "", "Hex-encoded message envelope")
	_ = decodeCmd.MarkFlagRequired("data")

	hashCmd.Flags().String("data", "", "Hex-encoded message envelope")
	_ = hashCmd.MarkFlagRequired("data")
}

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a transfer intent",
	Long:  `Build and hex-encode a transfer intent payload from its fields.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kindName, _ := cmd.Flags().GetString("kind")
		var kind uint8
		switch kindName {
		case "fungible":
			kind = payload.KindFungible
		case "non-fungible":
			kind = payload.KindNonFungible
		default:
			return fmt.Errorf("unknown asset kind %q", kindName)
		}

		assetHex, _ := cmd.Flags().GetString("asset-id")
		var assetID [32]byte
		if len(assetHex) > 0 {
			b, err := decodeHex(assetHex)
			if err != nil || len(b) != 32 {
				return fmt.Errorf("asset-id must be 32 bytes of hex")
			}
			copy(assetID[:], b)
		}

		originStr, _ := cmd.Flags().GetString("origin")
		origin, err := parseChainID(originStr)
		if err != nil {
			return fmt.Errorf("invalid origin chain ID: %w", err)
		}

		sender, err := flagBytes(cmd, "sender")
		if err != nil {
			return err
		}
		recipient, err := flagBytes(cmd, "recipient")
		if err != nil {
			return err
		}

		amountStr, _ := cmd.Flags().GetString("amount")
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		uri, _ := cmd.Flags().GetString("uri")
		nonce, _ := cmd.Flags().GetUint64("nonce")

		intent, err := payload.NewTransferIntent(kind, assetID, origin, sender, recipient, amount, uri, nonce)
		if err != nil {
			return err
		}
		fmt.Printf("%x\n", intent.Bytes())
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a message envelope",
	Long:  `Decode a hex-encoded message envelope and its transfer payload.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataHex, _ := cmd.Flags().GetString("data")
		data, err := decodeHex(dataHex)
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}

		msg, err := bridge.ParseMessage(data)
		if err != nil {
			return err
		}

		fmt.Printf("Message %s:\n", msg.ID())
		fmt.Printf("  Source Chain:        %s\n", msg.SourceChainID)
		fmt.Printf("  Destination Chain:   %s\n", msg.DestinationChainID)
		fmt.Printf("  Destination Address: %x\n", msg.DestinationAddress)
		fmt.Printf("  Nonce:               %d\n", msg.Nonce)

		intent, err := payload.ParseTransferIntent(msg.Payload)
		if err != nil {
			fmt.Printf("  Payload:             %x (not a transfer intent)\n", msg.Payload)
			return nil
		}
		fmt.Printf("  Transfer:\n")
		fmt.Printf("    Kind:      %s\n", intent.KindName())
		fmt.Printf("    Asset ID:  %x\n", intent.AssetID)
		fmt.Printf("    Origin:    %s\n", intent.OriginChainID)
		fmt.Printf("    Sender:    %x\n", intent.Sender)
		fmt.Printf("    Recipient: %x\n", intent.Recipient)
		if intent.Amount != nil {
			fmt.Printf("    Amount:    %s\n", intent.Amount.Dec())
		}
		if len(intent.URI) > 0 {
			fmt.Printf("    URI:       %s\n", intent.URI)
		}
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute a message ID",
	Long:  `Compute the ID of a hex-encoded message envelope.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataHex, _ := cmd.Flags().GetString("data")
		data, err := decodeHex(dataHex)
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}
		msg, err := bridge.ParseMessage(data)
		if err != nil {
			return err
		}
		fmt.Println(msg.ID())
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a two-chain transfer simulation",
	Long: `Spin up two in-process chains connected through the relayer hub,
move an asset from one to the other, and print each lifecycle event.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewNoOpLogger()
		authority := []byte("authority")

		hub, err := relayer.NewHub(relayer.DefaultConfig(), []byte("hub"), logger)
		if err != nil {
			return err
		}
		defer hub.Close()

		newChain := func(name string) (*bridge.Core, error) {
			chainID := ids.GenerateTestID()
			core, err := bridge.NewCore(bridge.CoreConfig{
				ChainID:        chainID,
				LocalAddress:   []byte("bridge-" + name),
				Authority:      authority,
				Gateway:        hub,
				GatewayAddress: hub.Identity(),
				Logger:         logger,
			})
			if err != nil {
				return nil, err
			}
			core.Events().Register("print", printSink{chain: name})
			return core, hub.Register(chainID, core.LocalAddress(), core)
		}

		chainA, err := newChain("a")
		if err != nil {
			return err
		}
		chainB, err := newChain("b")
		if err != nil {
			return err
		}
		if err := chainA.SetConnected(authority, chainB.ChainID(), chainB.LocalAddress()); err != nil {
			return err
		}
		if err := chainB.SetConnected(authority, chainA.ChainID(), chainA.LocalAddress()); err != nil {
			return err
		}

		var assetID [32]byte
		assetID[31] = 42
		if err := chainA.Custody().Mint(assetID, []byte("alice"), "ipfs://asset-42", chainA.ChainID()); err != nil {
			return err
		}

		receipt, err := chainA.Transfer(context.Background(), bridge.TransferRequest{
			Caller:             []byte("alice"),
			DestinationChainID: chainB.ChainID(),
			Recipient:          []byte("bob"),
			Kind:               payload.KindNonFungible,
			AssetID:            assetID,
		})
		if err != nil {
			return err
		}
		hub.Drain()

		owner, err := chainB.Custody().Owner(assetID)
		if err != nil {
			return err
		}
		fmt.Printf("message %s delivered; asset now owned by %s\n", receipt.MessageID, owner)
		return nil
	},
}

// printSink writes lifecycle events to stdout
type printSink struct {
	chain string
}

func (s printSink) Accept(event bridge.Event) {
	fmt.Printf("[chain %s] %s nonce=%d asset=%x\n", s.chain, event.Type, event.Nonce, event.AssetID)
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func flagBytes(cmd *cobra.Command, name string) ([]byte, error) {
	v, _ := cmd.Flags().GetString(name)
	b, err := decodeHex(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

// parseChainID accepts either the canonical cb58 form or raw hex
func parseChainID(s string) (ids.ID, error) {
	if id, err := ids.FromString(s); err == nil {
		return id, nil
	}
	b, err := decodeHex(s)
	if err != nil || len(b) != ids.IDLen {
		return ids.ID{}, fmt.Errorf("expected cb58 or %d bytes of hex", ids.IDLen)
	}
	var id ids.ID
	copy(id[:], b)
	return id, nil
}
