package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/vesclink/internal/protocol"
	"github.com/muurk/vesclink/internal/telemetry"
)

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
}

var encodeRequest string

var encodeCmd = &cobra.Command{
	Use:   "encode [payload-hex]",
	Short: "Frame a payload as a controller packet",
	Long: `Wrap a payload in the packet framing (start marker, length, CRC and
terminator) and print the frame as hex. Spaces and colons in the input are
ignored.`,
	Example: `  vesclink encode 32000009 89
  vesclink encode --request realtime
  vesclink encode --request stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := encodeInput(encodeRequest, args)
		if err != nil {
			return err
		}
		frame, err := protocol.EncodePacket(payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatHex(frame))
		return nil
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeRequest, "request", "", "Encode a built-in request instead (realtime, stats)")
}

// encodeInput returns the payload named by --request or given as hex.
func encodeInput(request string, args []string) ([]byte, error) {
	switch request {
	case "":
	case "realtime":
		return telemetry.BuildRealtimeRequest(), nil
	case "stats":
		return telemetry.BuildStatsRequest(), nil
	default:
		return nil, fmt.Errorf("unknown request %q (want realtime or stats)", request)
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("a payload or --request is required")
	}
	return parseHex(strings.Join(args, ""))
}

var decodeCmd = &cobra.Command{
	Use:   "decode [stream-hex]",
	Short: "Reassemble and decode captured bytes",
	Long: `Feed captured bytes through the packet reassembler and decode every
telemetry response found. Each packet is printed as one JSON object,
followed by the stream counters. Without an argument the hex is read from
standard input.`,
	Example: `  vesclink decode 02 0f 32 00 00 01 01 01 6d 01 e0 ...
  xxd -p capture.bin | vesclink decode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.Join(args, "")
		if len(args) == 0 {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			input = string(raw)
		}

		stream, err := parseHex(input)
		if err != nil {
			return err
		}
		return decodeStream(cmd.OutOrStdout(), stream)
	},
}

// decodedPacket is one line of decode output.
type decodedPacket struct {
	Payload string            `json:"payload"`
	Update  *telemetry.Update `json:"update,omitempty"`
}

// decodeStream writes one JSON line per reassembled packet and a final
// line with the reassembler counters.
func decodeStream(w io.Writer, stream []byte) error {
	r := protocol.NewReassembler()
	d := telemetry.NewDecoder(nil)
	enc := json.NewEncoder(w)

	for _, payload := range r.Process(stream) {
		out := decodedPacket{Payload: formatHex(payload)}
		if u, ok := d.Decode(payload); ok {
			out.Update = &u
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}

	return enc.Encode(struct {
		Stats    protocol.ReassemblerStats `json:"stats"`
		Buffered int                       `json:"buffered"`
	}{r.Stats(), r.Buffered()})
}

// parseHex decodes hex, ignoring whitespace, colons and an optional 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// formatHex renders bytes as space-separated hex pairs.
func formatHex(b []byte) string {
	return fmt.Sprintf("% x", b)
}
