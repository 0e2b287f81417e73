package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/colosseum/internal/transport"
	"github.com/signalsfoundry/colosseum/internal/transport/grpcbus"
	"github.com/signalsfoundry/colosseum/internal/transport/wsbus"
	"github.com/spf13/cobra"
)

type options struct {
	transport string
	addr      string
	key       string
	timeout   time.Duration
}

// main sends one command line to a running colosseum server and prints any
// reply values.
func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	// Flags before put/get are parsed by the root; the subcommands take their
	// line verbatim.
	root := &cobra.Command{
		Use:              "colosseumctl",
		Short:            "send commands to a colosseum arena",
		SilenceUsage:     true,
		TraverseChildren: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.transport, "transport", "grpc", "bus transport: grpc or ws")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "server address (default 127.0.0.1:7447 for grpc, ws://127.0.0.1:8081/bus for ws)")
	root.PersistentFlags().StringVar(&opts.key, "key", "robot/command", "key expression")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	putCmd := &cobra.Command{
		Use:                "put [--flags] <line>",
		Short:              "publish a command line without waiting for a result",
		Long:               "Publish a command line without waiting for a result. Leading --flags are read up to the first line token or a bare --; the rest, negative numbers included, is sent as written.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, help, err := lineArgs(cmd, args)
			if err != nil || help {
				return err
			}
			if len(args) == 0 {
				return errors.New("put needs a command line")
			}
			return withClient(cmd.Context(), opts, func(ctx context.Context, c transport.Client) error {
				return c.Put(ctx, opts.key, transport.EncodeText(strings.Join(args, " ")))
			})
		},
	}

	getCmd := &cobra.Command{
		Use:                "get [--flags] [line]",
		Short:              "query with a command line and print the reply values",
		Long:               "Query with a command line and print the reply values. Without a line the query carries no payload. Flags are read as for put.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, help, err := lineArgs(cmd, args)
			if err != nil || help {
				return err
			}
			var payload []byte
			if len(args) > 0 {
				payload = transport.EncodeText(strings.Join(args, " "))
			}
			return withClient(cmd.Context(), opts, func(ctx context.Context, c transport.Client) error {
				replies, err := c.Get(ctx, opts.key, payload)
				if err != nil {
					return err
				}
				if len(replies) == 0 {
					return fmt.Errorf("no reply on %s", opts.key)
				}
				for _, r := range replies {
					vals, err := transport.DecodeValues(r)
					if err != nil {
						return fmt.Errorf("decode reply: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), formatValues(vals))
				}
				return nil
			})
		},
	}

	root.AddCommand(putCmd, getCmd)
	return root
}

// lineArgs applies the leading --name[=value] arguments to cmd's flags and
// returns what follows as the command line. help reports that --help was
// given and usage has been printed.
func lineArgs(cmd *cobra.Command, args []string) (line []string, help bool, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args[i+1:], false, nil
		}
		if !strings.HasPrefix(arg, "--") {
			return args[i:], false, nil
		}
		name, value, hasValue := strings.Cut(arg[2:], "=")
		if name == "help" {
			return nil, true, cmd.Help()
		}
		f := cmd.Flag(name)
		if f == nil {
			return nil, false, fmt.Errorf("unknown flag: --%s", name)
		}
		if !hasValue {
			switch {
			case f.NoOptDefVal != "":
				value = f.NoOptDefVal
			case i+1 < len(args):
				i++
				value = args[i]
			default:
				return nil, false, fmt.Errorf("flag needs an argument: --%s", name)
			}
		}
		if err := f.Value.Set(value); err != nil {
			return nil, false, fmt.Errorf("invalid argument %q for --%s: %w", value, name, err)
		}
	}
	return nil, false, nil
}

func withClient(ctx context.Context, opts *options, fn func(context.Context, transport.Client) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, err := dial(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func dial(ctx context.Context, opts *options) (transport.Client, error) {
	switch strings.ToLower(opts.transport) {
	case "grpc":
		addr := opts.addr
		if addr == "" {
			addr = "127.0.0.1:7447"
		}
		return grpcbus.Dial(addr)
	case "ws":
		addr := opts.addr
		if addr == "" {
			addr = "ws://127.0.0.1:8081/bus"
		}
		return wsbus.Dial(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.transport)
	}
}

// formatValues prints reply values space separated; an empty reply prints
// as an empty line.
func formatValues(vals []float32) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}
