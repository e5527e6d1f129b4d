// Command mint is a command-line client for the mint file service. It
// opens a file on the daemon, runs one operation against it and closes
// the handle.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log/level"

	"github.com/mintfs/mint/internal/cmdutil"
	"github.com/mintfs/mint/internal/mint"
	"github.com/mintfs/mint/internal/mint/client"
	"github.com/mintfs/mint/internal/mint/port"
)

func main() {
	var (
		addr    string
		timeout time.Duration
		async   bool
		ll      cmdutil.LogLevel
	)

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Var(&ll, "log.level", "Level to display logs at")
	fs.StringVar(&addr, "addr", "127.0.0.1:4750", "address of the mintd server")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "per-call timeout")
	fs.BoolVar(&async, "async", false, "use the asynchronous read protocol for the read command")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] <read|write|size> <path>\n\n", os.Args[0])
		fmt.Fprintf(fs.Output(), "write reads its data from stdin; read writes the file to stdout.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(2)
	}
	command, path := fs.Arg(0), fs.Arg(1)

	l := cmdutil.NewLogger(ll)

	conn, err := port.Dial(addr)
	if err != nil {
		level.Error(l).Log("msg", "failed to connect", "addr", addr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cli := client.New(conn, port.ServicePort)
	if err := runCommand(ctx, cli, command, path, async); err != nil {
		level.Error(l).Log("msg", "command failed", "command", command, "err", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cli *client.Client, command, path string, async bool) error {
	flags := mint.OpenReadOnly
	if command == "write" {
		flags = mint.OpenReadWrite | mint.OpenCreate | mint.OpenTruncate
	}

	handle, err := cli.Open(ctx, path, flags)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer cli.Close(ctx, handle)

	switch command {
	case "read":
		return readFile(ctx, cli, handle, async)

	case "write":
		data, err := io.ReadAll(io.LimitReader(os.Stdin, mint.MaxDataLen))
		if err != nil {
			return err
		}
		_, err = cli.Write(ctx, handle, 0, data)
		return err

	case "size":
		size, err := cli.Size(ctx, handle)
		if err != nil {
			return err
		}
		fmt.Println(size)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// readFile streams the whole file to stdout in bounded chunks. With async
// set it drives the start/poll protocol instead of blocking reads.
func readFile(ctx context.Context, cli *client.Client, handle mint.Handle, async bool) error {
	const chunk = 64 * 1024

	var offset uint64
	for {
		var (
			data []byte
			err  error
		)
		if async {
			data, err = readChunkAsync(ctx, cli, handle, offset, chunk)
		} else {
			data, err = cli.Read(ctx, handle, offset, chunk)
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
		offset += uint64(len(data))
		if len(data) < chunk {
			return nil
		}
	}
}

func readChunkAsync(ctx context.Context, cli *client.Client, handle mint.Handle, offset uint64, max uint32) ([]byte, error) {
	op, err := cli.ReadAsync(ctx, handle, offset, max)
	if err != nil {
		return nil, err
	}
	for {
		data, done, err := cli.PollAsync(ctx, op)
		if err != nil {
			return nil, err
		}
		if done {
			return data, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}
