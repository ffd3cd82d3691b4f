package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/man10/strike/internal/app"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/spf13/cobra"
)

const consoleName = "console"

func newServeCmd() *cobra.Command {
	var worlds []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run matches with a line-based console host",
		Long: `Reads one command per line from stdin:

  <player> <command> [args...]   run a command as player ("console" for the server)
  @pos <player> <world> <x> <y> <z> [yaw] [pitch]
  @world <name>                  mark a world as loaded
  @quit <player>                 disconnect a player
  @exit                          stop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := host.NewRecorder(cmd.OutOrStdout(), worlds...)
			a := app.New(app.Options{ConfigDir: configDir, Host: h})
			if err := a.Enable(cmd.Context()); err != nil {
				return err
			}
			c := &console{app: a, host: h, out: cmd.OutOrStdout()}
			err := c.run(cmd.Context(), cmd.InOrStdin())
			if derr := a.Disable(); derr != nil && err == nil {
				err = derr
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&worlds, "world", "w", nil, "worlds loaded at start")
	return cmd
}

// caller is the part of app.App the console drives.
type caller interface {
	Call(sender core.PlayerID, command string, args ...string) string
	PlayerQuit(p core.PlayerID)
}

type console struct {
	app  caller
	host *host.Recorder
	out  io.Writer
}

// playerID maps a console name to a stable player id.
func playerID(name string) core.PlayerID {
	if strings.EqualFold(name, consoleName) {
		return core.PlayerID{}
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("strike:"+strings.ToLower(name)))
}

func (c *console) player(name string) core.PlayerID {
	p := playerID(name)
	if p != (core.PlayerID{}) {
		c.host.SetName(p, name)
	}
	return p
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		errs <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if !c.exec(line) {
				return nil
			}
		}
	}
}

// exec runs one console line and reports whether to keep reading.
func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return true
	}

	switch fields[0] {
	case "@exit":
		return false
	case "@world":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: @world <name>")
			return true
		}
		c.host.AddWorld(fields[1])
	case "@quit":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: @quit <player>")
			return true
		}
		c.app.PlayerQuit(c.player(fields[1]))
	case "@pos":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: @pos <player> <world> <x> <y> <z> [yaw] [pitch]")
			return true
		}
		pos, err := parsePosition(fields[2:])
		if err != nil {
			fmt.Fprintln(c.out, "usage: @pos <player> <world> <x> <y> <z> [yaw] [pitch]")
			return true
		}
		c.host.SetLocation(c.player(fields[1]), pos)
	default:
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: <player> <command> [args...]")
			return true
		}
		fmt.Fprintln(c.out, c.app.Call(c.player(fields[0]), fields[1], fields[2:]...))
	}
	return true
}

func parsePosition(fields []string) (core.Position, error) {
	if len(fields) < 4 || len(fields) > 6 {
		return core.Position{}, fmt.Errorf("want world x y z [yaw] [pitch]")
	}
	nums := make([]float64, 5)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return core.Position{}, fmt.Errorf("bad number %q: %w", f, err)
		}
		nums[i] = v
	}
	return core.NewPosition(fields[0], nums[0], nums[1], nums[2], float32(nums[3]), float32(nums[4])), nil
}
