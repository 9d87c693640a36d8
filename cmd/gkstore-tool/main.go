// Command gkstore-tool is a convenience top-level over the readstore
// library: it prints a store's read and library counts, and dumps one
// read's decoded data by identifier
// (spec.md §6's "-G store path" external interface). The library API
// underneath is the real deliverable; this CLI is a thin, constrained
// wrapper (spec §7: "builder commands expose a convenience top-level that
// prints and exits").
package main

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/readstore"
	"v.io/x/lib/cmdline"
)

func newCmdInfo() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "info",
		Short:    "Print a read store's read and library counts",
		ArgsName: "store",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("info takes one store path argument, got %v", argv)
		}
		s, err := readstore.Open(vcontext.Background(), argv[0], readstore.ReadAll, readstore.Opts{})
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Fprintf(env.Stdout, "reads:      %d\n", s.NumReads())
		fmt.Fprintf(env.Stdout, "libraries:  %d\n", s.NumLibraries())
		return nil
	})
	return cmd
}

func newCmdDump() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dump",
		Short:    "Dump one read's decoded sequence and quality",
		ArgsName: "store rid",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("dump takes store and rid arguments, got %v", argv)
		}
		rid, err := strconv.ParseUint(argv[1], 10, 32)
		if err != nil {
			return fmt.Errorf("gkstore-tool: bad rid %q: %v", argv[1], err)
		}
		ctx := vcontext.Background()
		s, err := readstore.Open(ctx, argv[0], readstore.ReadAll, readstore.Opts{})
		if err != nil {
			return err
		}
		defer s.Close()
		rd, err := s.LoadReadData(uint32(rid), 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, ">%s\n%s\n", rd.Name, rd.RawSeq)
		if rd.CorrSeq != "" {
			fmt.Fprintf(env.Stdout, ">%s (corrected)\n%s\n", rd.Name, rd.CorrSeq)
		}
		return nil
	})
	return cmd
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	storeio.RegisterS3()

	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "gkstore-tool",
		Short:    "Inspect a read store",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdInfo(),
			newCmdDump(),
		},
	})
}
