// Command ovstore-build drives the parallel overlap store builder's
// per-process pipeline stages (spec.md §4.5, §6): one invocation sorts a
// single slice, one invocation runs the merge stage, and one invocation
// checks (and optionally fixes) a sealed store's index. Each subcommand
// corresponds to one independent process invocation in the job
// scheduler's pipeline, per spec §5's "parallelism ... via independent
// process invocations across pipeline stages."
package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovstore"
	"v.io/x/lib/cmdline"
)

func newCmdSort() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "sort",
		Short:    "Sort one slice's bucket-shuffled overlaps into a data segment",
		ArgsName: "store",
	}
	fileID := cmd.Flags.Int("fileID", 0, "slice number to sort, 1-based")
	fileLimit := cmd.Flags.Int("fileLimit", 0, "total number of slices in this build")
	jobIdxMax := cmd.Flags.Int("jobIdxMax", 0, "number of producer jobs that ran the bucket stage")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("sort takes one store path argument, got %v", argv)
		}
		if *fileID < 1 || *fileLimit < 1 || *jobIdxMax < 1 {
			return fmt.Errorf("sort: -fileID, -fileLimit, -jobIdxMax must all be positive")
		}
		return ovstore.SortSlice(vcontext.Background(), argv[0], *fileID, ovstore.SortSliceOpts{
			JobIdxMax: *jobIdxMax,
			FileLimit: *fileLimit,
		})
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Splice every slice's index into one global store index",
		ArgsName: "store",
	}
	fileLimit := cmd.Flags.Int("fileLimit", 0, "total number of slices in this build")
	maxAIID := cmd.Flags.Uint64("maxAIID", 0, "largest a_iid the bucket stage partitioned over")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("merge takes one store path argument, got %v", argv)
		}
		if *fileLimit < 1 {
			return fmt.Errorf("merge: -fileLimit must be positive")
		}
		return ovstore.MergeSlices(vcontext.Background(), argv[0], ovstore.MergeOpts{
			FileLimit: *fileLimit,
			MaxAIID:   uint32(*maxAIID),
		})
	})
	return cmd
}

func newCmdCheck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "check",
		Short:    "Verify (and optionally fix) a sealed store's index consistency",
		ArgsName: "store",
	}
	fix := cmd.Flags.Bool("fix", false, "write a corrected index.fixed if problems are found")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("check takes one store path argument, got %v", argv)
		}
		report, err := ovstore.CheckIndex(vcontext.Background(), argv[0], ovstore.CheckIndexOpts{Fix: *fix})
		if err != nil {
			return err
		}
		if report.OK {
			fmt.Fprintln(env.Stdout, "index OK")
			return nil
		}
		for _, g := range report.Gaps {
			fmt.Fprintln(env.Stdout, g)
		}
		if report.FixPath != "" {
			fmt.Fprintf(env.Stdout, "wrote corrected index to %s\n", report.FixPath)
		}
		return fmt.Errorf("ovstore-build: check: %d problems found", len(report.Gaps))
	})
	return cmd
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	storeio.RegisterS3()

	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "ovstore-build",
		Short:    "Build and verify an overlap store's parallel pipeline stages",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdSort(),
			newCmdMerge(),
			newCmdCheck(),
		},
	})
}
