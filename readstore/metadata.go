package readstore

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
)

// loadMetadata opens an existing sealed store's info/libraries/reads
// tables into memory, failing StoreMissing if info is absent and
// SchemaMismatch if its recordSize or magic disagree with the compiled
// layout (spec.md §4.6).
func loadMetadata(ctx context.Context, storePath string, opts Opts, _ int) (*Store, error) {
	infoBuf, err := storeio.ReadAll(ctx, storeio.InfoPath(storePath))
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.NotExist {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("readstore: no store at %s", storePath))
		}
		return nil, err
	}
	if len(infoBuf) != gkrec.InfoSize {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: %s: info file is %d bytes, want %d", storePath, len(infoBuf), gkrec.InfoSize))
	}
	var info gkrec.StoreInfo
	info.Unmarshal(infoBuf)
	if !info.Sealed() {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: %s: info carries the create-time placeholder magic; store was never sealed", storePath))
	}
	if info.RecordSize != gkrec.ReadSize {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: %s: recorded recordSize %d disagrees with compiled %d", storePath, info.RecordSize, gkrec.ReadSize))
	}

	libBuf, err := storeio.ReadAll(ctx, storeio.LibrariesPath(storePath))
	if err != nil {
		return nil, err
	}
	libraries, err := unmarshalLibraries(libBuf)
	if err != nil {
		return nil, err
	}

	readsBuf, err := storeio.ReadAll(ctx, storeio.ReadsPath(storePath))
	if err != nil {
		return nil, err
	}
	reads, err := unmarshalReads(readsBuf)
	if err != nil {
		return nil, err
	}

	return &Store{
		ctx: ctx, path: storePath, opts: opts,
		info: info, libraries: libraries, reads: reads,
	}, nil
}

func unmarshalLibraries(buf []byte) ([]gkrec.Library, error) {
	if len(buf)%gkrec.LibrarySize != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: libraries file size %d is not a multiple of %d", len(buf), gkrec.LibrarySize))
	}
	n := len(buf) / gkrec.LibrarySize
	out := make([]gkrec.Library, n)
	for i := 0; i < n; i++ {
		out[i].Unmarshal(buf[i*gkrec.LibrarySize : (i+1)*gkrec.LibrarySize])
	}
	return out, nil
}

func unmarshalReads(buf []byte) ([]gkrec.Read, error) {
	if len(buf)%gkrec.ReadSize != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: reads file size %d is not a multiple of %d", len(buf), gkrec.ReadSize))
	}
	n := len(buf) / gkrec.ReadSize
	out := make([]gkrec.Read, n)
	for i := 0; i < n; i++ {
		out[i].Unmarshal(buf[i*gkrec.ReadSize : (i+1)*gkrec.ReadSize])
	}
	return out, nil
}

func marshalLibraries(libs []gkrec.Library) []byte {
	out := make([]byte, len(libs)*gkrec.LibrarySize)
	for i := range libs {
		libs[i].Marshal(out[i*gkrec.LibrarySize : (i+1)*gkrec.LibrarySize])
	}
	return out
}

func marshalReads(reads []gkrec.Read) []byte {
	out := make([]byte, len(reads)*gkrec.ReadSize)
	for i := range reads {
		reads[i].Marshal(out[i*gkrec.ReadSize : (i+1)*gkrec.ReadSize])
	}
	return out
}

func writeLibraries(ctx context.Context, storePath string, libs []gkrec.Library) error {
	return storeio.WriteAll(ctx, storeio.LibrariesPath(storePath), marshalLibraries(libs))
}

func writeReads(ctx context.Context, storePath string, reads []gkrec.Read) error {
	return storeio.WriteAll(ctx, storeio.ReadsPath(storePath), marshalReads(reads))
}

func writeInfo(ctx context.Context, storePath string, info *gkrec.StoreInfo, checksums map[int]string) error {
	buf := make([]byte, gkrec.InfoSize)
	info.Marshal(buf)
	if err := storeio.WriteAll(ctx, storeio.InfoPath(storePath), buf); err != nil {
		return err
	}
	return writeInfoTxt(ctx, storePath, info, checksums)
}

// writeInfoTxt writes info.txt, the human-readable sibling of info
// (spec.md §6). checksums, keyed by fileno, adds the supplemental
// segmentChecksum lines the binary info layout has no room for.
func writeInfoTxt(ctx context.Context, storePath string, info *gkrec.StoreInfo, checksums map[int]string) error {
	text := fmt.Sprintf(
		"version       %d\n"+
			"recordSize    %d\n"+
			"numLibraries  %d\n"+
			"numReads      %d\n"+
			"numRawReads       %d\n"+
			"numRawBases       %d\n"+
			"numCorrectedReads %d\n"+
			"numCorrectedBases %d\n"+
			"numTrimmedReads   %d\n"+
			"numTrimmedBases   %d\n",
		info.Version, info.RecordSize, info.NumLibraries, info.NumReads,
		info.NumRawReads, info.NumRawBases,
		info.NumCorrectedReads, info.NumCorrectedBases,
		info.NumTrimmedReads, info.NumTrimmedBases)
	for fileno := 1; fileno <= len(checksums); fileno++ {
		text += fmt.Sprintf("segmentChecksum[%d] %s\n", fileno, checksums[fileno])
	}
	return storeio.WriteAll(ctx, storeio.InfoTxtPath(storePath), []byte(text))
}

// archiveVersion copies the current libraries/reads/info/info.txt into the
// next version.NNN/ subdirectory before an extend writes new ones
// (spec.md §3's "Lifecycles", scenario 5). The originals stay in place
// until the extend's Close overwrites them.
func archiveVersion(ctx context.Context, storePath string) error {
	n := 1
	for storeio.Exists(ctx, storeio.VersionDir(storePath, n)) {
		n++
	}
	dir := storeio.VersionDir(storePath, n)
	moves := []struct{ src, dst string }{
		{storeio.InfoPath(storePath), dir + "/info"},
		{storeio.InfoTxtPath(storePath), dir + "/info.txt"},
		{storeio.LibrariesPath(storePath), dir + "/libraries"},
		{storeio.ReadsPath(storePath), dir + "/reads"},
	}
	for _, m := range moves {
		data, err := storeio.ReadAll(ctx, m.src)
		if err != nil {
			return err
		}
		if err := storeio.WriteAll(ctx, m.dst, data); err != nil {
			return err
		}
	}
	return nil
}
