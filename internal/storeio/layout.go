package storeio

import "fmt"

// Read store layout (spec.md §6).

func InfoPath(storePath string) string     { return storePath + "/info" }
func InfoTxtPath(storePath string) string  { return storePath + "/info.txt" }
func LibrariesPath(storePath string) string { return storePath + "/libraries" }
func ReadsPath(storePath string) string    { return storePath + "/reads" }

// BlobSegmentPath names the NNNN-numbered blob segment file holding
// segment index segm (0-based internally, printed 1-based/4-digit per
// spec.md's "blobs.0001, blobs.0002, ...").
func BlobSegmentPath(storePath string, segm int) string {
	return fmt.Sprintf("%s/blobs.%04d", storePath, segm+1)
}

func PartitionsDir(storePath string) string   { return storePath + "/partitions" }
func PartitionMapPath(storePath string) string { return storePath + "/partitions/map" }

func PartitionReadsPath(storePath string, p int) string {
	return fmt.Sprintf("%s/partitions/reads.%04d", storePath, p)
}

func PartitionBlobsPath(storePath string, p int) string {
	return fmt.Sprintf("%s/partitions/blobs.%04d", storePath, p)
}

// VersionDir names the archived-metadata snapshot directory an extend
// creates, version.NNN (1-based, 3-digit).
func VersionDir(storePath string, n int) string {
	return fmt.Sprintf("%s/version.%03d", storePath, n)
}

// Overlap store layout (spec.md §6).

func OvInfoPath(storePath string) string  { return storePath + "/info" }
func OvIndexPath(storePath string) string { return storePath + "/index" }

// OvSegmentPath names the NNNN-numbered overlap data segment.
func OvSegmentPath(storePath string, n int) string {
	return fmt.Sprintf("%s/%04d", storePath, n)
}

func OvSegmentIndexPath(storePath string, n int) string {
	return fmt.Sprintf("%s/%04d.index", storePath, n)
}

func OvSegmentInfoPath(storePath string, n int) string {
	return fmt.Sprintf("%s/%04d.info", storePath, n)
}

// Parallel builder intermediate layout.

func BucketDir(storePath string, jobIdx int) string {
	return fmt.Sprintf("%s/bucket%04d", storePath, jobIdx)
}

func BucketSlicePath(storePath string, jobIdx, slice int) string {
	return fmt.Sprintf("%s/slice%04d", BucketDir(storePath, jobIdx), slice)
}

func BucketSlicePathGz(storePath string, jobIdx, slice int) string {
	return BucketSlicePath(storePath, jobIdx, slice) + ".gz"
}

func BucketSliceSizesPath(storePath string, jobIdx int) string {
	return BucketDir(storePath, jobIdx) + "/sliceSizes"
}

// OvSliceHistogramPath names the per-slice histogram the sort stage emits
// alongside {s}.index/{s}.info, summed into the store-wide histogram by
// the merge stage.
func OvSliceHistogramPath(storePath string, n int) string {
	return fmt.Sprintf("%s/%04d.histogram", storePath, n)
}
