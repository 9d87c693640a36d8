package storeio

import (
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

// RegisterS3 wires the "s3://" scheme into github.com/grailbio/base/file,
// so every path this package builds (segments, index, info, buckets) can
// resolve onto S3 as naturally as onto a local filesystem. It is not
// called automatically on package init: only a process that actually
// wants s3:// stores (the cmd/ binaries) pays AWS SDK session setup cost.
func RegisterS3() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}
